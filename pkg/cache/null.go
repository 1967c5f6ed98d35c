package cache

import (
	"context"
	"io"
)

// NullCache is a no-op cache that never stores anything.
// Useful for testing or when caching should be disabled.
type NullCache struct{}

// NewNullCache creates a null cache.
func NewNullCache() Cache {
	return &NullCache{}
}

// GetBlob always returns a cache miss.
func (c *NullCache) GetBlob(ctx context.Context, key string) ([]byte, error) {
	return nil, ErrCacheMiss
}

// SetBlob does nothing.
func (c *NullCache) SetBlob(ctx context.Context, key string, data []byte) error {
	return nil
}

// GetStream always returns a cache miss.
func (c *NullCache) GetStream(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, ErrCacheMiss
}

// Delete does nothing.
func (c *NullCache) Delete(ctx context.Context, key string) error {
	return nil
}

// Close does nothing.
func (c *NullCache) Close() error {
	return nil
}

// Ensure NullCache implements Cache.
var _ Cache = (*NullCache)(nil)
