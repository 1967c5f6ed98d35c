package cache

import (
	"context"
	"io"
	"sync"
)

// MemoryCache is an in-process blob store.
// Used by tests and one-shot builds where persistence is not needed.
// Safe for concurrent use.
type MemoryCache struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{blobs: make(map[string][]byte)}
}

// GetBlob retrieves the bytes stored under key.
func (c *MemoryCache) GetBlob(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.blobs[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	// Copy so callers cannot mutate the stored blob.
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// SetBlob stores data under key, replacing any previous value.
func (c *MemoryCache) SetBlob(ctx context.Context, key string, data []byte) error {
	stored := make([]byte, len(data))
	copy(stored, data)
	c.mu.Lock()
	c.blobs[key] = stored
	c.mu.Unlock()
	return nil
}

// GetStream returns a reader over the bytes stored under key.
func (c *MemoryCache) GetStream(ctx context.Context, key string) (io.ReadCloser, error) {
	data, err := c.GetBlob(ctx, key)
	if err != nil {
		return nil, err
	}
	return streamFromBytes(data), nil
}

// Delete removes the blob stored under key.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.blobs, key)
	c.mu.Unlock()
	return nil
}

// Close does nothing for memory cache.
func (c *MemoryCache) Close() error {
	return nil
}

// Len returns the number of stored blobs.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blobs)
}

// Ensure MemoryCache implements Cache.
var _ Cache = (*MemoryCache)(nil)
