package cache

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
)

// FileCache stores blobs as files in a directory.
// Keys are hashed and fanned out into two-character subdirectories to avoid
// oversized directories on large builds.
type FileCache struct {
	dir string
}

// NewFileCache creates a file-based cache in the given directory.
// The directory will be created if it doesn't exist.
func NewFileCache(dir string) (Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir}, nil
}

// GetBlob retrieves the bytes stored under key.
func (c *FileCache) GetBlob(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(c.path(key))
	if os.IsNotExist(err) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SetBlob stores data under key, replacing any previous value.
func (c *FileCache) SetBlob(ctx context.Context, key string, data []byte) error {
	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// GetStream returns a reader over the file stored under key.
func (c *FileCache) GetStream(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(c.path(key))
	if os.IsNotExist(err) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Delete removes the blob stored under key.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	err := os.Remove(c.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Close does nothing for file cache.
func (c *FileCache) Close() error {
	return nil
}

// path converts a cache key to a file path.
// Uses a simple hash-based directory structure to avoid too many files in one dir.
func (c *FileCache) path(key string) string {
	hash := HashString(key)
	subdir := hash[:2]
	filename := hash[2:] + ".blob"
	return filepath.Join(c.dir, subdir, filename)
}

// Ensure FileCache implements Cache.
var _ Cache = (*FileCache)(nil)

// streamFromBytes adapts an in-memory blob to the GetStream contract.
func streamFromBytes(data []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(data))
}
