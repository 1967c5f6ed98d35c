package cache

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores blobs in Redis.
// Intended for shared caches across build machines; blobs never expire, so
// eviction policy is left to the Redis deployment.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// RedisConfig configures a Redis-backed cache.
type RedisConfig struct {
	Addr     string // host:port
	Password string
	DB       int
	Prefix   string // key namespace, e.g. "packfold:"
}

// NewRedisCache creates a Redis-backed cache and verifies connectivity.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisCache{client: client, prefix: cfg.Prefix}, nil
}

// GetBlob retrieves the bytes stored under key.
// Transient network failures are retried with backoff.
func (c *RedisCache) GetBlob(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := RetryWithBackoff(ctx, func() error {
		var err error
		data, err = c.client.Get(ctx, c.prefix+key).Bytes()
		return wrapTransient(err)
	})
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SetBlob stores data under key, replacing any previous value.
func (c *RedisCache) SetBlob(ctx context.Context, key string, data []byte) error {
	return RetryWithBackoff(ctx, func() error {
		return wrapTransient(c.client.Set(ctx, c.prefix+key, data, 0).Err())
	})
}

// GetStream returns a reader over the bytes stored under key.
// Redis has no streaming read, so the blob is fetched whole.
func (c *RedisCache) GetStream(ctx context.Context, key string) (io.ReadCloser, error) {
	data, err := c.GetBlob(ctx, key)
	if err != nil {
		return nil, err
	}
	return streamFromBytes(data), nil
}

// Delete removes the blob stored under key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// wrapTransient marks network-level failures as retryable.
// redis.Nil and application errors pass through unchanged.
func wrapTransient(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Retryable(err)
	}
	return err
}

// Ensure RedisCache implements Cache.
var _ Cache = (*RedisCache)(nil)
