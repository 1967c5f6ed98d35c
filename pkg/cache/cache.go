// Package cache provides the blob store backing asset content.
//
// Transformers write raw content, serialized ASTs, and source maps into the
// cache under content-addressed keys; the per-asset content store reads them
// back lazily. Several backends are available:
//   - file: directory-based store for CLI usage (the default)
//   - memory: in-process store for tests and one-shot builds
//   - redis: shared store for multi-instance deployments
//   - mongo: shared store when a document database is already provisioned
//   - null: discards everything (caching disabled)
//
// All backends distinguish "key not present" (ErrCacheMiss) from I/O
// failures. Callers rely on that distinction: a miss on a derived blob can be
// recovered by regenerating from the AST, while an I/O failure cannot.
package cache

import (
	"context"
	"io"
)

// Cache is a content-addressed blob store.
//
// Keys are opaque strings; use ContentKey, ASTKey, and MapKey to produce
// them. Implementations must be safe for concurrent use.
type Cache interface {
	// GetBlob returns the bytes stored under key.
	// Returns ErrCacheMiss if the key is not present.
	GetBlob(ctx context.Context, key string) ([]byte, error)

	// SetBlob stores data under key, replacing any previous value.
	SetBlob(ctx context.Context, key string, data []byte) error

	// GetStream returns a reader over the bytes stored under key.
	// Returns ErrCacheMiss if the key is not present. The caller must
	// close the returned reader.
	GetStream(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the backend.
	Close() error
}

// Key prefixes for the blob kinds stored by the engine.
const (
	prefixContent = "content"
	prefixAST     = "ast"
	prefixMap     = "map"
)

// ContentKey derives the cache key for an asset's raw content.
func ContentKey(contentHash string) string {
	return prefixContent + ":" + contentHash
}

// ASTKey derives the cache key for an asset's serialized AST.
func ASTKey(contentHash string) string {
	return prefixAST + ":" + contentHash
}

// MapKey derives the cache key for an asset's source map.
func MapKey(contentHash string) string {
	return prefixMap + ":" + contentHash
}
