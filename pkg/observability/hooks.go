// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers register hooks
// at startup to receive events about build execution and cache operations.
//
// The package uses a simple hooks pattern: hook interfaces per event
// category, no-op default implementations, and a global registry written
// once at application startup. Hooks are registered by main, not by
// libraries, which keeps the core free of observability frameworks and
// avoids import cycles.
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetBuildHooks(&myBuildHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Build().OnPhaseStart(ctx, "transform")
//	// ... run phase ...
//	observability.Build().OnPhaseComplete(ctx, "transform", duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// BuildHooks receives events from the build pipeline.
type BuildHooks interface {
	// Phase events. Phase names: resolve, transform, bundle, name, package.
	OnPhaseStart(ctx context.Context, phase string)
	OnPhaseComplete(ctx context.Context, phase string, duration time.Duration, err error)

	// OnAssetTransformed records one committed transform result.
	OnAssetTransformed(ctx context.Context, filePath string, depCount int)

	// OnBundleWritten records one packaged bundle and its output size.
	OnBundleWritten(ctx context.Context, name string, size int, duration time.Duration)
}

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// NoopBuildHooks is a no-op implementation of BuildHooks.
type NoopBuildHooks struct{}

func (NoopBuildHooks) OnPhaseStart(context.Context, string)                          {}
func (NoopBuildHooks) OnPhaseComplete(context.Context, string, time.Duration, error) {}
func (NoopBuildHooks) OnAssetTransformed(context.Context, string, int)               {}
func (NoopBuildHooks) OnBundleWritten(context.Context, string, int, time.Duration)   {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

var (
	buildHooks BuildHooks = NoopBuildHooks{}
	cacheHooks CacheHooks = NoopCacheHooks{}
	hooksMu    sync.RWMutex
)

// SetBuildHooks registers custom build hooks.
// This should be called once at application startup before any build runs.
func SetBuildHooks(h BuildHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		buildHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache
// operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Build returns the registered build hooks.
func Build() BuildHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return buildHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores the no-op defaults. Intended for tests.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	buildHooks = NoopBuildHooks{}
	cacheHooks = NoopCacheHooks{}
}
