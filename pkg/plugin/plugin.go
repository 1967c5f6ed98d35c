// Package plugin defines the extension points of the build pipeline.
//
// Each pipeline phase has a closed interface; a registered plugin instance
// implements exactly one of them. The pipeline holds an ordered sequence of
// plugins per phase and asks each in turn until one produces a result.
// Plugins receive read access to assets, dependencies, and bundles, and a
// mutable view only where their phase owns the structure (transformers add
// assets, the bundler mutates the bundle graph).
package plugin

import (
	"context"
	"time"

	"github.com/packfold/packfold/pkg/asset"
	"github.com/packfold/packfold/pkg/bundle"
	"github.com/packfold/packfold/pkg/config"
	"github.com/packfold/packfold/pkg/env"
	"github.com/packfold/packfold/pkg/graph"
)

// ResolveResult is a resolver's answer for one dependency.
type ResolveResult struct {
	// FilePath is the resolved source file. Empty when Excluded.
	FilePath string
	// Excluded drops the dependency from the build without error.
	Excluded bool
	// Pipeline optionally routes the resolved file to a named transform
	// pipeline.
	Pipeline string
	// InvalidateOnFileChange lists extra files whose change should
	// invalidate the resolution, such as package.json files consulted
	// during lookup.
	InvalidateOnFileChange []string
}

// Resolver turns a dependency specifier into a file path. from is the
// importing asset's file path, empty for entry dependencies. Returning
// (nil, nil) passes the dependency to the next registered resolver; an
// error from the last resolver fails the dependency, which is fatal unless
// the dependency is optional.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, dep *asset.Dependency, from string, cfg config.Config) (*ResolveResult, error)
}

// TransformInput is one source file handed to a transformer.
type TransformInput struct {
	FilePath string
	Code     []byte
	Env      *env.Environment
	Pipeline string
}

// Transformer produces assets, their declared dependencies, and their
// symbol tables from a source file. A transformer may emit several assets
// for one input. Content belongs in the blob cache under the asset's
// content/AST keys, not on the asset itself.
type Transformer interface {
	Name() string
	// Match reports whether this transformer handles the file.
	Match(filePath string) bool
	Transform(ctx context.Context, in TransformInput) ([]graph.TransformResult, error)
}

// Bundler partitions the asset graph into bundles. Exactly one bundler
// runs per build; it is the only mutator of the bundle graph.
type Bundler interface {
	Name() string
	Bundle(ctx context.Context, g *bundle.MutableBundleGraph, cfg config.Config) error
}

// Namer assigns a bundle's file path relative to its target's dist dir.
// Returning "" passes the bundle to the next namer; every bundle must be
// named by some namer.
type Namer interface {
	Name() string
	NameBundle(ctx context.Context, b *bundle.Bundle, bg *bundle.BundleGraph) (string, error)
}

// ContentResolver hands packagers and validators the per-asset content
// store, which memoizes code, AST, and map materialization.
type ContentResolver interface {
	Store(a *asset.Asset) *asset.ContentStore
}

// PackageOutput is a packaged bundle's contents and optional source map.
type PackageOutput struct {
	Contents []byte
	Map      []byte
}

// Packager turns a bundle and its member assets into output contents.
type Packager interface {
	Name() string
	// Match reports whether this packager handles the bundle type.
	Match(bundleType string) bool
	Package(ctx context.Context, b *bundle.Bundle, bg *bundle.BundleGraph, contents ContentResolver) (PackageOutput, error)
}

// Optimizer post-processes packaged output, for example minification.
// Optimizers run in registration order; each receives the previous output.
type Optimizer interface {
	Name() string
	Match(bundleType string) bool
	Optimize(ctx context.Context, b *bundle.Bundle, out PackageOutput) (PackageOutput, error)
}

// Validator inspects committed assets and reports problems. Validation
// errors carry diagnostics and fail the build after all validators ran.
type Validator interface {
	Name() string
	Validate(ctx context.Context, a *asset.Asset, contents ContentResolver) error
}

// EventType classifies reporter events.
type EventType string

// Reporter events.
const (
	EventBuildStart    EventType = "build-start"
	EventPhaseStart    EventType = "phase-start"
	EventPhaseComplete EventType = "phase-complete"
	EventBundleWritten EventType = "bundle-written"
	EventBuildSuccess  EventType = "build-success"
	EventBuildFailure  EventType = "build-failure"
)

// Event is one build lifecycle notification.
type Event struct {
	Type     EventType
	Phase    string
	Bundle   *bundle.Bundle
	FilePath string
	Size     int
	Duration time.Duration
	Err      error
}

// Reporter observes build events. Reporter errors are logged, never fatal.
type Reporter interface {
	Name() string
	Report(ctx context.Context, ev Event) error
}
