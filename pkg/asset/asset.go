// Package asset defines the units the bundler graph is made of: assets
// (processed source files), dependencies (directed module requests), their
// symbol tables, and the lazily-materialized content store that serves each
// asset's code, AST, and source map out of the blob cache.
package asset

import (
	"github.com/packfold/packfold/pkg/cache"
	"github.com/packfold/packfold/pkg/env"
)

// BundleBehavior controls how an asset participates in bundling.
type BundleBehavior string

// Bundle behaviors.
const (
	// BehaviorNone is the default: the asset is grouped normally.
	BehaviorNone BundleBehavior = ""
	// BehaviorIsolated forces the asset into its own bundle with no shared code.
	BehaviorIsolated BundleBehavior = "isolated"
	// BehaviorInline keeps the asset's bundle out of the dist dir so another
	// bundle can embed its contents.
	BehaviorInline BundleBehavior = "inline"
)

// Asset is one processed unit of source content.
//
// Assets are created when a transformer finishes producing a result and are
// immutable once committed to the graph; only the content store's memo slots
// fill in lazily afterwards. Consumers other than the owning pipeline stage
// must never mutate an asset in place.
type Asset struct {
	ID             string           // stable identity, derived from path/env/type
	FilePath       string           // source file path
	Type           string           // extension-like tag ("js", "css", ...)
	Env            *env.Environment // owning environment
	IsSource       bool             // project code, as opposed to external packages
	SideEffects    bool             // false permits eliding the asset when unused
	BundleBehavior BundleBehavior
	UniqueKey      string // disambiguates virtual assets sharing a file path

	// Symbols maps export names to their defining local bindings.
	Symbols *SymbolTable

	// Blob cache references. Empty string means "not cached".
	ContentKey string
	ASTKey     string
	MapKey     string

	// Dependencies declared by this asset's transform, in declaration order.
	Dependencies []*Dependency
}

// AssetOptions are the inputs needed to derive a stable asset identity.
type AssetOptions struct {
	FilePath       string
	Type           string
	Env            *env.Environment
	IsSource       bool
	SideEffects    bool
	BundleBehavior BundleBehavior
	UniqueKey      string
	Pipeline       string
}

// New creates an asset with a stable content-derived ID.
// Two calls with identical options produce identical IDs, which is what lets
// a re-transform replace its predecessor in the graph.
func New(opts AssetOptions) *Asset {
	envID := ""
	if opts.Env != nil {
		envID = opts.Env.ID()
	}
	id := cache.ShortHash([]byte(opts.FilePath + ":" + opts.Type + ":" + envID + ":" + opts.UniqueKey + ":" + opts.Pipeline))
	return &Asset{
		ID:             id,
		FilePath:       opts.FilePath,
		Type:           opts.Type,
		Env:            opts.Env,
		IsSource:       opts.IsSource,
		SideEffects:    opts.SideEffects,
		BundleBehavior: opts.BundleBehavior,
		UniqueKey:      opts.UniqueKey,
		Symbols:        NewSymbolTable(),
	}
}

// AddDependency appends a declared dependency, recording this asset as its
// source. The dependency's identity is re-derived since it includes the
// source asset.
func (a *Asset) AddDependency(d *Dependency) {
	d.SourceAssetID = a.ID
	d.ID = d.computeID()
	a.Dependencies = append(a.Dependencies, d)
}
