// Package graph implements the incrementally-built asset/dependency graph.
//
// Nodes are assets and dependencies; edges record which asset declared a
// dependency and which asset a dependency resolved to. The graph is built as
// transform results are integrated and is mutated only by the resolve/
// transform phase; downstream consumers treat it as read-only. Cycles are
// permitted (mutually importing modules); traversals track visited sets
// instead of rejecting cycles at insertion time.
package graph

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/packfold/packfold/pkg/asset"
)

// Sentinel errors for graph operations.
var (
	// ErrUnknownAsset is returned when an operation references an asset ID
	// that has not been committed to the graph.
	ErrUnknownAsset = errors.New("unknown asset")

	// ErrUnknownDependency is returned when an operation references a
	// dependency ID that is not in the graph.
	ErrUnknownDependency = errors.New("unknown dependency")
)

// UnresolvedDependencyError reports a required dependency whose resolution
// failed. It is fatal to the build.
type UnresolvedDependencyError struct {
	Specifier     string
	SourceAssetID string
	SourcePath    string
	Cause         error
}

// Error implements the error interface.
func (e *UnresolvedDependencyError) Error() string {
	from := e.SourcePath
	if from == "" {
		from = "entry"
	}
	if e.Cause != nil {
		return fmt.Sprintf("cannot resolve %q from %s: %v", e.Specifier, from, e.Cause)
	}
	return fmt.Sprintf("cannot resolve %q from %s", e.Specifier, from)
}

// Unwrap returns the underlying cause.
func (e *UnresolvedDependencyError) Unwrap() error { return e.Cause }

// TransformResult is the output of one transformer invocation: the produced
// asset plus the dependencies it declared. Declared dependencies are left
// unresolved until a resolver supplies a target.
//
// Content carries the transformed bytes for the pipeline to persist under
// the asset's content key; the graph itself never stores content.
type TransformResult struct {
	Asset        *asset.Asset
	Dependencies []*asset.Dependency
	Content      []byte
}

// AssetGraph owns all asset and dependency nodes.
// It is not safe for concurrent mutation; the owning pipeline phase
// serializes writes.
type AssetGraph struct {
	assets map[string]*asset.Asset
	deps   map[string]*asset.Dependency

	// outgoing lists dependency IDs declared by each asset, in declaration order.
	outgoing map[string][]string
	// incoming lists dependency IDs that resolved to each asset, in resolution order.
	incoming map[string][]string

	// resolution binds a dependency to the asset it resolved to.
	resolution map[string]string
	// excluded marks dependencies dropped by tree-shaking or exclusion.
	excluded map[string]bool
	// optionalFailed marks optional dependencies whose resolution failed.
	optionalFailed map[string]bool

	// entries are the build-root dependencies, in registration order.
	entries []string

	invalidations map[string]*Invalidation
}

// NewAssetGraph creates an empty asset graph.
func NewAssetGraph() *AssetGraph {
	return &AssetGraph{
		assets:         make(map[string]*asset.Asset),
		deps:           make(map[string]*asset.Dependency),
		outgoing:       make(map[string][]string),
		incoming:       make(map[string][]string),
		resolution:     make(map[string]string),
		excluded:       make(map[string]bool),
		optionalFailed: make(map[string]bool),
		invalidations:  make(map[string]*Invalidation),
	}
}

// AddEntry registers a build-root dependency.
func (g *AssetGraph) AddEntry(d *asset.Dependency) {
	if _, exists := g.deps[d.ID]; !exists {
		g.entries = append(g.entries, d.ID)
	}
	g.deps[d.ID] = d
}

// Entries returns the build-root dependencies in registration order.
func (g *AssetGraph) Entries() []*asset.Dependency {
	out := make([]*asset.Dependency, len(g.entries))
	for i, id := range g.entries {
		out[i] = g.deps[id]
	}
	return out
}

// CommitTransformResult integrates one transformer output.
//
// The produced asset replaces any prior asset with the same identity; its
// declared dependencies are registered unresolved. A failed plugin
// invocation before this call leaves previously-committed nodes intact;
// there is no rollback.
func (g *AssetGraph) CommitTransformResult(res TransformResult) {
	a := res.Asset
	if prev, exists := g.assets[a.ID]; exists {
		// Replacing an asset discards its previous dependency edges.
		for _, depID := range g.outgoing[prev.ID] {
			g.removeDependency(depID)
		}
		g.outgoing[a.ID] = nil
	}
	g.assets[a.ID] = a

	for _, d := range res.Dependencies {
		if d.SourceAssetID == "" {
			a.AddDependency(d)
		} else if !slices.Contains(asset.DependencyIDs(a.Dependencies), d.ID) {
			a.Dependencies = append(a.Dependencies, d)
		}
		g.deps[d.ID] = d
		g.outgoing[a.ID] = append(g.outgoing[a.ID], d.ID)
	}
}

// removeDependency drops a dependency node and its resolution edges.
func (g *AssetGraph) removeDependency(depID string) {
	if target, ok := g.resolution[depID]; ok {
		g.incoming[target] = slices.DeleteFunc(g.incoming[target], func(s string) bool { return s == depID })
		delete(g.resolution, depID)
	}
	delete(g.excluded, depID)
	delete(g.optionalFailed, depID)
	delete(g.deps, depID)
}

// ResolveDependency binds a dependency to exactly one asset.
// Both nodes must already be in the graph.
func (g *AssetGraph) ResolveDependency(depID, assetID string) error {
	if _, ok := g.deps[depID]; !ok {
		return ErrUnknownDependency
	}
	if _, ok := g.assets[assetID]; !ok {
		return ErrUnknownAsset
	}
	if prev, ok := g.resolution[depID]; ok {
		g.incoming[prev] = slices.DeleteFunc(g.incoming[prev], func(s string) bool { return s == depID })
	}
	g.resolution[depID] = assetID
	g.incoming[assetID] = append(g.incoming[assetID], depID)
	delete(g.excluded, depID)
	delete(g.optionalFailed, depID)
	return nil
}

// ExcludeDependency marks a dependency as dropped (tree-shaken or mapped to
// nothing). Excluded dependencies resolve to no asset.
func (g *AssetGraph) ExcludeDependency(depID string) error {
	if _, ok := g.deps[depID]; !ok {
		return ErrUnknownDependency
	}
	if prev, ok := g.resolution[depID]; ok {
		g.incoming[prev] = slices.DeleteFunc(g.incoming[prev], func(s string) bool { return s == depID })
		delete(g.resolution, depID)
	}
	g.excluded[depID] = true
	return nil
}

// MarkResolutionFailed records a failed resolution.
//
// On an optional dependency the failure is recorded and the build proceeds
// with the dependency excluded. On a required dependency it returns an
// *UnresolvedDependencyError, which is fatal to the build.
func (g *AssetGraph) MarkResolutionFailed(depID string, cause error) error {
	d, ok := g.deps[depID]
	if !ok {
		return ErrUnknownDependency
	}
	if !d.IsOptional {
		sourcePath := ""
		if src, ok := g.assets[d.SourceAssetID]; ok {
			sourcePath = src.FilePath
		}
		return &UnresolvedDependencyError{
			Specifier:     d.Specifier,
			SourceAssetID: d.SourceAssetID,
			SourcePath:    sourcePath,
			Cause:         cause,
		}
	}
	g.optionalFailed[depID] = true
	g.excluded[depID] = true
	return nil
}

// Asset returns the asset with the given ID.
func (g *AssetGraph) Asset(id string) (*asset.Asset, bool) {
	a, ok := g.assets[id]
	return a, ok
}

// AssetByPath returns the first asset with the given file path and
// environment, if any.
func (g *AssetGraph) AssetByPath(filePath, envID string) (*asset.Asset, bool) {
	for _, id := range g.sortedAssetIDs() {
		a := g.assets[id]
		aEnvID := ""
		if a.Env != nil {
			aEnvID = a.Env.ID()
		}
		if a.FilePath == filePath && aEnvID == envID {
			return a, true
		}
	}
	return nil, false
}

// Dependency returns the dependency with the given ID.
func (g *AssetGraph) Dependency(id string) (*asset.Dependency, bool) {
	d, ok := g.deps[id]
	return d, ok
}

// Assets returns all assets sorted by ID for deterministic iteration.
func (g *AssetGraph) Assets() []*asset.Asset {
	ids := g.sortedAssetIDs()
	out := make([]*asset.Asset, len(ids))
	for i, id := range ids {
		out[i] = g.assets[id]
	}
	return out
}

func (g *AssetGraph) sortedAssetIDs() []string {
	ids := make([]string, 0, len(g.assets))
	for id := range g.assets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AssetCount returns the number of assets in the graph.
func (g *AssetGraph) AssetCount() int { return len(g.assets) }

// DependencyCount returns the number of dependencies in the graph.
func (g *AssetGraph) DependencyCount() int { return len(g.deps) }

// DependenciesOf returns the dependencies declared by an asset, in
// declaration order.
func (g *AssetGraph) DependenciesOf(assetID string) []*asset.Dependency {
	ids := g.outgoing[assetID]
	out := make([]*asset.Dependency, 0, len(ids))
	for _, id := range ids {
		if d, ok := g.deps[id]; ok {
			out = append(out, d)
		}
	}
	return out
}

// IncomingDependencies returns the dependencies that resolved to an asset.
func (g *AssetGraph) IncomingDependencies(assetID string) []*asset.Dependency {
	ids := g.incoming[assetID]
	out := make([]*asset.Dependency, 0, len(ids))
	for _, id := range ids {
		if d, ok := g.deps[id]; ok {
			out = append(out, d)
		}
	}
	return out
}

// ResolvedAsset returns the asset a dependency resolved to.
// The second result is false for unresolved or excluded dependencies.
func (g *AssetGraph) ResolvedAsset(depID string) (*asset.Asset, bool) {
	assetID, ok := g.resolution[depID]
	if !ok {
		return nil, false
	}
	a, ok := g.assets[assetID]
	return a, ok
}

// IsExcluded reports whether a dependency was dropped.
func (g *AssetGraph) IsExcluded(depID string) bool { return g.excluded[depID] }

// OptionalFailed reports whether an optional dependency failed resolution.
func (g *AssetGraph) OptionalFailed(depID string) bool { return g.optionalFailed[depID] }

// UnresolvedDependencies returns dependencies that are neither resolved nor
// excluded, in a deterministic order.
func (g *AssetGraph) UnresolvedDependencies() []*asset.Dependency {
	ids := make([]string, 0)
	for id := range g.deps {
		if _, resolved := g.resolution[id]; !resolved && !g.excluded[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]*asset.Dependency, len(ids))
	for i, id := range ids {
		out[i] = g.deps[id]
	}
	return out
}
