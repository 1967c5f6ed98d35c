package bundle

import (
	"github.com/packfold/packfold/pkg/asset"
	"github.com/packfold/packfold/pkg/env"
	"github.com/packfold/packfold/pkg/errors"
	"github.com/packfold/packfold/pkg/graph"
)

// bundleRef is a directed reference between two bundles, created when a
// dependency in the referencing bundle loads the referenced bundle.
type bundleRef struct {
	fromID string
	toID   string
	async  bool
}

// BundleGraph is the read view over bundles, groups, and references layered
// on an asset graph. It stores identifiers only; asset and dependency nodes
// remain owned by the underlying asset graph.
//
// Within the bundle graph every dependency of the asset graph resolves to
// one of three things: a specific asset reachable without crossing a bundle
// boundary, a set of bundles at an async or isolated boundary, or nothing
// because tree-shaking excluded it.
type BundleGraph struct {
	assets *graph.AssetGraph

	bundles     map[string]*Bundle
	bundleOrder []string

	groups     map[string]*BundleGroup
	groupOrder []string

	// refs is kept in creation order so traversal stays deterministic.
	refs     []bundleRef
	outRefs  map[string][]int // bundle ID -> indices into refs
	inRefs   map[string][]int
	groupsOf map[string][]string // bundle ID -> group IDs containing it

	// depBundles records dependencies resolved to bundle sets at a boundary.
	depBundles map[string][]string
	// internalized dependencies are treated as ordinary sync edges inside
	// the owning bundle even though their priority says otherwise.
	internalized map[string]map[string]bool // bundle ID -> dep ID
	// assetRefs records dependencies kept as live cross-bundle asset
	// references instead of being inlined.
	assetRefs map[string]string // dep ID -> asset ID

	bundlesWithAsset map[string][]string // asset ID -> bundle IDs
}

// MutableBundleGraph is the bundler-phase view. Exactly one bundler mutates
// a given graph during the bundle phase; afterwards callers downgrade to the
// embedded BundleGraph.
type MutableBundleGraph struct {
	*BundleGraph
}

// NewMutableBundleGraph creates an empty bundle graph over a committed
// asset graph.
func NewMutableBundleGraph(assets *graph.AssetGraph) *MutableBundleGraph {
	return &MutableBundleGraph{BundleGraph: &BundleGraph{
		assets:           assets,
		bundles:          make(map[string]*Bundle),
		groups:           make(map[string]*BundleGroup),
		outRefs:          make(map[string][]int),
		inRefs:           make(map[string][]int),
		groupsOf:         make(map[string][]string),
		depBundles:       make(map[string][]string),
		internalized:     make(map[string]map[string]bool),
		assetRefs:        make(map[string]string),
		bundlesWithAsset: make(map[string][]string),
	}}
}

// AssetGraph exposes the underlying asset graph for read access.
func (bg *BundleGraph) AssetGraph() *graph.AssetGraph { return bg.assets }

// CreateBundleOpts configures a new bundle. Supplying EntryAsset infers
// Type and Env from it; otherwise UniqueKey, Type, and Env are all required.
type CreateBundleOpts struct {
	EntryAsset *asset.Asset
	UniqueKey  string
	Type       string
	Env        *env.Environment
	Target     *env.Target

	IsEntry         bool
	IsInline        bool
	IsSplittable    bool
	NeedsStableName bool
}

// CreateBundle registers a new bundle with empty membership. The entry
// asset, when given, is recorded as an entry but not yet added to
// membership; the bundler adds it via AddAssetGraphToBundle.
func (mg *MutableBundleGraph) CreateBundle(opts CreateBundleOpts) (*Bundle, error) {
	targetName := ""
	if opts.Target != nil {
		targetName = opts.Target.Name
	}

	var b *Bundle
	if opts.EntryAsset != nil {
		e := opts.EntryAsset
		envID := ""
		if e.Env != nil {
			envID = e.Env.ID()
		}
		b = &Bundle{
			ID:            bundleID(e.ID, e.Type, envID, targetName),
			Type:          e.Type,
			Env:           e.Env,
			entryAssetIDs: []string{e.ID},
		}
		if opts.Type != "" {
			b.Type = opts.Type
		}
	} else {
		if opts.UniqueKey == "" || opts.Type == "" || opts.Env == nil {
			return nil, errors.New(errors.ErrCodeInvalidBundle,
				"bundle without an entry asset needs a unique key, type, and environment")
		}
		b = &Bundle{
			ID:        bundleID(opts.UniqueKey, opts.Type, opts.Env.ID(), targetName),
			Type:      opts.Type,
			Env:       opts.Env,
			UniqueKey: opts.UniqueKey,
		}
	}

	if _, exists := mg.bundles[b.ID]; exists {
		return nil, errors.New(errors.ErrCodeDuplicateBundle, "bundle %s already exists", b.ID)
	}

	b.HashReference = HashRefPrefix + b.ID
	b.Target = opts.Target
	b.IsEntry = opts.IsEntry
	b.IsInline = opts.IsInline
	b.IsSplittable = opts.IsSplittable
	b.NeedsStableName = opts.NeedsStableName
	b.members = make(map[string]bool)

	mg.bundles[b.ID] = b
	mg.bundleOrder = append(mg.bundleOrder, b.ID)
	return b, nil
}

// AddEntryToBundle registers an additional entry asset and pulls its
// reachable subgraph into the bundle.
func (mg *MutableBundleGraph) AddEntryToBundle(a *asset.Asset, b *Bundle) {
	for _, id := range b.entryAssetIDs {
		if id == a.ID {
			mg.AddAssetGraphToBundle(a, b)
			return
		}
	}
	b.entryAssetIDs = append(b.entryAssetIDs, a.ID)
	mg.AddAssetGraphToBundle(a, b)
}

// followsInto reports whether traversal from inside b continues through dep
// into its resolved asset, or stops at a bundle boundary.
func (bg *BundleGraph) followsInto(b *Bundle, dep *asset.Dependency, resolved *asset.Asset) bool {
	if bg.internalized[b.ID][dep.ID] {
		return true
	}
	if dep.IsAsync() {
		return false
	}
	switch resolved.BundleBehavior {
	case asset.BehaviorIsolated, asset.BehaviorInline:
		return false
	}
	return true
}

// AddAssetGraphToBundle adds the transitive closure reachable from a to the
// bundle, following resolved sync dependencies and skipping excluded
// dependencies and bundle boundaries. Idempotent: assets already present
// are not revisited.
func (mg *MutableBundleGraph) AddAssetGraphToBundle(a *asset.Asset, b *Bundle) {
	if !b.addMember(a.ID) {
		return
	}
	mg.bundlesWithAsset[a.ID] = append(mg.bundlesWithAsset[a.ID], b.ID)
	for _, dep := range mg.assets.DependenciesOf(a.ID) {
		if mg.assets.IsExcluded(dep.ID) {
			continue
		}
		resolved, ok := mg.assets.ResolvedAsset(dep.ID)
		if !ok || !mg.followsInto(b, dep, resolved) {
			continue
		}
		mg.AddAssetGraphToBundle(resolved, b)
	}
}

// RemoveAssetGraphFromBundle removes the same closure AddAssetGraphToBundle
// added. Assets kept alive by another entry of the bundle are not revisited
// once removed here; callers re-add subgraphs they still need.
func (mg *MutableBundleGraph) RemoveAssetGraphFromBundle(a *asset.Asset, b *Bundle) {
	if !b.removeMember(a.ID) {
		return
	}
	ids := mg.bundlesWithAsset[a.ID]
	for i, id := range ids {
		if id == b.ID {
			mg.bundlesWithAsset[a.ID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	for _, dep := range mg.assets.DependenciesOf(a.ID) {
		if mg.assets.IsExcluded(dep.ID) {
			continue
		}
		resolved, ok := mg.assets.ResolvedAsset(dep.ID)
		if !ok || !mg.followsInto(b, dep, resolved) {
			continue
		}
		mg.RemoveAssetGraphFromBundle(resolved, b)
	}
}

// InternalizeAsyncDependency converts a dependency that pointed across a
// bundle boundary into an ordinary in-bundle edge, used when the bundler
// decides not to split at that boundary after all.
func (mg *MutableBundleGraph) InternalizeAsyncDependency(b *Bundle, dep *asset.Dependency) {
	if mg.internalized[b.ID] == nil {
		mg.internalized[b.ID] = make(map[string]bool)
	}
	mg.internalized[b.ID][dep.ID] = true
	delete(mg.depBundles, dep.ID)
	if resolved, ok := mg.assets.ResolvedAsset(dep.ID); ok {
		mg.AddAssetGraphToBundle(resolved, b)
	}
}

// ResolveDependencyToBundles records that the dependency loads the given
// bundles at a boundary. Replaces any prior bundle resolution for the
// dependency.
func (mg *MutableBundleGraph) ResolveDependencyToBundles(dep *asset.Dependency, bundles ...*Bundle) {
	ids := make([]string, len(bundles))
	for i, b := range bundles {
		ids[i] = b.ID
	}
	mg.depBundles[dep.ID] = ids
}

// CreateAssetReference records that the dependency is kept as a live
// cross-bundle reference to the asset rather than being inlined.
func (mg *MutableBundleGraph) CreateAssetReference(dep *asset.Dependency, a *asset.Asset) {
	mg.assetRefs[dep.ID] = a.ID
}

// CreateBundleReference records that from loads to. Async references come
// from lazy or parallel dependencies; sync references from same-group
// siblings such as a CSS bundle attached to a JS entry.
func (mg *MutableBundleGraph) CreateBundleReference(from, to *Bundle, async bool) {
	idx := len(mg.refs)
	mg.refs = append(mg.refs, bundleRef{fromID: from.ID, toID: to.ID, async: async})
	mg.outRefs[from.ID] = append(mg.outRefs[from.ID], idx)
	mg.inRefs[to.ID] = append(mg.inRefs[to.ID], idx)
}

// CreateBundleGroup registers a group for the bundles loaded together to
// satisfy one entry or async dependency.
func (mg *MutableBundleGraph) CreateBundleGroup(dep *asset.Dependency, target *env.Target) *BundleGroup {
	targetName := ""
	if target != nil {
		targetName = target.Name
	}
	g := &BundleGroup{
		ID:       bundleID(dep.ID, "group", "", targetName),
		EntryDep: dep,
		Target:   target,
	}
	if existing, ok := mg.groups[g.ID]; ok {
		return existing
	}
	mg.groups[g.ID] = g
	mg.groupOrder = append(mg.groupOrder, g.ID)
	return g
}

// AddBundleToBundleGroup adds the bundle to the group. Idempotent.
func (mg *MutableBundleGraph) AddBundleToBundleGroup(b *Bundle, g *BundleGroup) {
	for _, id := range g.bundleIDs {
		if id == b.ID {
			return
		}
	}
	g.bundleIDs = append(g.bundleIDs, b.ID)
	mg.groupsOf[b.ID] = append(mg.groupsOf[b.ID], g.ID)
}

// Bundle looks up a bundle by ID.
func (bg *BundleGraph) Bundle(id string) (*Bundle, bool) {
	b, ok := bg.bundles[id]
	return b, ok
}

// Bundles returns all bundles in creation order.
func (bg *BundleGraph) Bundles() []*Bundle {
	out := make([]*Bundle, len(bg.bundleOrder))
	for i, id := range bg.bundleOrder {
		out[i] = bg.bundles[id]
	}
	return out
}

// BundleGroups returns all groups in creation order.
func (bg *BundleGraph) BundleGroups() []*BundleGroup {
	out := make([]*BundleGroup, len(bg.groupOrder))
	for i, id := range bg.groupOrder {
		out[i] = bg.groups[id]
	}
	return out
}

// GetBundlesInBundleGroup returns the group's bundles in registration order.
func (bg *BundleGraph) GetBundlesInBundleGroup(g *BundleGroup) []*Bundle {
	out := make([]*Bundle, 0, len(g.bundleIDs))
	for _, id := range g.bundleIDs {
		if b, ok := bg.bundles[id]; ok {
			out = append(out, b)
		}
	}
	return out
}

// BundlesContaining returns the bundles that currently contain the asset,
// in the order the asset was added to them.
func (bg *BundleGraph) BundlesContaining(assetID string) []*Bundle {
	ids := bg.bundlesWithAsset[assetID]
	out := make([]*Bundle, 0, len(ids))
	for _, id := range ids {
		out = append(out, bg.bundles[id])
	}
	return out
}

// BundlesForDependency returns the bundles a boundary dependency resolves
// to, or nil if the dependency resolves to an asset or is excluded.
func (bg *BundleGraph) BundlesForDependency(dep *asset.Dependency) []*Bundle {
	ids := bg.depBundles[dep.ID]
	out := make([]*Bundle, 0, len(ids))
	for _, id := range ids {
		if b, ok := bg.bundles[id]; ok {
			out = append(out, b)
		}
	}
	return out
}

// ResolvedAsset returns the asset a dependency resolves to within the
// bundle graph, or false if the dependency is excluded or resolves to
// bundles at a boundary.
func (bg *BundleGraph) ResolvedAsset(dep *asset.Dependency) (*asset.Asset, bool) {
	if bg.assets.IsExcluded(dep.ID) {
		return nil, false
	}
	if len(bg.depBundles[dep.ID]) > 0 {
		return nil, false
	}
	return bg.assets.ResolvedAsset(dep.ID)
}

// IsDependencySkipped reports whether tree-shaking or a failed optional
// resolution excluded the dependency.
func (bg *BundleGraph) IsDependencySkipped(dep *asset.Dependency) bool {
	return bg.assets.IsExcluded(dep.ID)
}
