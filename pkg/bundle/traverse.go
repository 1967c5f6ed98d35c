package bundle

import (
	"github.com/packfold/packfold/pkg/asset"
)

// Actions lets a visitor prune or halt a traversal from inside its enter
// callback.
type Actions struct {
	skip bool
	stop bool
}

// SkipChildren prunes the current node's subtree. The traversal continues
// with the node's siblings and the node's exit callback still fires.
func (a *Actions) SkipChildren() { a.skip = true }

// Stop halts the entire traversal immediately. No further callbacks fire,
// including exit callbacks for nodes already entered.
func (a *Actions) Stop() { a.stop = true }

// Visitor is an enter/exit callback pair. Enter receives the context value
// returned by the parent's Enter, so information flows parent to children
// without external mutable state. Exit may be nil.
type Visitor[N any] struct {
	Enter func(node N, parentCtx any, actions *Actions) any
	Exit  func(node N)
}

// Node is one step of a full bundle-graph walk. Exactly one field is set.
type Node struct {
	Bundle     *Bundle
	Asset      *asset.Asset
	Dependency *asset.Dependency
}

// TraverseBundles walks bundles depth-first along bundle references,
// starting from root bundles (bundles no other bundle references) in
// creation order. Reference edges are followed in creation order, so the
// visitation sequence is deterministic for a given graph. A bundle
// reachable along several reference paths is visited once.
func (bg *BundleGraph) TraverseBundles(v Visitor[*Bundle]) {
	var actions Actions
	visited := make(map[string]bool)

	var walk func(id string, parentCtx any)
	walk = func(id string, parentCtx any) {
		if actions.stop || visited[id] {
			return
		}
		visited[id] = true
		b := bg.bundles[id]

		actions.skip = false
		ctx := v.Enter(b, parentCtx, &actions)
		if actions.stop {
			return
		}
		if !actions.skip {
			for _, idx := range bg.outRefs[id] {
				walk(bg.refs[idx].toID, ctx)
				if actions.stop {
					return
				}
			}
		}
		if v.Exit != nil {
			v.Exit(b)
		}
	}

	for _, id := range bg.traversalRoots() {
		walk(id, nil)
		if actions.stop {
			return
		}
	}
}

// traversalRoots returns the bundles a traversal starts from: every bundle
// without an incoming reference, plus one cycle-breaking root per component
// those bundles cannot reach. The set is fixed before any visitor runs, so
// a subtree pruned with SkipChildren is never re-entered through a
// fabricated root.
func (bg *BundleGraph) traversalRoots() []string {
	reachable := make(map[string]bool)
	var mark func(id string)
	mark = func(id string) {
		if reachable[id] {
			return
		}
		reachable[id] = true
		for _, idx := range bg.outRefs[id] {
			mark(bg.refs[idx].toID)
		}
	}

	var roots []string
	for _, id := range bg.bundleOrder {
		if len(bg.inRefs[id]) > 0 {
			continue
		}
		roots = append(roots, id)
		mark(id)
	}
	// Reference cycles can leave every bundle in a component with an
	// incoming edge; the earliest-created bundle of each such component
	// stands in as its root.
	for _, id := range bg.bundleOrder {
		if reachable[id] {
			continue
		}
		roots = append(roots, id)
		mark(id)
	}
	return roots
}

// TraverseAssets walks the bundle's assets depth-first from its entry
// assets, following resolved in-bundle dependencies in declaration order.
func (bg *BundleGraph) TraverseAssets(b *Bundle, v Visitor[*asset.Asset]) {
	var actions Actions
	visited := make(map[string]bool)

	var walk func(a *asset.Asset, parentCtx any)
	walk = func(a *asset.Asset, parentCtx any) {
		if actions.stop || visited[a.ID] || !b.HasAsset(a.ID) {
			return
		}
		visited[a.ID] = true

		actions.skip = false
		ctx := v.Enter(a, parentCtx, &actions)
		if actions.stop {
			return
		}
		if !actions.skip {
			for _, dep := range bg.assets.DependenciesOf(a.ID) {
				resolved, ok := bg.ResolvedAsset(dep)
				if !ok {
					continue
				}
				walk(resolved, ctx)
				if actions.stop {
					return
				}
			}
		}
		if v.Exit != nil {
			v.Exit(a)
		}
	}

	for _, id := range b.EntryAssetIDs() {
		a, ok := bg.assets.Asset(id)
		if !ok {
			continue
		}
		walk(a, nil)
		if actions.stop {
			return
		}
	}
	// Membership added without an entry path (for example by a bundler
	// placing shared assets directly) is still visited.
	for _, id := range b.AssetIDs() {
		if visited[id] {
			continue
		}
		a, ok := bg.assets.Asset(id)
		if !ok {
			continue
		}
		walk(a, nil)
		if actions.stop {
			return
		}
	}
}

// Traverse walks the whole bundle graph: bundles in TraverseBundles order,
// and within each bundle its assets interleaved with the dependencies that
// connect them. Dependency nodes are visited between an asset and the
// resolved asset they lead to.
func (bg *BundleGraph) Traverse(v Visitor[Node]) {
	var actions Actions

	var walkAsset func(b *Bundle, a *asset.Asset, parentCtx any, visited map[string]bool)
	walkAsset = func(b *Bundle, a *asset.Asset, parentCtx any, visited map[string]bool) {
		if actions.stop || visited[a.ID] || !b.HasAsset(a.ID) {
			return
		}
		visited[a.ID] = true

		actions.skip = false
		ctx := v.Enter(Node{Asset: a}, parentCtx, &actions)
		if actions.stop {
			return
		}
		if !actions.skip {
			for _, dep := range bg.assets.DependenciesOf(a.ID) {
				if bg.IsDependencySkipped(dep) {
					continue
				}
				actions.skip = false
				depCtx := v.Enter(Node{Dependency: dep}, ctx, &actions)
				if actions.stop {
					return
				}
				if !actions.skip {
					if resolved, ok := bg.ResolvedAsset(dep); ok {
						walkAsset(b, resolved, depCtx, visited)
						if actions.stop {
							return
						}
					}
				}
				if v.Exit != nil {
					v.Exit(Node{Dependency: dep})
				}
			}
		}
		if v.Exit != nil {
			v.Exit(Node{Asset: a})
		}
	}

	bg.TraverseBundles(Visitor[*Bundle]{
		Enter: func(b *Bundle, parentCtx any, bundleActions *Actions) any {
			actions.skip = false
			ctx := v.Enter(Node{Bundle: b}, parentCtx, &actions)
			if actions.stop {
				bundleActions.Stop()
				return ctx
			}
			if actions.skip {
				bundleActions.SkipChildren()
				return ctx
			}
			visited := make(map[string]bool)
			for _, id := range b.EntryAssetIDs() {
				if a, ok := bg.assets.Asset(id); ok {
					walkAsset(b, a, ctx, visited)
					if actions.stop {
						bundleActions.Stop()
						return ctx
					}
				}
			}
			return ctx
		},
		Exit: func(b *Bundle) {
			if v.Exit != nil {
				v.Exit(Node{Bundle: b})
			}
		},
	})
}
