package bundle

import (
	"github.com/packfold/packfold/pkg/asset"
	"github.com/packfold/packfold/pkg/errors"
)

// RefFilter narrows reference queries by how the referenced bundle loads.
type RefFilter int

// Reference filters.
const (
	RefAll RefFilter = iota
	// RefSync matches references loaded together with the referencing
	// bundle, such as same-group siblings.
	RefSync
	// RefAsync matches references loaded on demand or in parallel.
	RefAsync
)

func (f RefFilter) matches(async bool) bool {
	switch f {
	case RefSync:
		return !async
	case RefAsync:
		return async
	default:
		return true
	}
}

// ReferenceOptions constrains GetReferencedBundles and
// GetReferencingBundles. OfBundle pins the referencing side and InBundle
// pins the referenced side; a constraint that contradicts the queried
// bundle is an error rather than a silent precedence.
type ReferenceOptions struct {
	Filter   RefFilter
	OfBundle *Bundle
	InBundle *Bundle
}

// GetReferencedBundles returns the bundles that b references, in reference
// creation order, deduplicated.
func (bg *BundleGraph) GetReferencedBundles(b *Bundle, opts ReferenceOptions) ([]*Bundle, error) {
	if opts.OfBundle != nil && opts.OfBundle.ID != b.ID {
		return nil, errors.New(errors.ErrCodeConflictingReference,
			"referenced-bundle query of %s constrained to references of %s", b.ID, opts.OfBundle.ID)
	}
	var out []*Bundle
	seen := make(map[string]bool)
	for _, idx := range bg.outRefs[b.ID] {
		ref := bg.refs[idx]
		if !opts.Filter.matches(ref.async) || seen[ref.toID] {
			continue
		}
		if opts.InBundle != nil && opts.InBundle.ID != ref.toID {
			continue
		}
		seen[ref.toID] = true
		out = append(out, bg.bundles[ref.toID])
	}
	return out, nil
}

// GetReferencingBundles returns the bundles that reference b, in reference
// creation order, deduplicated.
func (bg *BundleGraph) GetReferencingBundles(b *Bundle, opts ReferenceOptions) ([]*Bundle, error) {
	if opts.InBundle != nil && opts.InBundle.ID != b.ID {
		return nil, errors.New(errors.ErrCodeConflictingReference,
			"referencing-bundle query of %s constrained to references into %s", b.ID, opts.InBundle.ID)
	}
	var out []*Bundle
	seen := make(map[string]bool)
	for _, idx := range bg.inRefs[b.ID] {
		ref := bg.refs[idx]
		if !opts.Filter.matches(ref.async) || seen[ref.fromID] {
			continue
		}
		if opts.OfBundle != nil && opts.OfBundle.ID != ref.fromID {
			continue
		}
		seen[ref.fromID] = true
		out = append(out, bg.bundles[ref.fromID])
	}
	return out, nil
}

// GetChildBundles returns the bundles b loads, directly or through the
// bundle groups its boundary dependencies resolve to.
func (bg *BundleGraph) GetChildBundles(b *Bundle) []*Bundle {
	var out []*Bundle
	seen := map[string]bool{b.ID: true}
	for _, idx := range bg.outRefs[b.ID] {
		ref := bg.refs[idx]
		if seen[ref.toID] {
			continue
		}
		seen[ref.toID] = true
		out = append(out, bg.bundles[ref.toID])
	}
	for _, assetID := range b.AssetIDs() {
		for _, dep := range bg.assets.DependenciesOf(assetID) {
			for _, id := range bg.depBundles[dep.ID] {
				if seen[id] {
					continue
				}
				seen[id] = true
				out = append(out, bg.bundles[id])
			}
		}
	}
	return out
}

// IsAssetReachableFromBundle reports whether the asset can be reached from
// the bundle's entry assets without leaving the bundle's current
// membership.
func (bg *BundleGraph) IsAssetReachableFromBundle(a *asset.Asset, b *Bundle) bool {
	if !b.HasAsset(a.ID) {
		return false
	}
	visited := make(map[string]bool)
	var walk func(id string) bool
	walk = func(id string) bool {
		if visited[id] || !b.HasAsset(id) {
			return false
		}
		if id == a.ID {
			return true
		}
		visited[id] = true
		for _, dep := range bg.assets.DependenciesOf(id) {
			resolved, ok := bg.ResolvedAsset(dep)
			if !ok {
				continue
			}
			if walk(resolved.ID) {
				return true
			}
		}
		return false
	}
	for _, id := range b.EntryAssetIDs() {
		if id == a.ID || walk(id) {
			return true
		}
	}
	return false
}

// GetReachableBundleWithAsset searches b and then the bundles it references
// (breadth-first, in reference creation order) for the first bundle whose
// current membership contains the asset. Returns nil when no reachable
// bundle contains it.
func (bg *BundleGraph) GetReachableBundleWithAsset(b *Bundle, a *asset.Asset) *Bundle {
	queue := []string{b.ID}
	seen := map[string]bool{b.ID: true}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		candidate := bg.bundles[id]
		if candidate.HasAsset(a.ID) {
			return candidate
		}
		for _, idx := range bg.outRefs[id] {
			ref := bg.refs[idx]
			if !seen[ref.toID] {
				seen[ref.toID] = true
				queue = append(queue, ref.toID)
			}
		}
	}
	return nil
}

// IsAssetReferenced reports whether any dependency outside the bundles
// containing the asset keeps a live reference to it, either recorded via
// CreateAssetReference or through an incoming dependency whose source asset
// lives in a bundle that does not contain the asset.
func (bg *BundleGraph) IsAssetReferenced(a *asset.Asset) bool {
	for _, assetID := range bg.assetRefs {
		if assetID == a.ID {
			return true
		}
	}
	for _, dep := range bg.assets.IncomingDependencies(a.ID) {
		if dep.SourceAssetID == "" {
			continue
		}
		for _, src := range bg.bundlesWithAsset[dep.SourceAssetID] {
			if !bg.bundles[src].HasAsset(a.ID) {
				return true
			}
		}
	}
	return false
}
