package graph

import "slices"

// Invalidation records what should invalidate an asset's cached entry on a
// subsequent build: watched files, environment variables, and option keys,
// plus a startup flag that forces invalidation on every cold run.
type Invalidation struct {
	Files      []string
	EnvVars    []string
	OptionKeys []string
	OnStartup  bool
}

// merge folds other into inv, deduplicating entries.
func (inv *Invalidation) merge(other Invalidation) {
	for _, f := range other.Files {
		if !slices.Contains(inv.Files, f) {
			inv.Files = append(inv.Files, f)
		}
	}
	for _, v := range other.EnvVars {
		if !slices.Contains(inv.EnvVars, v) {
			inv.EnvVars = append(inv.EnvVars, v)
		}
	}
	for _, k := range other.OptionKeys {
		if !slices.Contains(inv.OptionKeys, k) {
			inv.OptionKeys = append(inv.OptionKeys, k)
		}
	}
	inv.OnStartup = inv.OnStartup || other.OnStartup
}

// AddInvalidation merges invalidation triggers for an asset.
// Triggers accumulate across transform passes; they are never removed until
// the asset itself is replaced.
func (g *AssetGraph) AddInvalidation(assetID string, inv Invalidation) error {
	if _, ok := g.assets[assetID]; !ok {
		return ErrUnknownAsset
	}
	existing, ok := g.invalidations[assetID]
	if !ok {
		existing = &Invalidation{}
		g.invalidations[assetID] = existing
	}
	existing.merge(inv)
	return nil
}

// Invalidation returns the accumulated invalidation triggers for an asset.
// Returns a zero value if none were recorded.
func (g *AssetGraph) Invalidation(assetID string) Invalidation {
	if inv, ok := g.invalidations[assetID]; ok {
		return *inv
	}
	return Invalidation{}
}

// WatchedFiles returns the union of all watched files across assets, sorted.
func (g *AssetGraph) WatchedFiles() []string {
	var files []string
	for _, inv := range g.invalidations {
		for _, f := range inv.Files {
			if !slices.Contains(files, f) {
				files = append(files, f)
			}
		}
	}
	slices.Sort(files)
	return files
}
