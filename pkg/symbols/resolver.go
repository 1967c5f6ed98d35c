// Package symbols resolves exported symbol names across re-export chains.
//
// Given an asset and one of its export names, the resolver walks re-export
// chains until it finds the asset and local binding that actually defines
// the value, without crossing outside a given bundle boundary. Packagers use
// the result to inline bindings; tree-shaking uses ExportedSymbols to
// enumerate what a subgraph really exports.
package symbols

import (
	"github.com/packfold/packfold/pkg/asset"
	"github.com/packfold/packfold/pkg/bundle"
	"github.com/packfold/packfold/pkg/errors"
)

// Status classifies a resolution result.
type Status int

// Resolution statuses.
const (
	// StatusFound means Symbol names the genuine local definition on Asset.
	StatusFound Status = iota
	// StatusDynamic means static analysis bailed out for Asset; the caller
	// must read the binding dynamically off the asset rather than inlining.
	StatusDynamic
	// StatusUnresolved means the name was not found, or the chain broke at
	// a bundle boundary or a re-export cycle. Soft condition, not an error:
	// callers branch on it for diagnostics or keep a runtime reference.
	StatusUnresolved
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusDynamic:
		return "dynamic"
	case StatusUnresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}

// Resolution is the outcome of tracing one exported symbol.
type Resolution struct {
	// Asset is where the trace ended: the defining asset for StatusFound,
	// or the last asset reached before the chain broke.
	Asset *asset.Asset
	// ExportSymbol is the export name as seen on Asset.
	ExportSymbol string
	// Symbol is the local binding name. Empty unless StatusFound.
	Symbol string
	// Loc is the last traversed declaration location, when known.
	Loc *errors.Location
	Status Status
}

type visitKey struct {
	assetID string
	export  string
}

// Resolve traces exportSymbol on a through re-export chains.
//
// boundary, when non-nil, limits how far the trace may advance: if the next
// hop lands on an asset the boundary bundle does not contain, resolution
// stops at the current asset with StatusUnresolved, signaling the caller to
// keep an explicit cross-bundle reference. Re-export cycles terminate with
// StatusUnresolved rather than looping.
func Resolve(bg *bundle.BundleGraph, a *asset.Asset, exportSymbol string, boundary *bundle.Bundle) Resolution {
	visited := make(map[visitKey]bool)
	cur := a
	name := exportSymbol
	var loc *errors.Location

	for {
		key := visitKey{assetID: cur.ID, export: name}
		if visited[key] {
			return Resolution{Asset: cur, ExportSymbol: name, Loc: loc, Status: StatusUnresolved}
		}
		visited[key] = true

		if cur.Symbols.IsCleared() {
			return Resolution{Asset: cur, ExportSymbol: name, Loc: loc, Status: StatusDynamic}
		}

		sym, ok := cur.Symbols.Get(name)
		if !ok {
			return Resolution{Asset: cur, ExportSymbol: name, Loc: loc, Status: StatusUnresolved}
		}
		if sym.Loc != nil {
			loc = sym.Loc
		}

		next, nextName, ok := reExportTarget(bg, cur, sym)
		if !ok {
			return Resolution{Asset: cur, ExportSymbol: name, Symbol: sym.Local, Loc: loc, Status: StatusFound}
		}
		if boundary != nil && !boundary.HasAsset(next.ID) {
			return Resolution{Asset: cur, ExportSymbol: name, Loc: loc, Status: StatusUnresolved}
		}
		cur, name = next, nextName
	}
}

// reExportTarget checks whether sym is a re-export: a dependency of cur
// whose import symbols bind the same local name points at the asset the
// value really comes from.
func reExportTarget(bg *bundle.BundleGraph, cur *asset.Asset, sym asset.Symbol) (*asset.Asset, string, bool) {
	for _, dep := range bg.AssetGraph().DependenciesOf(cur.ID) {
		if dep.Symbols == nil {
			continue
		}
		imported, _, ok := dep.Symbols.FindLocal(sym.Local)
		if !ok {
			continue
		}
		resolved, ok := bg.AssetGraph().ResolvedAsset(dep.ID)
		if !ok {
			continue
		}
		return resolved, imported, true
	}
	return nil, "", false
}

// ExportedSymbols enumerates every export name transitively reachable from
// the asset, following star re-exports into their resolved assets. The "*"
// name itself is skipped. Results are deduplicated and returned in
// discovery order.
func ExportedSymbols(bg *bundle.BundleGraph, a *asset.Asset) []string {
	var out []string
	seen := make(map[string]bool)
	visitedAssets := make(map[string]bool)

	var walk func(cur *asset.Asset)
	walk = func(cur *asset.Asset) {
		if visitedAssets[cur.ID] {
			return
		}
		visitedAssets[cur.ID] = true

		for _, name := range cur.Symbols.Names() {
			if name == "*" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
		for _, dep := range bg.AssetGraph().DependenciesOf(cur.ID) {
			if dep.Symbols == nil {
				continue
			}
			if _, ok := dep.Symbols.Get("*"); !ok {
				continue
			}
			if resolved, ok := bg.AssetGraph().ResolvedAsset(dep.ID); ok {
				walk(resolved)
			}
		}
	}
	walk(a)
	return out
}
