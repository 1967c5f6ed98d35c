package symbols

import (
	"testing"

	"github.com/packfold/packfold/pkg/asset"
	"github.com/packfold/packfold/pkg/bundle"
	"github.com/packfold/packfold/pkg/env"
	"github.com/packfold/packfold/pkg/errors"
	"github.com/packfold/packfold/pkg/graph"
)

func mkAsset(path string) *asset.Asset {
	return asset.New(asset.AssetOptions{FilePath: path, Type: "js", Env: env.Default(), IsSource: true})
}

// link commits a dependency from src to dst and resolves it.
func link(t *testing.T, g *graph.AssetGraph, src, dst *asset.Asset, specifier string) *asset.Dependency {
	t.Helper()
	d := asset.NewDependency(asset.DependencyOptions{Specifier: specifier})
	g.CommitTransformResult(graph.TransformResult{Asset: src, Dependencies: []*asset.Dependency{d}})
	if _, ok := g.Asset(dst.ID); !ok {
		g.CommitTransformResult(graph.TransformResult{Asset: dst})
	}
	if err := g.ResolveDependency(d.ID, dst.ID); err != nil {
		t.Fatalf("resolve %s: %v", specifier, err)
	}
	return d
}

func TestResolveLocalDefinition(t *testing.T) {
	g := graph.NewAssetGraph()

	util := mkAsset("src/util.js")
	helperLoc := &errors.Location{
		FilePath: "src/util.js",
		Start:    errors.Position{Line: 1, Column: 14},
	}
	util.Symbols.Set("helper", asset.Symbol{Local: "helper", Loc: helperLoc})

	index := mkAsset("src/index.js")
	link(t, g, index, util, "./util")

	mg := bundle.NewMutableBundleGraph(g)
	b, _ := mg.CreateBundle(bundle.CreateBundleOpts{EntryAsset: index})
	mg.AddAssetGraphToBundle(index, b)

	r := Resolve(mg.BundleGraph, util, "helper", b)
	if r.Status != StatusFound {
		t.Fatalf("Status = %v, want found", r.Status)
	}
	if r.Asset.ID != util.ID || r.ExportSymbol != "helper" || r.Symbol != "helper" {
		t.Errorf("resolution = %+v", r)
	}
	if r.Loc != helperLoc {
		t.Errorf("Loc = %v, want util's export location", r.Loc)
	}
}

func TestResolveFollowsReExport(t *testing.T) {
	g := graph.NewAssetGraph()

	util := mkAsset("src/util.js")
	util.Symbols.Set("helper", asset.Symbol{Local: "helper"})

	// index re-exports helper from util: its own export binds a local that
	// the dependency's import symbols also bind.
	index := mkAsset("src/index.js")
	index.Symbols.Set("helper", asset.Symbol{Local: "$reExportedHelper", IsWeak: true})
	d := link(t, g, index, util, "./util")
	d.Symbols.Set("helper", asset.Symbol{Local: "$reExportedHelper", IsWeak: true})

	mg := bundle.NewMutableBundleGraph(g)
	b, _ := mg.CreateBundle(bundle.CreateBundleOpts{EntryAsset: index})
	mg.AddAssetGraphToBundle(index, b)

	r := Resolve(mg.BundleGraph, index, "helper", b)
	if r.Status != StatusFound {
		t.Fatalf("Status = %v, want found", r.Status)
	}
	if r.Asset.ID != util.ID {
		t.Errorf("defining asset = %s, want util", r.Asset.FilePath)
	}
	if r.Symbol != "helper" {
		t.Errorf("Symbol = %q, want helper", r.Symbol)
	}
}

func TestResolveMissingExport(t *testing.T) {
	g := graph.NewAssetGraph()
	a := mkAsset("src/a.js")
	a.Symbols.Set("x", asset.Symbol{Local: "x"})
	g.CommitTransformResult(graph.TransformResult{Asset: a})

	mg := bundle.NewMutableBundleGraph(g)
	r := Resolve(mg.BundleGraph, a, "missing", nil)
	if r.Status != StatusUnresolved {
		t.Errorf("Status = %v, want unresolved", r.Status)
	}
	if r.Asset.ID != a.ID || r.ExportSymbol != "missing" {
		t.Errorf("resolution = %+v", r)
	}
}

func TestResolveClearedIsDynamic(t *testing.T) {
	g := graph.NewAssetGraph()
	a := mkAsset("src/cjs.js")
	a.Symbols.Clear()
	g.CommitTransformResult(graph.TransformResult{Asset: a})

	mg := bundle.NewMutableBundleGraph(g)
	r := Resolve(mg.BundleGraph, a, "anything", nil)
	if r.Status != StatusDynamic {
		t.Errorf("Status = %v, want dynamic", r.Status)
	}
	if r.Symbol != "" {
		t.Errorf("Symbol = %q, want empty for dynamic", r.Symbol)
	}
}

func TestResolveReExportCycleTerminates(t *testing.T) {
	g := graph.NewAssetGraph()

	a := mkAsset("src/a.js")
	b := mkAsset("src/b.js")
	a.Symbols.Set("x", asset.Symbol{Local: "$aX", IsWeak: true})
	b.Symbols.Set("x", asset.Symbol{Local: "$bX", IsWeak: true})

	aToB := asset.NewDependency(asset.DependencyOptions{Specifier: "./b"})
	bToA := asset.NewDependency(asset.DependencyOptions{Specifier: "./a"})
	g.CommitTransformResult(graph.TransformResult{Asset: a, Dependencies: []*asset.Dependency{aToB}})
	g.CommitTransformResult(graph.TransformResult{Asset: b, Dependencies: []*asset.Dependency{bToA}})
	if err := g.ResolveDependency(aToB.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	if err := g.ResolveDependency(bToA.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	aToB.Symbols.Set("x", asset.Symbol{Local: "$aX", IsWeak: true})
	bToA.Symbols.Set("x", asset.Symbol{Local: "$bX", IsWeak: true})

	r := Resolve(mustGraph(g), a, "x", nil)
	if r.Status != StatusUnresolved {
		t.Errorf("Status = %v, want unresolved after cycle", r.Status)
	}
}

func mustGraph(g *graph.AssetGraph) *bundle.BundleGraph {
	return bundle.NewMutableBundleGraph(g).BundleGraph
}

func TestResolveStopsAtBundleBoundary(t *testing.T) {
	g := graph.NewAssetGraph()

	// c defines the value; a re-exports from c; b re-exports from a.
	c := mkAsset("src/c.js")
	c.Symbols.Set("x", asset.Symbol{Local: "x"})

	a := mkAsset("src/a.js")
	a.Symbols.Set("x", asset.Symbol{Local: "$aX", IsWeak: true})
	aToC := link(t, g, a, c, "./c")
	aToC.Symbols.Set("x", asset.Symbol{Local: "$aX", IsWeak: true})

	b := mkAsset("src/b.js")
	b.Symbols.Set("x", asset.Symbol{Local: "$bX", IsWeak: true})
	bToA := link(t, g, b, a, "./a")
	bToA.Symbols.Set("x", asset.Symbol{Local: "$bX", IsWeak: true})

	mg := bundle.NewMutableBundleGraph(g)
	boundary, _ := mg.CreateBundle(bundle.CreateBundleOpts{EntryAsset: a})
	// Membership is only a: the hop a -> c leaves the boundary.
	addOnly(mg, a, boundary)

	r := Resolve(mg.BundleGraph, b, "x", boundary)
	if r.Status != StatusUnresolved {
		t.Fatalf("Status = %v, want unresolved at boundary", r.Status)
	}
	if r.Asset.ID != a.ID {
		t.Errorf("stopped at %s, want a.js", r.Asset.FilePath)
	}
	if r.ExportSymbol != "x" {
		t.Errorf("ExportSymbol = %q", r.ExportSymbol)
	}
}

// addOnly places a single asset into the bundle without pulling its
// dependency closure.
func addOnly(mg *bundle.MutableBundleGraph, a *asset.Asset, b *bundle.Bundle) {
	mg.AddAssetGraphToBundle(a, b)
	for _, id := range b.AssetIDs() {
		if id == a.ID {
			continue
		}
		if member, ok := mg.AssetGraph().Asset(id); ok {
			mg.RemoveAssetGraphFromBundle(member, b)
		}
	}
}

func TestExportedSymbols(t *testing.T) {
	g := graph.NewAssetGraph()

	deep := mkAsset("src/deep.js")
	deep.Symbols.Set("deepValue", asset.Symbol{Local: "deepValue"})

	lib := mkAsset("src/lib.js")
	lib.Symbols.Set("one", asset.Symbol{Local: "one"})
	lib.Symbols.Set("*", asset.Symbol{Local: "$star", IsWeak: true})
	libToDeep := link(t, g, lib, deep, "./deep")
	libToDeep.Symbols.Set("*", asset.Symbol{Local: "$star", IsWeak: true})

	names := ExportedSymbols(mustGraph(g), lib)
	want := []string{"one", "deepValue"}
	if len(names) != len(want) {
		t.Fatalf("ExportedSymbols = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}
