package bundle

import (
	"testing"

	"github.com/packfold/packfold/pkg/asset"
	"github.com/packfold/packfold/pkg/env"
)

func threeBundles(t *testing.T) (*MutableBundleGraph, []*Bundle) {
	t.Helper()
	f := newFixture(t)
	mg := NewMutableBundleGraph(f.g)

	b1, _ := mg.CreateBundle(CreateBundleOpts{EntryAsset: f.index, IsEntry: true})
	b2, _ := mg.CreateBundle(CreateBundleOpts{EntryAsset: f.admin})
	b3, _ := mg.CreateBundle(CreateBundleOpts{UniqueKey: "styles", Type: "css", Env: env.Default()})
	mg.CreateBundleReference(b1, b2, true)
	mg.CreateBundleReference(b1, b3, false)
	return mg, []*Bundle{b1, b2, b3}
}

func TestTraverseBundlesOrder(t *testing.T) {
	mg, bundles := threeBundles(t)

	var entered, exited []string
	mg.TraverseBundles(Visitor[*Bundle]{
		Enter: func(b *Bundle, parentCtx any, actions *Actions) any {
			entered = append(entered, b.ID)
			return nil
		},
		Exit: func(b *Bundle) {
			exited = append(exited, b.ID)
		},
	})

	want := []string{bundles[0].ID, bundles[1].ID, bundles[2].ID}
	if len(entered) != 3 {
		t.Fatalf("entered %d bundles, want 3", len(entered))
	}
	for i, id := range want {
		if entered[i] != id {
			t.Errorf("enter order[%d] = %s, want %s", i, entered[i], id)
		}
	}
	// Children exit before their parent.
	if exited[len(exited)-1] != bundles[0].ID {
		t.Errorf("root should exit last, got %v", exited)
	}
}

func TestTraverseBundlesStop(t *testing.T) {
	mg, bundles := threeBundles(t)

	var entered, exited []string
	mg.TraverseBundles(Visitor[*Bundle]{
		Enter: func(b *Bundle, parentCtx any, actions *Actions) any {
			entered = append(entered, b.ID)
			if b.ID == bundles[0].ID {
				actions.Stop()
			}
			return nil
		},
		Exit: func(b *Bundle) {
			exited = append(exited, b.ID)
		},
	})

	if len(entered) != 1 || entered[0] != bundles[0].ID {
		t.Errorf("stop at first bundle should halt everything, entered %v", entered)
	}
	if len(exited) != 0 {
		t.Errorf("no exit callbacks should fire after stop, got %v", exited)
	}
}

func TestTraverseBundlesSkipChildren(t *testing.T) {
	mg, bundles := threeBundles(t)

	var entered []string
	mg.TraverseBundles(Visitor[*Bundle]{
		Enter: func(b *Bundle, parentCtx any, actions *Actions) any {
			entered = append(entered, b.ID)
			if b.ID == bundles[0].ID {
				actions.SkipChildren()
			}
			return nil
		},
	})

	// b2 and b3 are only reachable through b1's references, so pruning b1
	// prunes them with it.
	if len(entered) != 1 || entered[0] != bundles[0].ID {
		t.Errorf("pruned subtree should stay unvisited, entered %v", entered)
	}
}

func TestTraverseBundlesCycle(t *testing.T) {
	f := newFixture(t)
	mg := NewMutableBundleGraph(f.g)

	b1, _ := mg.CreateBundle(CreateBundleOpts{EntryAsset: f.index, IsEntry: true})
	b2, _ := mg.CreateBundle(CreateBundleOpts{EntryAsset: f.admin})
	b3, _ := mg.CreateBundle(CreateBundleOpts{UniqueKey: "styles", Type: "css", Env: env.Default()})
	// b2 and b3 reference each other, so neither is reference-free.
	mg.CreateBundleReference(b2, b3, false)
	mg.CreateBundleReference(b3, b2, false)

	var entered []string
	mg.TraverseBundles(Visitor[*Bundle]{
		Enter: func(b *Bundle, parentCtx any, actions *Actions) any {
			entered = append(entered, b.ID)
			return nil
		},
	})

	want := []string{b1.ID, b2.ID, b3.ID}
	if len(entered) != 3 {
		t.Fatalf("entered %d bundles, want 3: %v", len(entered), entered)
	}
	for i, id := range want {
		if entered[i] != id {
			t.Errorf("enter order[%d] = %s, want %s", i, entered[i], id)
		}
	}

	// Pruning the cycle's root prunes the whole component.
	entered = nil
	mg.TraverseBundles(Visitor[*Bundle]{
		Enter: func(b *Bundle, parentCtx any, actions *Actions) any {
			entered = append(entered, b.ID)
			if b.ID == b2.ID {
				actions.SkipChildren()
			}
			return nil
		},
	})
	if len(entered) != 2 || entered[0] != b1.ID || entered[1] != b2.ID {
		t.Errorf("entered = %v, want [%s %s]", entered, b1.ID, b2.ID)
	}
}

func TestTraverseBundlesParentContext(t *testing.T) {
	mg, bundles := threeBundles(t)

	depth := make(map[string]int)
	mg.TraverseBundles(Visitor[*Bundle]{
		Enter: func(b *Bundle, parentCtx any, actions *Actions) any {
			d := 0
			if parentCtx != nil {
				d = parentCtx.(int) + 1
			}
			depth[b.ID] = d
			return d
		},
	})

	if depth[bundles[0].ID] != 0 || depth[bundles[1].ID] != 1 || depth[bundles[2].ID] != 1 {
		t.Errorf("depths = %v", depth)
	}
}

func TestTraverseAssetsDeterministic(t *testing.T) {
	f := newFixture(t)
	mg := NewMutableBundleGraph(f.g)
	b, _ := mg.CreateBundle(CreateBundleOpts{EntryAsset: f.index})
	mg.AddAssetGraphToBundle(f.index, b)

	var first []string
	for run := 0; run < 3; run++ {
		var order []string
		mg.TraverseAssets(b, Visitor[*asset.Asset]{
			Enter: func(a *asset.Asset, parentCtx any, actions *Actions) any {
				order = append(order, a.FilePath)
				return nil
			},
		})
		if run == 0 {
			first = order
			want := []string{"src/index.js", "src/util.js", "src/shared.js"}
			for i, p := range want {
				if order[i] != p {
					t.Fatalf("order[%d] = %s, want %s", i, order[i], p)
				}
			}
			continue
		}
		for i := range first {
			if order[i] != first[i] {
				t.Fatalf("run %d diverged: %v vs %v", run, order, first)
			}
		}
	}
}

func TestTraverseFullGraph(t *testing.T) {
	f := newFixture(t)
	mg := NewMutableBundleGraph(f.g)
	b, _ := mg.CreateBundle(CreateBundleOpts{EntryAsset: f.index})
	mg.AddAssetGraphToBundle(f.index, b)

	var kinds []string
	mg.Traverse(Visitor[Node]{
		Enter: func(n Node, parentCtx any, actions *Actions) any {
			switch {
			case n.Bundle != nil:
				kinds = append(kinds, "bundle")
			case n.Asset != nil:
				kinds = append(kinds, "asset:"+n.Asset.FilePath)
			case n.Dependency != nil:
				kinds = append(kinds, "dep:"+n.Dependency.Specifier)
			}
			return nil
		},
	})

	want := []string{
		"bundle",
		"asset:src/index.js",
		"dep:./util",
		"asset:src/util.js",
		"dep:./shared",
		"asset:src/shared.js",
		"dep:./admin",
	}
	if len(kinds) != len(want) {
		t.Fatalf("visited %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("visit[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}
}
