package bundle

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/goccy/go-graphviz"
)

// ToDOT returns a Graphviz DOT representation of the bundle graph.
//
// Each bundle becomes a cluster containing its member assets; in-bundle
// dependency edges are solid, inter-bundle references dashed (async ones
// additionally labeled). The output renders with standard Graphviz tools
// or programmatically with RenderSVG.
func (bg *BundleGraph) ToDOT() string {
	var buf bytes.Buffer
	buf.WriteString("digraph BundleGraph {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [fontname=\"SF Mono, Menlo, monospace\", fontsize=12, style=filled, fillcolor=white, shape=box];\n")
	buf.WriteString("  edge [fontsize=10];\n\n")

	// Asset node names are scoped per bundle so shared assets render inside
	// every cluster that contains them.
	nodeName := func(bundleID, assetID string) string {
		return fmt.Sprintf("a_%s_%s", bundleID, assetID)
	}

	for i, b := range bg.Bundles() {
		fmt.Fprintf(&buf, "  subgraph cluster_%d {\n", i)
		fmt.Fprintf(&buf, "    label=%q;\n", b.DisplayName())
		buf.WriteString("    style=rounded;\n")
		for _, assetID := range b.AssetIDs() {
			a, ok := bg.assets.Asset(assetID)
			if !ok {
				continue
			}
			label := filepath.Base(a.FilePath)
			entry := false
			for _, e := range b.EntryAssetIDs() {
				if e == assetID {
					entry = true
					break
				}
			}
			if entry {
				fmt.Fprintf(&buf, "    %s [label=%q, style=\"filled,bold\"];\n", nodeName(b.ID, assetID), label)
			} else {
				fmt.Fprintf(&buf, "    %s [label=%q];\n", nodeName(b.ID, assetID), label)
			}
		}
		buf.WriteString("  }\n")

		for _, assetID := range b.AssetIDs() {
			for _, dep := range bg.assets.DependenciesOf(assetID) {
				resolved, ok := bg.ResolvedAsset(dep)
				if !ok || !b.HasAsset(resolved.ID) {
					continue
				}
				fmt.Fprintf(&buf, "  %s -> %s;\n", nodeName(b.ID, assetID), nodeName(b.ID, resolved.ID))
			}
		}
		buf.WriteString("\n")
	}

	// Inter-bundle references connect cluster entry assets where possible,
	// falling back to any member asset for empty entries.
	anchor := func(b *Bundle) string {
		if ids := b.EntryAssetIDs(); len(ids) > 0 && b.HasAsset(ids[0]) {
			return nodeName(b.ID, ids[0])
		}
		if ids := b.AssetIDs(); len(ids) > 0 {
			return nodeName(b.ID, ids[0])
		}
		return ""
	}
	for _, ref := range bg.refs {
		from, to := bg.bundles[ref.fromID], bg.bundles[ref.toID]
		fa, ta := anchor(from), anchor(to)
		if fa == "" || ta == "" {
			continue
		}
		if ref.async {
			fmt.Fprintf(&buf, "  %s -> %s [style=dashed, label=\"async\"];\n", fa, ta)
		} else {
			fmt.Fprintf(&buf, "  %s -> %s [style=dashed];\n", fa, ta)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders the bundle graph as an SVG image via Graphviz.
//
// RenderSVG requires the Graphviz library (github.com/goccy/go-graphviz).
// Errors are returned if Graphviz cannot initialize, the DOT is malformed,
// or rendering fails, each wrapped with %w for errors.Is/Unwrap.
func (bg *BundleGraph) RenderSVG(ctx context.Context) ([]byte, error) {
	dot := bg.ToDOT()

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
