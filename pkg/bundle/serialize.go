package bundle

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// GraphExport is the canonical JSON shape of a bundle graph, used by the
// graph CLI command and the dev server's /api/graph endpoint. Output is
// deterministic: bundles, assets, and references appear in creation order.
type GraphExport struct {
	Bundles    []BundleExport    `json:"bundles"`
	Groups     []GroupExport     `json:"groups,omitempty"`
	References []ReferenceExport `json:"references,omitempty"`
}

// BundleExport is one bundle with its current membership.
type BundleExport struct {
	ID          string        `json:"id"`
	Name        string        `json:"name,omitempty"`
	FilePath    string        `json:"file_path,omitempty"`
	Type        string        `json:"type"`
	Target      string        `json:"target,omitempty"`
	IsEntry     bool          `json:"is_entry,omitempty"`
	IsInline    bool          `json:"is_inline,omitempty"`
	EntryAssets []string      `json:"entry_assets,omitempty"`
	Assets      []AssetExport `json:"assets"`
}

// AssetExport is one asset as seen from the bundle graph.
type AssetExport struct {
	ID       string `json:"id"`
	FilePath string `json:"file_path"`
	Type     string `json:"type"`
}

// GroupExport is one bundle group.
type GroupExport struct {
	ID        string   `json:"id"`
	Specifier string   `json:"specifier,omitempty"`
	Bundles   []string `json:"bundles"`
}

// ReferenceExport is one inter-bundle reference edge.
type ReferenceExport struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Async bool   `json:"async,omitempty"`
}

// Export builds the serializable view of the graph.
func (bg *BundleGraph) Export() GraphExport {
	out := GraphExport{}
	for _, b := range bg.Bundles() {
		be := BundleExport{
			ID:          b.ID,
			Name:        b.Name,
			FilePath:    b.FilePath,
			Type:        b.Type,
			IsEntry:     b.IsEntry,
			IsInline:    b.IsInline,
			EntryAssets: b.EntryAssetIDs(),
		}
		if b.Target != nil {
			be.Target = b.Target.Name
		}
		for _, id := range b.AssetIDs() {
			a, ok := bg.assets.Asset(id)
			if !ok {
				continue
			}
			be.Assets = append(be.Assets, AssetExport{ID: a.ID, FilePath: a.FilePath, Type: a.Type})
		}
		out.Bundles = append(out.Bundles, be)
	}
	for _, g := range bg.BundleGroups() {
		ge := GroupExport{ID: g.ID, Bundles: g.BundleIDs()}
		if g.EntryDep != nil {
			ge.Specifier = g.EntryDep.Specifier
		}
		out.Groups = append(out.Groups, ge)
	}
	for _, ref := range bg.refs {
		out.References = append(out.References, ReferenceExport{
			From:  ref.fromID,
			To:    ref.toID,
			Async: ref.async,
		})
	}
	return out
}

// WriteGraph writes the graph as indented JSON to w.
func (bg *BundleGraph) WriteGraph(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bg.Export()); err != nil {
		return fmt.Errorf("encode bundle graph: %w", err)
	}
	return nil
}

// WriteGraphFile writes the graph as JSON to a file created with 0644
// permissions.
func (bg *BundleGraph) WriteGraphFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return bg.WriteGraph(f)
}
