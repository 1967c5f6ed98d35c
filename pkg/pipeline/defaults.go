package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/packfold/packfold/pkg/asset"
	"github.com/packfold/packfold/pkg/bundle"
	"github.com/packfold/packfold/pkg/cache"
	"github.com/packfold/packfold/pkg/config"
	"github.com/packfold/packfold/pkg/env"
	"github.com/packfold/packfold/pkg/errors"
	"github.com/packfold/packfold/pkg/graph"
	"github.com/packfold/packfold/pkg/plugin"
)

// DefaultRegistry returns the built-in plugin set: filesystem resolver,
// JavaScript and raw transformers, single-bundle-per-entry bundler with
// async splits, content-hash namer, and concatenating packager.
func DefaultRegistry() *plugin.Registry {
	return plugin.NewRegistry().
		UseResolver(&FSResolver{}).
		UseTransformer(&JSTransformer{}).
		UseTransformer(&RawTransformer{}).
		SetBundler(&DefaultBundler{}).
		UseNamer(&DefaultNamer{}).
		UsePackager(&ConcatPackager{})
}

// FSResolver resolves specifiers against the filesystem. Relative
// specifiers resolve from the importing file; entries and absolute paths
// from the project root; bare specifiers from node_modules, honoring the
// environment's module-inclusion policy.
type FSResolver struct{}

func (*FSResolver) Name() string { return "resolver-fs" }

func (*FSResolver) Resolve(_ context.Context, dep *asset.Dependency, from string, cfg config.Config) (*plugin.ResolveResult, error) {
	spec := dep.Specifier

	var base string
	switch {
	case filepath.IsAbs(spec):
		base = ""
	case strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../"):
		if from == "" {
			base = cfg.ProjectRoot
		} else {
			base = filepath.Dir(from)
		}
	case dep.IsEntry:
		base = cfg.ProjectRoot
	default:
		// Bare specifier: an external package.
		if dep.Env != nil && !dep.Env.IncludeNodeModules.Includes(packageName(spec)) {
			return &plugin.ResolveResult{Excluded: true}, nil
		}
		return resolveNodeModule(spec, cfg)
	}

	path := spec
	if base != "" {
		path = filepath.Join(base, spec)
	}
	resolved, ok := tryCandidates(path)
	if !ok {
		return nil, errors.New(errors.ErrCodeFileNotFound, "cannot find %q from %q", spec, from)
	}
	return &plugin.ResolveResult{FilePath: resolved}, nil
}

// tryCandidates checks path, path.js, and path/index.js in order.
func tryCandidates(path string) (string, bool) {
	for _, candidate := range []string{path, path + ".js", filepath.Join(path, "index.js")} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

func resolveNodeModule(spec string, cfg config.Config) (*plugin.ResolveResult, error) {
	root := filepath.Join(cfg.ProjectRoot, "node_modules", spec)
	if resolved, ok := tryCandidates(root); ok {
		return &plugin.ResolveResult{
			FilePath:               resolved,
			InvalidateOnFileChange: []string{filepath.Join(cfg.ProjectRoot, "package.json")},
		}, nil
	}
	return nil, errors.New(errors.ErrCodeFileNotFound, "cannot find module %q", spec)
}

func packageName(spec string) string {
	parts := strings.SplitN(spec, "/", 3)
	if strings.HasPrefix(spec, "@") && len(parts) >= 2 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

var (
	importRe     = regexp.MustCompile(`(?m)^\s*import\s+(?:([\w$]+|\{[^}]*\}|\*\s+as\s+[\w$]+)(?:\s*,\s*(?:\{[^}]*\}|[\w$]+))?\s+from\s+)?["']([^"']+)["']`)
	dynImportRe  = regexp.MustCompile(`import\(\s*["']([^"']+)["']\s*\)`)
	requireRe    = regexp.MustCompile(`require\(\s*["']([^"']+)["']\s*\)`)
	exportFromRe = regexp.MustCompile(`(?m)^\s*export\s+(\*|\{[^}]*\})\s+from\s+["']([^"']+)["']`)
	exportDeclRe = regexp.MustCompile(`(?m)^\s*export\s+(?:default\s+)?(?:const|let|var|function|class)\s+([\w$]+)`)
	exportDefRe  = regexp.MustCompile(`(?m)^\s*export\s+default\b`)
	exportListRe = regexp.MustCompile(`(?m)^\s*export\s+\{([^}]*)\}\s*;?\s*$`)
	cjsExportRe  = regexp.MustCompile(`(?m)module\.exports|exports\.[\w$]+\s*=`)
)

// JSTransformer performs lightweight static analysis of JavaScript: it
// extracts import and export statements into dependencies and symbol
// tables. Detecting CommonJS export patterns clears the symbol table so all
// exports are conservatively retained.
type JSTransformer struct{}

func (*JSTransformer) Name() string { return "transformer-js" }

func (*JSTransformer) Match(filePath string) bool {
	switch filepath.Ext(filePath) {
	case ".js", ".mjs", ".cjs", ".jsx":
		return true
	}
	return false
}

func (*JSTransformer) Transform(_ context.Context, in plugin.TransformInput) ([]graph.TransformResult, error) {
	a := asset.New(asset.AssetOptions{
		FilePath: in.FilePath,
		Type:     "js",
		Env:      in.Env,
		IsSource: true,
		Pipeline: in.Pipeline,
	})
	a.ContentKey = cache.ContentKey(cache.Hash(in.Code))

	code := string(in.Code)
	var deps []*asset.Dependency

	// One dependency per distinct specifier; repeated imports of the same
	// module merge their symbol maps.
	bySpec := make(map[string]*asset.Dependency)
	depFor := func(spec string, st asset.SpecifierType, prio asset.Priority) *asset.Dependency {
		if d, ok := bySpec[spec]; ok {
			return d
		}
		d := asset.NewDependency(asset.DependencyOptions{
			Specifier:     spec,
			SpecifierType: st,
			Priority:      prio,
			Env:           in.Env,
		})
		bySpec[spec] = d
		deps = append(deps, d)
		return d
	}

	for _, m := range importRe.FindAllStringSubmatch(code, -1) {
		d := depFor(m[2], asset.SpecifierESM, asset.PrioritySync)
		for _, p := range importClauseSymbols(m[1]) {
			d.Symbols.Set(p.imported, asset.Symbol{Local: p.local})
		}
	}
	for _, m := range dynImportRe.FindAllStringSubmatch(code, -1) {
		depFor(m[1], asset.SpecifierESM, asset.PriorityLazy)
	}
	for _, m := range requireRe.FindAllStringSubmatch(code, -1) {
		depFor(m[1], asset.SpecifierCommonJS, asset.PrioritySync)
	}

	line := func(idx int) int { return strings.Count(code[:idx], "\n") + 1 }

	for _, idx := range exportDeclRe.FindAllStringSubmatchIndex(code, -1) {
		name := code[idx[2]:idx[3]]
		a.Symbols.Set(name, asset.Symbol{
			Local: name,
			Loc: &errors.Location{
				FilePath: in.FilePath,
				Start:    errors.Position{Line: line(idx[0])},
			},
		})
	}
	if exportDefRe.MatchString(code) {
		a.Symbols.Set("default", asset.Symbol{Local: "default"})
	}
	for _, m := range exportListRe.FindAllStringSubmatch(code, -1) {
		for _, name := range splitNames(m[1]) {
			exported, local := aliasOf(name)
			a.Symbols.Set(exported, asset.Symbol{Local: local})
		}
	}
	for _, m := range exportFromRe.FindAllStringSubmatch(code, -1) {
		d := depFor(m[2], asset.SpecifierESM, asset.PrioritySync)
		if m[1] == "*" {
			local := "$" + a.ID + "$star"
			a.Symbols.Set("*", asset.Symbol{Local: local, IsWeak: true})
			d.Symbols.Set("*", asset.Symbol{Local: local, IsWeak: true})
			continue
		}
		for _, name := range splitNames(strings.Trim(m[1], "{}")) {
			exported, source := aliasOf(name)
			local := "$" + a.ID + "$reexport$" + exported
			a.Symbols.Set(exported, asset.Symbol{Local: local, IsWeak: true})
			d.Symbols.Set(source, asset.Symbol{Local: local, IsWeak: true})
		}
	}

	if cjsExportRe.MatchString(code) && a.Symbols.Len() == 0 {
		a.Symbols.Clear()
	}

	for _, d := range deps {
		a.AddDependency(d)
	}
	return []graph.TransformResult{{Asset: a, Dependencies: deps, Content: in.Code}}, nil
}

type symPair struct{ imported, local string }

// importClauseSymbols maps an import clause to (imported name, local binding)
// pairs. Note the direction is reversed from export lists: in
// "import { a as b }" the source name comes first.
func importClauseSymbols(clause string) []symPair {
	clause = strings.TrimSpace(clause)
	if clause == "" {
		return nil
	}
	if strings.HasPrefix(clause, "{") {
		var out []symPair
		for _, part := range splitNames(strings.Trim(clause, "{}")) {
			fields := strings.Fields(part)
			if len(fields) == 3 && fields[1] == "as" {
				out = append(out, symPair{imported: fields[0], local: fields[2]})
			} else {
				out = append(out, symPair{imported: part, local: part})
			}
		}
		return out
	}
	if strings.HasPrefix(clause, "*") {
		local := "*"
		if fields := strings.Fields(clause); len(fields) == 3 {
			local = fields[2]
		}
		return []symPair{{imported: "*", local: local}}
	}
	return []symPair{{imported: "default", local: clause}}
}

func splitNames(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// aliasOf splits "name as alias" into (alias, name); without "as" both are
// the name itself.
func aliasOf(part string) (exported, local string) {
	fields := strings.Fields(part)
	if len(fields) == 3 && fields[1] == "as" {
		return fields[2], fields[0]
	}
	return part, part
}

// RawTransformer handles any file as opaque content with no dependencies.
// Its symbol table is cleared: nothing is known statically.
type RawTransformer struct{}

func (*RawTransformer) Name() string { return "transformer-raw" }

func (*RawTransformer) Match(string) bool { return true }

func (*RawTransformer) Transform(_ context.Context, in plugin.TransformInput) ([]graph.TransformResult, error) {
	t := strings.TrimPrefix(filepath.Ext(in.FilePath), ".")
	if t == "" {
		t = "raw"
	}
	a := asset.New(asset.AssetOptions{
		FilePath: in.FilePath,
		Type:     t,
		Env:      in.Env,
		IsSource: true,
		Pipeline: in.Pipeline,
	})
	a.ContentKey = cache.ContentKey(cache.Hash(in.Code))
	a.Symbols.Clear()
	return []graph.TransformResult{{Asset: a, Content: in.Code}}, nil
}

// DefaultBundler creates one bundle per entry and splits a new bundle at
// every async dependency, wiring bundle groups and references.
type DefaultBundler struct{}

func (*DefaultBundler) Name() string { return "bundler-default" }

func (*DefaultBundler) Bundle(_ context.Context, mg *bundle.MutableBundleGraph, _ config.Config) error {
	g := mg.AssetGraph()

	type workItem struct {
		b     *bundle.Bundle
		entry *asset.Asset
	}
	var worklist []workItem
	// Async targets get one bundle per (asset, target) even when several
	// dependencies point at them.
	splits := make(map[string]*bundle.Bundle)

	for _, dep := range g.Entries() {
		entryAsset, ok := g.ResolvedAsset(dep.ID)
		if !ok {
			if g.IsExcluded(dep.ID) || g.OptionalFailed(dep.ID) {
				continue
			}
			return errors.New(errors.ErrCodeUnresolvedDependency, "entry %q is unresolved", dep.Specifier)
		}
		b, err := mg.CreateBundle(bundle.CreateBundleOpts{
			EntryAsset:      entryAsset,
			Target:          dep.Target,
			IsEntry:         true,
			IsSplittable:    true,
			NeedsStableName: true,
		})
		if err != nil {
			return err
		}
		group := mg.CreateBundleGroup(dep, dep.Target)
		mg.AddBundleToBundleGroup(b, group)
		worklist = append(worklist, workItem{b: b, entry: entryAsset})
	}

	for len(worklist) > 0 {
		item := worklist[0]
		worklist = worklist[1:]
		mg.AddAssetGraphToBundle(item.entry, item.b)

		for _, assetID := range item.b.AssetIDs() {
			for _, dep := range g.DependenciesOf(assetID) {
				if !dep.IsAsync() || g.IsExcluded(dep.ID) {
					continue
				}
				target, ok := g.ResolvedAsset(dep.ID)
				if !ok {
					continue
				}
				key := target.ID
				if dep.Target != nil {
					key += ":" + dep.Target.Name
				}
				split, exists := splits[key]
				if !exists {
					var err error
					split, err = mg.CreateBundle(bundle.CreateBundleOpts{
						EntryAsset:   target,
						Target:       firstTarget(dep, item.b),
						IsSplittable: true,
					})
					if err != nil {
						return err
					}
					splits[key] = split
					group := mg.CreateBundleGroup(dep, split.Target)
					mg.AddBundleToBundleGroup(split, group)
					worklist = append(worklist, workItem{b: split, entry: target})
				}
				mg.ResolveDependencyToBundles(dep, split)
				mg.CreateBundleReference(item.b, split, true)
			}
		}
	}
	return nil
}

func firstTarget(dep *asset.Dependency, parent *bundle.Bundle) *env.Target {
	if dep.Target != nil {
		return dep.Target
	}
	return parent.Target
}

// DefaultNamer names entry and stable bundles after their entry asset and
// content-hashes everything else.
type DefaultNamer struct{}

func (*DefaultNamer) Name() string { return "namer-default" }

func (*DefaultNamer) NameBundle(_ context.Context, b *bundle.Bundle, bg *bundle.BundleGraph) (string, error) {
	base := "bundle"
	if ids := b.EntryAssetIDs(); len(ids) > 0 {
		if entry, ok := bg.AssetGraph().Asset(ids[0]); ok {
			name := filepath.Base(entry.FilePath)
			base = strings.TrimSuffix(name, filepath.Ext(name))
		}
	} else if b.UniqueKey != "" {
		base = b.UniqueKey
	}
	if b.IsEntry || b.NeedsStableName {
		return base + "." + b.Type, nil
	}
	return base + "." + b.HashReference + "." + b.Type, nil
}

// ConcatPackager concatenates a bundle's assets in dependency order:
// leaves first, so a definition precedes its importers in the output.
type ConcatPackager struct{}

func (*ConcatPackager) Name() string { return "packager-concat" }

func (*ConcatPackager) Match(string) bool { return true }

func (*ConcatPackager) Package(ctx context.Context, b *bundle.Bundle, bg *bundle.BundleGraph, contents plugin.ContentResolver) (plugin.PackageOutput, error) {
	var buf bytes.Buffer
	var packErr error

	bg.TraverseAssets(b, bundle.Visitor[*asset.Asset]{
		Enter: func(a *asset.Asset, parentCtx any, actions *bundle.Actions) any {
			return nil
		},
		Exit: func(a *asset.Asset) {
			if packErr != nil {
				return
			}
			code, err := contents.Store(a).Buffer(ctx)
			if err != nil {
				packErr = err
				return
			}
			fmt.Fprintf(&buf, "// %s\n", a.FilePath)
			buf.Write(code)
			if len(code) > 0 && code[len(code)-1] != '\n' {
				buf.WriteByte('\n')
			}
		},
	})
	if packErr != nil {
		return plugin.PackageOutput{}, packErr
	}
	return plugin.PackageOutput{Contents: buf.Bytes()}, nil
}
