// Package pipeline runs the build: resolve and transform sources into an
// asset graph, partition it into bundles, name and package the bundles,
// and write outputs.
//
// The Runner is stateless between builds except for the cache and logger.
// Both CLI and dev server use it so behavior stays consistent across entry
// points.
//
//	runner := pipeline.NewRunner(c, plugins, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{Config: cfg, Write: true})
package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/packfold/packfold/pkg/asset"
	"github.com/packfold/packfold/pkg/bundle"
	"github.com/packfold/packfold/pkg/cache"
	"github.com/packfold/packfold/pkg/errors"
	"github.com/packfold/packfold/pkg/graph"
	"github.com/packfold/packfold/pkg/observability"
	"github.com/packfold/packfold/pkg/plugin"
	"github.com/packfold/packfold/pkg/symbols"
)

// Runner executes builds.
type Runner struct {
	Cache   cache.Cache
	Plugins *plugin.Registry
	Logger  *log.Logger

	mu     sync.Mutex
	stores map[string]*asset.ContentStore
}

// NewRunner creates a runner. A nil cache falls back to an in-process
// MemoryCache; packaging reads transformed content back through the cache,
// so a discarding backend would break the build. A nil registry installs
// the default plugin set, and a nil logger falls back to the global
// default.
func NewRunner(c cache.Cache, plugins *plugin.Registry, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewMemoryCache()
	}
	if plugins == nil {
		plugins = DefaultRegistry()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:   c,
		Plugins: plugins,
		Logger:  logger,
		stores:  make(map[string]*asset.ContentStore),
	}
}

// Store returns the memoized content store for an asset, creating it on
// first use. Implements plugin.ContentResolver.
func (r *Runner) Store(a *asset.Asset) *asset.ContentStore {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[a.ID]; ok {
		return s
	}
	s := asset.NewContentStore(a, r.Cache, asset.JSONSerializer{}, nil)
	r.stores[a.ID] = s
	return s
}

// Execute runs the complete resolve → transform → bundle → name → package
// pipeline.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	result := &Result{Outputs: make(map[string][]byte)}
	r.report(ctx, plugin.Event{Type: plugin.EventBuildStart})

	assetGraph, err := r.buildAssetGraph(ctx, opts, result)
	if err != nil {
		r.report(ctx, plugin.Event{Type: plugin.EventBuildFailure, Err: err})
		return nil, err
	}
	result.AssetGraph = assetGraph

	if err := r.validate(ctx, assetGraph); err != nil {
		r.report(ctx, plugin.Event{Type: plugin.EventBuildFailure, Err: err})
		return nil, err
	}

	bundleGraph, err := r.bundlePhase(ctx, opts, assetGraph, result)
	if err != nil {
		r.report(ctx, plugin.Event{Type: plugin.EventBuildFailure, Err: err})
		return nil, err
	}
	result.BundleGraph = bundleGraph
	r.symbolDiagnostics(bundleGraph)

	if err := r.namePhase(ctx, bundleGraph); err != nil {
		r.report(ctx, plugin.Event{Type: plugin.EventBuildFailure, Err: err})
		return nil, err
	}

	if err := r.packagePhase(ctx, opts, bundleGraph, result); err != nil {
		r.report(ctx, plugin.Event{Type: plugin.EventBuildFailure, Err: err})
		return nil, err
	}

	r.report(ctx, plugin.Event{Type: plugin.EventBuildSuccess})
	return result, nil
}

// buildAssetGraph drains the resolve/transform worklist until every
// reachable dependency is resolved, excluded, or recorded as a failed
// optional.
func (r *Runner) buildAssetGraph(ctx context.Context, opts Options, result *Result) (*graph.AssetGraph, error) {
	phaseStart := time.Now()
	r.phaseStart(ctx, "transform")

	g := graph.NewAssetGraph()
	targets, err := opts.Config.BuildTargets()
	if err != nil {
		return nil, err
	}

	var worklist []*asset.Dependency
	for _, target := range targets {
		for _, entry := range opts.Config.Entries {
			dep := asset.NewDependency(asset.DependencyOptions{
				Specifier: entry,
				IsEntry:   true,
				Env:       target.Env,
				Target:    target,
			})
			g.AddEntry(dep)
			worklist = append(worklist, dep)
		}
	}

	for len(worklist) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dep := worklist[0]
		worklist = worklist[1:]

		from := ""
		if dep.SourceAssetID != "" {
			if src, ok := g.Asset(dep.SourceAssetID); ok {
				from = src.FilePath
			}
		}

		res, err := r.resolve(ctx, dep, from, opts)
		if err != nil {
			if ferr := g.MarkResolutionFailed(dep.ID, err); ferr != nil {
				return nil, ferr
			}
			r.Logger.Debug("optional dependency skipped",
				"specifier", dep.Specifier, "error", err)
			continue
		}
		if res.Excluded {
			if err := g.ExcludeDependency(dep.ID); err != nil {
				return nil, err
			}
			continue
		}

		envID := ""
		if dep.Env != nil {
			envID = dep.Env.ID()
		}
		if existing, ok := g.AssetByPath(res.FilePath, envID); ok {
			if err := g.ResolveDependency(dep.ID, existing.ID); err != nil {
				return nil, err
			}
			continue
		}

		results, err := r.transform(ctx, res, dep, opts)
		if err != nil {
			return nil, err
		}
		var rootID string
		for i, tr := range results {
			g.CommitTransformResult(tr)
			if i == 0 {
				rootID = tr.Asset.ID
			}
			if len(res.InvalidateOnFileChange) > 0 {
				if err := g.AddInvalidation(tr.Asset.ID, graph.Invalidation{Files: res.InvalidateOnFileChange}); err != nil {
					return nil, err
				}
			}
			observability.Build().OnAssetTransformed(ctx, tr.Asset.FilePath, len(tr.Dependencies))
			worklist = append(worklist, tr.Dependencies...)
		}
		if rootID == "" {
			return nil, errors.New(errors.ErrCodePluginFailed,
				"transformer produced no assets for %s", res.FilePath)
		}
		if err := g.ResolveDependency(dep.ID, rootID); err != nil {
			return nil, err
		}
	}

	result.Stats.TransformTime = time.Since(phaseStart)
	result.Stats.AssetCount = g.AssetCount()
	r.phaseComplete(ctx, "transform", result.Stats.TransformTime, nil)
	r.Logger.Info("built asset graph",
		"assets", g.AssetCount(),
		"dependencies", g.DependencyCount(),
		"duration", result.Stats.TransformTime)
	return g, nil
}

// resolve asks each registered resolver in turn.
func (r *Runner) resolve(ctx context.Context, dep *asset.Dependency, from string, opts Options) (*plugin.ResolveResult, error) {
	var lastErr error
	for _, resolver := range r.Plugins.Resolvers() {
		res, err := resolver.Resolve(ctx, dep, from, opts.Config)
		if err != nil {
			lastErr = err
			continue
		}
		if res != nil {
			return res, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New(errors.ErrCodeUnresolvedDependency,
		"no resolver handled %q", dep.Specifier)
}

func (r *Runner) transform(ctx context.Context, res *plugin.ResolveResult, dep *asset.Dependency, opts Options) ([]graph.TransformResult, error) {
	t, err := r.Plugins.TransformerFor(res.FilePath)
	if err != nil {
		return nil, err
	}
	code, err := os.ReadFile(res.FilePath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read %s", res.FilePath)
	}
	out, err := t.Transform(ctx, plugin.TransformInput{
		FilePath: res.FilePath,
		Code:     code,
		Env:      dep.Env,
		Pipeline: res.Pipeline,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePluginFailed, err, "transformer %s on %s", t.Name(), res.FilePath)
	}
	// Persist raw content so content stores can materialize it later.
	for _, tr := range out {
		if tr.Asset.ContentKey == "" {
			continue
		}
		if err := r.Cache.SetBlob(ctx, tr.Asset.ContentKey, contentFor(tr, code)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// contentFor picks the bytes to persist for a transform result: the
// transformer's declared output when present, else the raw input.
func contentFor(tr graph.TransformResult, raw []byte) []byte {
	if tr.Content != nil {
		return tr.Content
	}
	return raw
}

func (r *Runner) validate(ctx context.Context, g *graph.AssetGraph) error {
	validators := r.Plugins.Validators()
	if len(validators) == 0 {
		return nil
	}
	var failures []error
	for _, a := range g.Assets() {
		for _, v := range validators {
			if err := v.Validate(ctx, a, r); err != nil {
				failures = append(failures, err)
				r.Logger.Error("validation failed",
					"validator", v.Name(), "asset", a.FilePath, "error", err)
			}
		}
	}
	if len(failures) > 0 {
		return errors.Wrap(errors.ErrCodePluginFailed, failures[0],
			"%d validation failure(s)", len(failures))
	}
	return nil
}

func (r *Runner) bundlePhase(ctx context.Context, opts Options, g *graph.AssetGraph, result *Result) (*bundle.BundleGraph, error) {
	phaseStart := time.Now()
	r.phaseStart(ctx, "bundle")

	bundler := r.Plugins.Bundler()
	if bundler == nil {
		bundler = &DefaultBundler{}
	}
	mg := bundle.NewMutableBundleGraph(g)
	if err := bundler.Bundle(ctx, mg, opts.Config); err != nil {
		return nil, errors.Wrap(errors.ErrCodePluginFailed, err, "bundler %s", bundler.Name())
	}

	result.Stats.BundleTime = time.Since(phaseStart)
	result.Stats.BundleCount = len(mg.Bundles())
	r.phaseComplete(ctx, "bundle", result.Stats.BundleTime, nil)
	r.Logger.Info("bundled",
		"bundles", result.Stats.BundleCount,
		"duration", result.Stats.BundleTime)
	return mg.BundleGraph, nil
}

// symbolDiagnostics warns about imported names that do not resolve to a
// definition within the importing bundle. Unresolved symbols are soft: a
// boundary stop means the packager keeps a runtime cross-bundle reference,
// a genuinely missing export is likely dead or erroneous, and neither
// fails the build.
func (r *Runner) symbolDiagnostics(bg *bundle.BundleGraph) {
	g := bg.AssetGraph()
	for _, b := range bg.Bundles() {
		for _, assetID := range b.AssetIDs() {
			for _, dep := range g.DependenciesOf(assetID) {
				if dep.Symbols == nil || dep.Symbols.IsCleared() {
					continue
				}
				resolved, ok := bg.ResolvedAsset(dep)
				if !ok || !b.HasAsset(resolved.ID) {
					continue
				}
				for _, name := range dep.Symbols.Names() {
					if name == "*" {
						continue
					}
					res := symbols.Resolve(bg, resolved, name, b)
					if res.Status == symbols.StatusUnresolved {
						r.Logger.Warn("symbol did not resolve within bundle",
							"symbol", name,
							"specifier", dep.Specifier,
							"asset", res.Asset.FilePath)
					}
				}
			}
		}
	}
}

func (r *Runner) namePhase(ctx context.Context, bg *bundle.BundleGraph) error {
	r.phaseStart(ctx, "name")
	start := time.Now()
	for _, b := range bg.Bundles() {
		named := false
		for _, namer := range r.Plugins.Namers() {
			name, err := namer.NameBundle(ctx, b, bg)
			if err != nil {
				return errors.Wrap(errors.ErrCodePluginFailed, err, "namer %s", namer.Name())
			}
			if name == "" {
				continue
			}
			b.Name = name
			if b.Target != nil {
				b.FilePath = b.Target.DistPath(name)
			} else {
				b.FilePath = name
			}
			named = true
			break
		}
		if !named {
			return errors.New(errors.ErrCodeInvalidBundle, "no namer named bundle %s", b.DisplayName())
		}
	}
	r.phaseComplete(ctx, "name", time.Since(start), nil)
	return nil
}

// packagePhase packages bundles in parallel, substitutes content hashes
// into names and contents, and optionally writes dist files.
func (r *Runner) packagePhase(ctx context.Context, opts Options, bg *bundle.BundleGraph, result *Result) error {
	phaseStart := time.Now()
	r.phaseStart(ctx, "package")

	bundles := bg.Bundles()
	outputs := make([]plugin.PackageOutput, len(bundles))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Workers)
	for i, b := range bundles {
		eg.Go(func() error {
			packager, err := r.Plugins.PackagerFor(b.Type)
			if err != nil {
				return err
			}
			out, err := packager.Package(gctx, b, bg, r)
			if err != nil {
				return errors.Wrap(errors.ErrCodePluginFailed, err, "packager %s on %s", packager.Name(), b.DisplayName())
			}
			for _, opt := range r.Plugins.Optimizers() {
				if !opt.Match(b.Type) {
					continue
				}
				out, err = opt.Optimize(gctx, b, out)
				if err != nil {
					return errors.Wrap(errors.ErrCodePluginFailed, err, "optimizer %s on %s", opt.Name(), b.DisplayName())
				}
			}
			outputs[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		r.phaseComplete(ctx, "package", time.Since(phaseStart), err)
		return err
	}

	// Hash references resolve only once every bundle's contents are final,
	// so substitution is a second pass over all outputs.
	hashes := make(map[string]string, len(bundles))
	for i, b := range bundles {
		hashes[b.HashReference] = cache.Hash(outputs[i].Contents)[:8]
	}
	for i, b := range bundles {
		contents := outputs[i].Contents
		for ref, h := range hashes {
			contents = bytes.ReplaceAll(contents, []byte(ref), []byte(h))
		}
		b.FilePath = replaceHashRefs(b.FilePath, hashes)
		b.Name = replaceHashRefs(b.Name, hashes)

		if b.IsInline {
			continue
		}
		result.Outputs[b.FilePath] = contents
		result.Stats.TotalSize += len(contents)

		if opts.Write {
			if err := writeOutput(b.FilePath, contents, outputs[i].Map); err != nil {
				return err
			}
		}
		wrote := time.Since(phaseStart)
		observability.Build().OnBundleWritten(ctx, b.Name, len(contents), wrote)
		r.report(ctx, plugin.Event{
			Type:     plugin.EventBundleWritten,
			Bundle:   b,
			FilePath: b.FilePath,
			Size:     len(contents),
		})
	}

	result.Stats.PackageTime = time.Since(phaseStart)
	r.phaseComplete(ctx, "package", result.Stats.PackageTime, nil)
	r.Logger.Info("packaged bundles",
		"bundles", len(bundles),
		"bytes", result.Stats.TotalSize,
		"duration", result.Stats.PackageTime)
	return nil
}

func replaceHashRefs(s string, hashes map[string]string) string {
	for ref, h := range hashes {
		s = replaceAll(s, ref, h)
	}
	return s
}

func replaceAll(s, old, new string) string {
	return string(bytes.ReplaceAll([]byte(s), []byte(old), []byte(new)))
}

func writeOutput(path string, contents, sourceMap []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, contents, 0644); err != nil {
		return err
	}
	if len(sourceMap) > 0 {
		if err := os.WriteFile(path+".map", sourceMap, 0644); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) phaseStart(ctx context.Context, phase string) {
	observability.Build().OnPhaseStart(ctx, phase)
	r.report(ctx, plugin.Event{Type: plugin.EventPhaseStart, Phase: phase})
}

func (r *Runner) phaseComplete(ctx context.Context, phase string, d time.Duration, err error) {
	observability.Build().OnPhaseComplete(ctx, phase, d, err)
	r.report(ctx, plugin.Event{Type: plugin.EventPhaseComplete, Phase: phase, Duration: d, Err: err})
}

func (r *Runner) report(ctx context.Context, ev plugin.Event) {
	for _, rep := range r.Plugins.Reporters() {
		if err := rep.Report(ctx, ev); err != nil {
			r.Logger.Warn("reporter failed", "reporter", rep.Name(), "error", err)
		}
	}
}
