package plugin

import (
	"github.com/packfold/packfold/pkg/errors"
)

// Registry holds the ordered plugin sequences per phase. Register during
// setup, before the build starts; the pipeline reads it concurrently and
// never mutates it.
type Registry struct {
	resolvers    []Resolver
	transformers []Transformer
	bundler      Bundler
	namers       []Namer
	packagers    []Packager
	optimizers   []Optimizer
	validators   []Validator
	reporters    []Reporter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// UseResolver appends a resolver.
func (r *Registry) UseResolver(p Resolver) *Registry {
	r.resolvers = append(r.resolvers, p)
	return r
}

// UseTransformer appends a transformer.
func (r *Registry) UseTransformer(p Transformer) *Registry {
	r.transformers = append(r.transformers, p)
	return r
}

// SetBundler installs the bundler. Only one bundler may run per build;
// a later call replaces the earlier one.
func (r *Registry) SetBundler(p Bundler) *Registry {
	r.bundler = p
	return r
}

// UseNamer appends a namer.
func (r *Registry) UseNamer(p Namer) *Registry {
	r.namers = append(r.namers, p)
	return r
}

// UsePackager appends a packager.
func (r *Registry) UsePackager(p Packager) *Registry {
	r.packagers = append(r.packagers, p)
	return r
}

// UseOptimizer appends an optimizer.
func (r *Registry) UseOptimizer(p Optimizer) *Registry {
	r.optimizers = append(r.optimizers, p)
	return r
}

// UseValidator appends a validator.
func (r *Registry) UseValidator(p Validator) *Registry {
	r.validators = append(r.validators, p)
	return r
}

// UseReporter appends a reporter.
func (r *Registry) UseReporter(p Reporter) *Registry {
	r.reporters = append(r.reporters, p)
	return r
}

// Resolvers returns the registered resolvers in order.
func (r *Registry) Resolvers() []Resolver { return r.resolvers }

// Transformers returns the registered transformers in order.
func (r *Registry) Transformers() []Transformer { return r.transformers }

// Bundler returns the installed bundler, or nil.
func (r *Registry) Bundler() Bundler { return r.bundler }

// Namers returns the registered namers in order.
func (r *Registry) Namers() []Namer { return r.namers }

// Optimizers returns the registered optimizers in order.
func (r *Registry) Optimizers() []Optimizer { return r.optimizers }

// Validators returns the registered validators in order.
func (r *Registry) Validators() []Validator { return r.validators }

// Reporters returns the registered reporters in order.
func (r *Registry) Reporters() []Reporter { return r.reporters }

// PackagerFor returns the first packager matching the bundle type.
func (r *Registry) PackagerFor(bundleType string) (Packager, error) {
	for _, p := range r.packagers {
		if p.Match(bundleType) {
			return p, nil
		}
	}
	return nil, errors.New(errors.ErrCodeNoPackager, "no packager for bundle type %q", bundleType)
}

// TransformerFor returns the first transformer matching the file path.
func (r *Registry) TransformerFor(filePath string) (Transformer, error) {
	for _, t := range r.transformers {
		if t.Match(filePath) {
			return t, nil
		}
	}
	return nil, errors.New(errors.ErrCodeNoTransformer, "no transformer for %q", filePath)
}
