// Package env defines the immutable value objects describing where build
// output will run (Environment) and where it will be written (Target).
//
// Environments participate in asset and bundle identity: the same source file
// transformed for two different environments yields two distinct assets.
// Environment values are compared field-by-field and hashed into stable IDs;
// they are never mutated after construction.
package env

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/packfold/packfold/pkg/cache"
	"github.com/packfold/packfold/pkg/errors"
)

// Context identifies the execution context output code runs in.
type Context string

// Supported execution contexts.
const (
	ContextBrowser          Context = "browser"
	ContextWebWorker        Context = "web-worker"
	ContextServiceWorker    Context = "service-worker"
	ContextNode             Context = "node"
	ContextElectronMain     Context = "electron-main"
	ContextElectronRenderer Context = "electron-renderer"
)

// IsBrowser reports whether the context executes inside a browser runtime
// (including workers and electron renderers).
func (c Context) IsBrowser() bool {
	switch c {
	case ContextBrowser, ContextWebWorker, ContextServiceWorker, ContextElectronRenderer:
		return true
	}
	return false
}

// IsNode reports whether the context has access to Node APIs.
func (c Context) IsNode() bool {
	switch c {
	case ContextNode, ContextElectronMain, ContextElectronRenderer:
		return true
	}
	return false
}

// Valid reports whether the context is one of the supported values.
func (c Context) Valid() bool {
	switch c {
	case ContextBrowser, ContextWebWorker, ContextServiceWorker,
		ContextNode, ContextElectronMain, ContextElectronRenderer:
		return true
	}
	return false
}

// OutputFormat identifies the module format of emitted bundles.
type OutputFormat string

// Supported output formats.
const (
	FormatESModule OutputFormat = "esmodule"
	FormatCommonJS OutputFormat = "commonjs"
	FormatGlobal   OutputFormat = "global"
)

// Valid reports whether the format is one of the supported values.
func (f OutputFormat) Valid() bool {
	switch f {
	case FormatESModule, FormatCommonJS, FormatGlobal:
		return true
	}
	return false
}

// NodeModulesPolicy controls which external packages are bundled.
// The zero value includes everything.
type NodeModulesPolicy struct {
	// ExcludeAll leaves every external package unbundled.
	ExcludeAll bool `json:"exclude_all,omitempty"`
	// Exceptions inverts the base policy for the listed package names.
	Exceptions []string `json:"exceptions,omitempty"`
}

// Includes reports whether the named package should be bundled.
func (p NodeModulesPolicy) Includes(pkg string) bool {
	for _, name := range p.Exceptions {
		if name == pkg {
			return p.ExcludeAll
		}
	}
	return !p.ExcludeAll
}

// Environment describes a compilation context. Construct with New and treat
// as immutable afterwards; all pipeline stages share Environment values by
// pointer.
type Environment struct {
	Context            Context           `json:"context"`
	Engines            map[string]string `json:"engines,omitempty"` // engine name -> semver range
	IncludeNodeModules NodeModulesPolicy `json:"include_node_modules"`
	OutputFormat       OutputFormat      `json:"output_format"`
	IsLibrary          bool              `json:"is_library,omitempty"`
	ShouldMinify       bool              `json:"should_minify,omitempty"`
	ShouldScopeHoist   bool              `json:"should_scope_hoist,omitempty"`

	id string
}

// New validates and freezes an environment value.
// The returned environment carries a stable content-derived ID.
func New(e Environment) (*Environment, error) {
	if e.Context == "" {
		e.Context = ContextBrowser
	}
	if !e.Context.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown environment context: %s", e.Context)
	}
	if e.OutputFormat == "" {
		if e.Context.IsNode() {
			e.OutputFormat = FormatCommonJS
		} else {
			e.OutputFormat = FormatESModule
		}
	}
	if !e.OutputFormat.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown output format: %s", e.OutputFormat)
	}
	e.id = computeID(&e)
	return &e, nil
}

// Default returns the browser/esmodule environment.
func Default() *Environment {
	e, _ := New(Environment{})
	return e
}

// ID returns the environment's stable identity hash.
// Two environments have the same ID exactly when Equal reports true.
func (e *Environment) ID() string { return e.id }

// Equal reports whether two environments are interchangeable.
// All fields participate in the comparison.
func (e *Environment) Equal(other *Environment) bool {
	if e == other {
		return true
	}
	if e == nil || other == nil {
		return false
	}
	if e.Context != other.Context ||
		e.OutputFormat != other.OutputFormat ||
		e.IsLibrary != other.IsLibrary ||
		e.ShouldMinify != other.ShouldMinify ||
		e.ShouldScopeHoist != other.ShouldScopeHoist ||
		e.IncludeNodeModules.ExcludeAll != other.IncludeNodeModules.ExcludeAll {
		return false
	}
	if strings.Join(e.IncludeNodeModules.Exceptions, ",") != strings.Join(other.IncludeNodeModules.Exceptions, ",") {
		return false
	}
	if len(e.Engines) != len(other.Engines) {
		return false
	}
	for k, v := range e.Engines {
		if other.Engines[k] != v {
			return false
		}
	}
	return true
}

// computeID hashes the canonical serialization of the environment.
// Engine maps are sorted so the hash is independent of map iteration order.
func computeID(e *Environment) string {
	type canonical struct {
		Context      Context
		Engines      []string
		Policy       NodeModulesPolicy
		OutputFormat OutputFormat
		Flags        [3]bool
	}
	engines := make([]string, 0, len(e.Engines))
	for k, v := range e.Engines {
		engines = append(engines, k+"="+v)
	}
	sort.Strings(engines)
	data, _ := json.Marshal(canonical{
		Context:      e.Context,
		Engines:      engines,
		Policy:       e.IncludeNodeModules,
		OutputFormat: e.OutputFormat,
		Flags:        [3]bool{e.IsLibrary, e.ShouldMinify, e.ShouldScopeHoist},
	})
	return cache.ShortHash(data)
}
