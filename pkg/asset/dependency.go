package asset

import (
	"github.com/packfold/packfold/pkg/cache"
	"github.com/packfold/packfold/pkg/env"
	"github.com/packfold/packfold/pkg/errors"
)

// Priority controls when a dependency's target is loaded relative to its importer.
type Priority string

// Dependency priorities.
const (
	PrioritySync     Priority = "sync"     // loaded with the importer
	PriorityParallel Priority = "parallel" // separate bundle, loaded alongside
	PriorityLazy     Priority = "lazy"     // separate bundle, loaded on demand
)

// SpecifierType identifies how a dependency specifier should be interpreted.
type SpecifierType string

// Specifier kinds.
const (
	SpecifierCommonJS SpecifierType = "commonjs"
	SpecifierESM      SpecifierType = "esm"
	SpecifierURL      SpecifierType = "url"
	SpecifierCustom   SpecifierType = "custom"
)

// Dependency is a directed request from an asset (or the build root) to a
// module specifier. It carries resolution metadata and a mutable symbol map
// recording which export names the importer actually references, which
// drives tree-shaking.
type Dependency struct {
	ID            string
	Specifier     string
	SpecifierType SpecifierType
	Priority      Priority

	IsEntry         bool
	IsOptional      bool
	NeedsStableName bool
	BundleBehavior  BundleBehavior

	Env      *env.Environment
	Target   *env.Target // optional per-dependency override
	Pipeline string      // named transform pipeline, if any
	Loc      *errors.Location

	// SourceAssetID is the importing asset, or empty for entry dependencies.
	SourceAssetID string

	// Symbols maps imported names to the local bindings the importer uses.
	// A cleared table means analysis bailed out and all exports of the
	// resolved asset must be retained.
	Symbols *SymbolTable
}

// DependencyOptions are the inputs for creating a dependency.
type DependencyOptions struct {
	Specifier       string
	SpecifierType   SpecifierType
	Priority        Priority
	IsEntry         bool
	IsOptional      bool
	NeedsStableName bool
	BundleBehavior  BundleBehavior
	Env             *env.Environment
	Target          *env.Target
	Pipeline        string
	Loc             *errors.Location
	SourceAssetID   string
}

// NewDependency creates a dependency with a stable derived identity.
func NewDependency(opts DependencyOptions) *Dependency {
	if opts.SpecifierType == "" {
		opts.SpecifierType = SpecifierESM
	}
	if opts.Priority == "" {
		opts.Priority = PrioritySync
	}
	d := &Dependency{
		Specifier:       opts.Specifier,
		SpecifierType:   opts.SpecifierType,
		Priority:        opts.Priority,
		IsEntry:         opts.IsEntry,
		IsOptional:      opts.IsOptional,
		NeedsStableName: opts.NeedsStableName,
		BundleBehavior:  opts.BundleBehavior,
		Env:             opts.Env,
		Target:          opts.Target,
		Pipeline:        opts.Pipeline,
		Loc:             opts.Loc,
		SourceAssetID:   opts.SourceAssetID,
		Symbols:         NewSymbolTable(),
	}
	d.ID = d.computeID()
	return d
}

// computeID hashes the fields that participate in dependency identity.
func (d *Dependency) computeID() string {
	envID := ""
	if d.Env != nil {
		envID = d.Env.ID()
	}
	targetName := ""
	if d.Target != nil {
		targetName = d.Target.Name
	}
	return cache.ShortHash([]byte(
		d.SourceAssetID + ":" + d.Specifier + ":" + string(d.SpecifierType) + ":" +
			string(d.Priority) + ":" + envID + ":" + targetName + ":" + d.Pipeline))
}

// IsAsync reports whether the dependency crosses a bundle boundary by default.
func (d *Dependency) IsAsync() bool {
	return d.Priority != PrioritySync
}

// DependencyIDs extracts the ID from each dependency in a slice.
// Returns a new slice containing the IDs in the same order as the input.
func DependencyIDs(deps []*Dependency) []string {
	ids := make([]string, len(deps))
	for i, d := range deps {
		ids[i] = d.ID
	}
	return ids
}
