package pipeline

import (
	"time"

	"github.com/packfold/packfold/pkg/bundle"
	"github.com/packfold/packfold/pkg/config"
	"github.com/packfold/packfold/pkg/errors"
	"github.com/packfold/packfold/pkg/graph"
)

// DefaultWorkers bounds parallel bundle packaging when Options.Workers is
// unset.
const DefaultWorkers = 4

// Options configures one build invocation.
type Options struct {
	Config config.Config

	// Write emits packaged bundles to their targets' dist directories.
	// Disabled for dry runs and graph inspection.
	Write bool

	// Workers bounds parallel packaging. Zero means DefaultWorkers.
	Workers int
}

// ValidateAndSetDefaults checks the options and fills defaults in place.
func (o *Options) ValidateAndSetDefaults() error {
	if len(o.Config.Entries) == 0 {
		return errors.New(errors.ErrCodeInvalidEntry, "no entries configured")
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	return nil
}

// Stats aggregates timing and counts for one build.
type Stats struct {
	TransformTime time.Duration
	BundleTime    time.Duration
	PackageTime   time.Duration

	AssetCount  int
	BundleCount int
	TotalSize   int
}

// Result is the outcome of a successful build.
type Result struct {
	AssetGraph  *graph.AssetGraph
	BundleGraph *bundle.BundleGraph

	// Outputs maps each written bundle's final file path (relative to its
	// target's dist dir) to its packaged contents.
	Outputs map[string][]byte

	Stats Stats
}
