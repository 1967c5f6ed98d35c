package env

import (
	"path/filepath"

	"github.com/packfold/packfold/pkg/errors"
)

// SourceMapOptions controls source map emission for a target.
type SourceMapOptions struct {
	Inline        bool   `json:"inline,omitempty"`
	InlineSources bool   `json:"inline_sources,omitempty"`
	SourceRoot    string `json:"source_root,omitempty"`
}

// Target describes an output destination: where bundles for a given
// environment are written and how they are addressed publicly.
// Targets are immutable after construction.
type Target struct {
	Name       string            `json:"name"`
	DistDir    string            `json:"dist_dir"`
	DistEntry  string            `json:"dist_entry,omitempty"`
	PublicURL  string            `json:"public_url"`
	Env        *Environment      `json:"env"`
	SourceMaps *SourceMapOptions `json:"source_maps,omitempty"`
	Loc        *errors.Location  `json:"loc,omitempty"`
}

// NewTarget validates a target definition.
func NewTarget(t Target) (*Target, error) {
	if t.Name == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "target name must not be empty")
	}
	if t.DistDir == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "target %s: dist dir must not be empty", t.Name)
	}
	if t.Env == nil {
		t.Env = Default()
	}
	if t.PublicURL == "" {
		t.PublicURL = "/"
	}
	return &t, nil
}

// DistPath joins a bundle's relative name onto the target's dist directory.
func (t *Target) DistPath(name string) string {
	return filepath.Join(t.DistDir, name)
}
