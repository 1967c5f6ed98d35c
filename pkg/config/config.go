// Package config loads and validates packfold.toml.
//
// Configuration is built once per build invocation and never mutated
// afterwards; components receive it by value.
package config

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"

	"github.com/packfold/packfold/pkg/env"
	"github.com/packfold/packfold/pkg/errors"
)

// DefaultFileName is looked up in the project root when no --config flag
// is given.
const DefaultFileName = "packfold.toml"

// Mode selects build defaults.
type Mode string

// Build modes.
const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// CacheBackend selects the blob store implementation.
type CacheBackend string

// Cache backends.
const (
	CacheFile   CacheBackend = "file"
	CacheMemory CacheBackend = "memory"
	CacheRedis  CacheBackend = "redis"
	CacheMongo  CacheBackend = "mongo"
	CacheNone   CacheBackend = "none"
)

// CacheConfig selects and parameterizes the blob store.
type CacheConfig struct {
	Backend CacheBackend `toml:"backend"`
	// Dir is the file backend's root, relative to the project root.
	Dir string `toml:"dir"`
	// Addr and Prefix configure the redis backend.
	Addr   string `toml:"addr"`
	Prefix string `toml:"prefix"`
	// URI, Database, and Collection configure the mongo backend.
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// TargetConfig is one named output target.
type TargetConfig struct {
	DistDir    string `toml:"dist_dir"`
	DistEntry  string `toml:"dist_entry"`
	PublicURL  string `toml:"public_url"`
	Context    string `toml:"context"`
	Format     string `toml:"format"`
	IsLibrary  bool   `toml:"is_library"`
	Minify     bool   `toml:"minify"`
	ScopeHoist bool   `toml:"scope_hoist"`
	SourceMaps bool   `toml:"source_maps"`

	Engines map[string]string `toml:"engines"`
}

// Config is the loaded, validated build configuration.
type Config struct {
	// ProjectRoot is the directory containing the config file. Not read
	// from TOML; set during Load.
	ProjectRoot string `toml:"-"`

	Entries []string                `toml:"entries"`
	DistDir string                  `toml:"dist_dir"`
	Mode    Mode                    `toml:"mode"`
	Cache   CacheConfig             `toml:"cache"`
	Targets map[string]TargetConfig `toml:"targets"`
}

// Load reads and validates a config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config %s", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "resolve config path %s", path)
	}
	cfg.ProjectRoot = filepath.Dir(abs)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Entries) == 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "config declares no entries")
	}
	switch c.Mode {
	case "", ModeDevelopment, ModeProduction:
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown mode: %s", c.Mode)
	}
	switch c.Cache.Backend {
	case "", CacheFile, CacheMemory, CacheRedis, CacheMongo, CacheNone:
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend: %s", c.Cache.Backend)
	}
	for name, tc := range c.Targets {
		if tc.Context != "" && !env.Context(tc.Context).Valid() {
			return errors.New(errors.ErrCodeInvalidConfig, "target %s: unknown context: %s", name, tc.Context)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeDevelopment
	}
	if c.DistDir == "" {
		c.DistDir = "dist"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheFile
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = ".packfold-cache"
	}
}

// BuildTargets converts the target table into validated env targets. A
// config without explicit targets gets one default browser target writing
// to DistDir.
func (c *Config) BuildTargets() ([]*env.Target, error) {
	if len(c.Targets) == 0 {
		defEnv := env.Default()
		if c.Mode == ModeProduction {
			e, err := env.New(env.Environment{
				Context:      env.ContextBrowser,
				OutputFormat: env.FormatESModule,
				ShouldMinify: true,
			})
			if err != nil {
				return nil, err
			}
			defEnv = e
		}
		t, err := env.NewTarget(env.Target{
			Name:      "default",
			DistDir:   c.DistDir,
			PublicURL: "/",
			Env:       defEnv,
		})
		if err != nil {
			return nil, err
		}
		return []*env.Target{t}, nil
	}

	names := make([]string, 0, len(c.Targets))
	for name := range c.Targets {
		names = append(names, name)
	}
	// Deterministic target order regardless of TOML table iteration.
	slices.Sort(names)

	out := make([]*env.Target, 0, len(names))
	for _, name := range names {
		tc := c.Targets[name]
		e := env.Environment{
			Context:          env.Context(tc.Context),
			OutputFormat:     env.OutputFormat(tc.Format),
			IsLibrary:        tc.IsLibrary,
			ShouldMinify:     tc.Minify,
			ShouldScopeHoist: tc.ScopeHoist,
			Engines:          tc.Engines,
		}
		built, err := env.New(e)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "target %s", name)
		}
		distDir := tc.DistDir
		if distDir == "" {
			distDir = filepath.Join(c.DistDir, name)
		}
		target := env.Target{
			Name:      name,
			DistDir:   distDir,
			DistEntry: tc.DistEntry,
			PublicURL: tc.PublicURL,
			Env:       built,
		}
		if tc.SourceMaps {
			target.SourceMaps = &env.SourceMapOptions{}
		}
		t, err := env.NewTarget(target)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "target %s", name)
		}
		out = append(out, t)
	}
	return out, nil
}
