// Package cli implements the packfold command-line interface.
package cli

import (
	"context"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/packfold/packfold/pkg/buildinfo"
	"github.com/packfold/packfold/pkg/cache"
	"github.com/packfold/packfold/pkg/config"
	"github.com/packfold/packfold/pkg/errors"
	"github.com/packfold/packfold/pkg/pipeline"
)

// appName is the application name used for directories and display.
const appName = "packfold"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Packfold bundles web assets into deployable output",
		Long:         `Packfold resolves, transforms, and bundles source modules into optimized output files, splitting on dynamic imports and hashing bundle names for cache-safe deploys.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.buildCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// newRunner creates a pipeline runner backed by the configured cache.
func (c *CLI) newRunner(ctx context.Context, cfg config.Config, noCache bool) (*pipeline.Runner, error) {
	blob, err := newCache(ctx, cfg, noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(blob, nil, c.Logger), nil
}

// newCache selects the blob store. "none" and --no-cache still return a
// memory cache: packaging reads transformed content back through the
// cache, so disabling persistence must not discard in-flight blobs.
func newCache(ctx context.Context, cfg config.Config, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewMemoryCache(), nil
	}
	switch cfg.Cache.Backend {
	case config.CacheNone, config.CacheMemory:
		return cache.NewMemoryCache(), nil
	case config.CacheRedis:
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:   cfg.Cache.Addr,
			Prefix: cfg.Cache.Prefix,
		})
	case config.CacheMongo:
		return cache.NewMongoCache(ctx, cache.MongoConfig{
			URI:        cfg.Cache.URI,
			Database:   cfg.Cache.Database,
			Collection: cfg.Cache.Collection,
		})
	default:
		return cache.NewFileCache(cacheDir(cfg))
	}
}

// cacheDir resolves the file backend's directory against the project root.
func cacheDir(cfg config.Config) string {
	dir := cfg.Cache.Dir
	if dir == "" {
		dir = ".packfold-cache"
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(cfg.ProjectRoot, dir)
}

// configFlags are the shared configuration flags for build-like commands.
type configFlags struct {
	configPath string
	entries    []string
	distDir    string
	production bool
}

func (f *configFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", config.DefaultFileName, "path to the config file")
	cmd.Flags().StringSliceVarP(&f.entries, "entry", "e", nil, "entry files (overrides config entries)")
	cmd.Flags().StringVar(&f.distDir, "dist-dir", "", "output directory (overrides config)")
	cmd.Flags().BoolVar(&f.production, "production", false, "build in production mode")
}

// load reads the config file and applies flag overrides. When the config
// file is absent but entries were passed on the command line, a config is
// synthesized from defaults so packfold works in projects without one.
func (f *configFlags) load() (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		if len(f.entries) == 0 {
			return config.Config{}, err
		}
		cfg, err = f.synthesize()
		if err != nil {
			return config.Config{}, err
		}
	}
	if len(f.entries) > 0 {
		cfg.Entries = f.entries
	}
	if f.distDir != "" {
		cfg.DistDir = f.distDir
	}
	if f.production {
		cfg.Mode = config.ModeProduction
	}
	if !filepath.IsAbs(cfg.DistDir) {
		cfg.DistDir = filepath.Join(cfg.ProjectRoot, cfg.DistDir)
	}
	return cfg, nil
}

// loadAny is load for commands that work without entries, such as cache
// management. A missing config file falls back to defaults.
func (f *configFlags) loadAny() (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err == nil {
		return cfg, nil
	}
	return f.synthesize()
}

// synthesize builds a default config rooted at the config file's directory.
func (f *configFlags) synthesize() (config.Config, error) {
	root, err := filepath.Abs(filepath.Dir(f.configPath))
	if err != nil {
		return config.Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "resolve project root")
	}
	return config.Config{
		ProjectRoot: root,
		Entries:     f.entries,
		DistDir:     "dist",
		Mode:        config.ModeDevelopment,
		Cache:       config.CacheConfig{Backend: config.CacheFile},
	}, nil
}
