package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/packfold/packfold/pkg/config"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the build cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cacheInfoCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	var flags configFlags

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached build artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadAny()
			if err != nil {
				return err
			}
			switch cfg.Cache.Backend {
			case config.CacheRedis, config.CacheMongo:
				printWarning("Remote backend %q: clear it server-side", cfg.Cache.Backend)
				return nil
			case config.CacheNone, config.CacheMemory:
				printInfo("Cache backend %q stores nothing on disk", cfg.Cache.Backend)
				return nil
			}

			dir := cacheDir(cfg)
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				printInfo("Cache is empty")
				return nil
			}

			count := 0
			err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
				if err != nil || path == dir {
					return nil
				}
				if !info.IsDir() {
					if err := os.Remove(path); err == nil {
						count++
					}
				}
				return nil
			})
			if err != nil {
				return err
			}

			// Clean up empty subdirectories.
			_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
				if err != nil || path == dir {
					return nil
				}
				if info.IsDir() {
					os.Remove(path)
				}
				return nil
			})

			printSuccess("Cleared %d cached entries", count)
			printDetail("Directory: %s", dir)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// cacheInfoCommand creates the "cache info" subcommand.
func (c *CLI) cacheInfoCommand() *cobra.Command {
	var flags configFlags

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the configured cache backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadAny()
			if err != nil {
				return err
			}
			backend := cfg.Cache.Backend
			if backend == "" {
				backend = config.CacheFile
			}
			printInfo("Backend: %s", backend)
			switch backend {
			case config.CacheFile:
				printDetail("Directory: %s", cacheDir(cfg))
			case config.CacheRedis:
				printDetail("Addr: %s", cfg.Cache.Addr)
			case config.CacheMongo:
				printDetail("URI: %s", cfg.Cache.URI)
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
