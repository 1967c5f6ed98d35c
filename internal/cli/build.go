package cli

import (
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/packfold/packfold/pkg/pipeline"
)

// buildCommand creates the build command.
func (c *CLI) buildCommand() *cobra.Command {
	var (
		flags   configFlags
		noCache bool
		dryRun  bool
		workers int
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build all entries into bundled output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			runner, err := c.newRunner(cmd.Context(), cfg, noCache)
			if err != nil {
				return err
			}
			defer runner.Cache.Close()

			start := time.Now()
			res, err := runner.Execute(cmd.Context(), pipeline.Options{
				Config:  cfg,
				Write:   !dryRun,
				Workers: workers,
			})
			if err != nil {
				return err
			}

			printSuccess("Built %d bundles in %s",
				res.Stats.BundleCount, time.Since(start).Round(time.Millisecond))
			for _, path := range slices.Sorted(maps.Keys(res.Outputs)) {
				printFile(path, len(res.Outputs[path]))
			}
			printStats(res.Stats.AssetCount, res.Stats.BundleCount, res.Stats.TotalSize)
			if dryRun {
				printDetail("dry run: nothing written")
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the build cache")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "build without writing output files")
	cmd.Flags().IntVar(&workers, "workers", pipeline.DefaultWorkers, "parallel packaging workers")

	return cmd
}
