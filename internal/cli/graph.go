package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/packfold/packfold/pkg/asset"
	"github.com/packfold/packfold/pkg/bundle"
	"github.com/packfold/packfold/pkg/errors"
	"github.com/packfold/packfold/pkg/pipeline"
	"github.com/packfold/packfold/pkg/symbols"
)

// graphCommand creates the graph inspection command.
func (c *CLI) graphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Inspect the bundle graph",
	}

	cmd.AddCommand(c.graphExportCommand())
	cmd.AddCommand(c.graphSymbolsCommand())

	return cmd
}

// buildGraph runs the pipeline without writing output and returns the
// bundle graph.
func (c *CLI) buildGraph(cmd *cobra.Command, flags *configFlags) (*pipeline.Result, error) {
	cfg, err := flags.load()
	if err != nil {
		return nil, err
	}
	runner, err := c.newRunner(cmd.Context(), cfg, false)
	if err != nil {
		return nil, err
	}
	defer runner.Cache.Close()
	return runner.Execute(cmd.Context(), pipeline.Options{Config: cfg})
}

// graphExportCommand creates the "graph export" subcommand.
func (c *CLI) graphExportCommand() *cobra.Command {
	var (
		flags  configFlags
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the bundle graph as JSON, DOT, or SVG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.buildGraph(cmd, &flags)
			if err != nil {
				return err
			}
			bg := res.BundleGraph

			var data []byte
			switch format {
			case "dot":
				data = []byte(bg.ToDOT())
			case "svg":
				data, err = bg.RenderSVG(cmd.Context())
				if err != nil {
					return err
				}
			case "json":
				if out == "" {
					return bg.WriteGraph(os.Stdout)
				}
				if err := bg.WriteGraphFile(out); err != nil {
					return err
				}
				printSuccess("Wrote graph")
				printDetail("%s %s", iconArrow, out)
				return nil
			default:
				return errors.New(errors.ErrCodeInvalidConfig, "unknown format %q (want json, dot, or svg)", format)
			}

			if out == "" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return err
			}
			printSuccess("Wrote graph")
			printFile(out, len(data))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json, dot, or svg")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (defaults to stdout)")

	return cmd
}

// graphSymbolsCommand creates the "graph symbols" subcommand.
func (c *CLI) graphSymbolsCommand() *cobra.Command {
	var flags configFlags

	cmd := &cobra.Command{
		Use:   "symbols <file>",
		Short: "List an asset's exported symbols and where they resolve",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.buildGraph(cmd, &flags)
			if err != nil {
				return err
			}
			bg := res.BundleGraph

			a := findAsset(res, args[0])
			if a == nil {
				return errors.New(errors.ErrCodeNotFound, "no asset matches %q", args[0])
			}

			names := symbols.ExportedSymbols(bg, a)
			if len(names) == 0 {
				printInfo("%s exports no statically known symbols", a.FilePath)
				return nil
			}

			fmt.Println(StyleTitle.Render(a.FilePath) + " " + StyleDim.Render("in "+bundleFor(bg, a)))
			for _, name := range names {
				r := symbols.Resolve(bg, a, name, nil)
				switch r.Status {
				case symbols.StatusFound:
					printDetail("%-20s %s (%s)", name, r.Asset.FilePath, r.Symbol)
				case symbols.StatusDynamic:
					printDetail("%-20s dynamic (%s)", name, r.Asset.FilePath)
				default:
					printWarning("%-20s unresolved past %s", name, r.Asset.FilePath)
				}
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// findAsset matches a path argument against graph assets, exact first, then
// by suffix so "src/index.js" finds the absolute entry.
func findAsset(res *pipeline.Result, path string) *asset.Asset {
	abs, err := filepath.Abs(path)
	if err == nil {
		for _, a := range res.AssetGraph.Assets() {
			if a.FilePath == abs {
				return a
			}
		}
	}
	for _, a := range res.AssetGraph.Assets() {
		if strings.HasSuffix(a.FilePath, path) {
			return a
		}
	}
	return nil
}

// bundleFor names the first bundle containing the asset, for display.
func bundleFor(bg *bundle.BundleGraph, a *asset.Asset) string {
	for _, b := range bg.BundlesContaining(a.ID) {
		return b.DisplayName()
	}
	return "(none)"
}
