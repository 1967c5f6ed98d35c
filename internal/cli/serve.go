package cli

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/packfold/packfold/pkg/pipeline"
)

// serveCommand creates the dev server command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		flags configFlags
		addr  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Build and serve the output over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			runner, err := c.newRunner(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer runner.Cache.Close()

			res, err := runner.Execute(cmd.Context(), pipeline.Options{Config: cfg})
			if err != nil {
				return err
			}
			printSuccess("Built %d bundles", res.Stats.BundleCount)

			srv := &http.Server{
				Addr:              addr,
				Handler:           c.serveHandler(cfg.DistDir, res),
				ReadHeaderTimeout: 5 * time.Second,
			}

			go func() {
				<-cmd.Context().Done()
				ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
				defer stop()
				_ = srv.Shutdown(ctx)
			}()

			printInfo("Serving on http://%s", addr)
			printNextStep("Graph", "curl http://"+addr+"/api/graph")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "localhost:1234", "listen address")

	return cmd
}

// serveHandler routes built outputs and graph introspection endpoints.
func (c *CLI) serveHandler(distDir string, res *pipeline.Result) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/graph", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := res.BundleGraph.WriteGraph(w); err != nil {
			c.Logger.Error("write graph", "error", err)
		}
	})
	r.Get("/api/graph.svg", func(w http.ResponseWriter, req *http.Request) {
		svg, err := res.BundleGraph.RenderSVG(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write(svg)
	})

	// Built outputs are served from memory keyed by their dist-relative
	// path, so serve works even after a --dry-run style build.
	byURL := make(map[string][]byte, len(res.Outputs))
	for path, contents := range res.Outputs {
		rel, err := filepath.Rel(distDir, path)
		if err != nil {
			continue
		}
		byURL["/"+filepath.ToSlash(rel)] = contents
	}

	r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
		path := req.URL.Path
		if path == "/" {
			path = "/index.html"
		}
		contents, ok := byURL[path]
		if !ok {
			http.NotFound(w, req)
			return
		}
		if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		_, _ = w.Write(contents)
	})

	return r
}
