package cli

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/packfold/packfold/pkg/config"
	"github.com/packfold/packfold/pkg/pipeline"
)

func TestRootCommandSubcommands(t *testing.T) {
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()

	want := map[string]bool{
		"build": false, "serve": false, "graph": false,
		"cache": false, "completion": false,
	}
	for _, sub := range root.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %s", name)
		}
	}
}

func TestConfigFlagsLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "packfold.toml")
	toml := "entries = [\"src/index.js\"]\ndist_dir = \"out\"\n"
	if err := os.WriteFile(path, []byte(toml), 0644); err != nil {
		t.Fatal(err)
	}

	f := configFlags{configPath: path, production: true}
	cfg, err := f.load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != config.ModeProduction {
		t.Errorf("Mode = %s", cfg.Mode)
	}
	if !filepath.IsAbs(cfg.DistDir) {
		t.Errorf("DistDir not absolute: %s", cfg.DistDir)
	}
	if cfg.ProjectRoot != dir {
		t.Errorf("ProjectRoot = %s, want %s", cfg.ProjectRoot, dir)
	}
}

func TestConfigFlagsLoadSynthesized(t *testing.T) {
	dir := t.TempDir()
	f := configFlags{
		configPath: filepath.Join(dir, "packfold.toml"),
		entries:    []string{"src/app.js"},
	}
	cfg, err := f.load()
	if err != nil {
		t.Fatalf("load without config file: %v", err)
	}
	if len(cfg.Entries) != 1 || cfg.Entries[0] != "src/app.js" {
		t.Errorf("Entries = %v", cfg.Entries)
	}
	if cfg.Cache.Backend != config.CacheFile {
		t.Errorf("Backend = %s", cfg.Cache.Backend)
	}

	// Without entries a missing config file is an error for build commands.
	bare := configFlags{configPath: filepath.Join(dir, "packfold.toml")}
	if _, err := bare.load(); err == nil {
		t.Error("expected error when config file and entries are both absent")
	}
	// But cache commands tolerate it.
	if _, err := bare.loadAny(); err != nil {
		t.Errorf("loadAny: %v", err)
	}
}

func TestCacheDir(t *testing.T) {
	cfg := config.Config{ProjectRoot: "/proj"}
	if got := cacheDir(cfg); got != filepath.Join("/proj", ".packfold-cache") {
		t.Errorf("default cacheDir = %s", got)
	}
	cfg.Cache.Dir = "/abs/cache"
	if got := cacheDir(cfg); got != "/abs/cache" {
		t.Errorf("absolute cacheDir = %s", got)
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		n    int
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 kB"},
		{3 << 20, "3.00 MB"},
	}
	for _, tc := range cases {
		if got := formatSize(tc.n); got != tc.want {
			t.Errorf("formatSize(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestServeHandlerServesOutputs(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "src/index.js", "export const x = 1;\n")
	cfg := config.Config{
		ProjectRoot: dir,
		Entries:     []string{"src/index.js"},
		DistDir:     filepath.Join(dir, "dist"),
	}

	c := New(io.Discard, LogInfo)
	runner := pipeline.NewRunner(nil, nil, c.Logger)
	res, err := runner.Execute(t.Context(), pipeline.Options{Config: cfg})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	h := c.serveHandler(cfg.DistDir, res)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.js", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /index.js = %d", rec.Code)
	}
	if body := rec.Body.String(); body == "" {
		t.Error("empty bundle body")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/graph", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/graph = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s", ct)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope.js", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /nope.js = %d", rec.Code)
	}
}

func writeSource(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
