package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/packfold/packfold/pkg/env"
	"github.com/packfold/packfold/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `entries = ["src/index.js"]`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Mode != ModeDevelopment {
		t.Errorf("Mode = %s, want development", cfg.Mode)
	}
	if cfg.DistDir != "dist" {
		t.Errorf("DistDir = %s, want dist", cfg.DistDir)
	}
	if cfg.Cache.Backend != CacheFile {
		t.Errorf("Cache.Backend = %s, want file", cfg.Cache.Backend)
	}
	if cfg.ProjectRoot != filepath.Dir(path) {
		t.Errorf("ProjectRoot = %s", cfg.ProjectRoot)
	}
}

func TestLoadFull(t *testing.T) {
	path := writeConfig(t, `
entries = ["src/index.js", "src/admin.js"]
dist_dir = "build"
mode = "production"

[cache]
backend = "redis"
addr = "localhost:6379"
prefix = "packfold"

[targets.modern]
context = "browser"
format = "esmodule"
minify = true
source_maps = true

[targets.node]
context = "node"
dist_dir = "build/server"

[targets.node.engines]
node = ">=18"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(cfg.Entries) != 2 {
		t.Errorf("Entries = %v", cfg.Entries)
	}
	if cfg.Cache.Backend != CacheRedis || cfg.Cache.Addr != "localhost:6379" {
		t.Errorf("Cache = %+v", cfg.Cache)
	}

	targets, err := cfg.BuildTargets()
	if err != nil {
		t.Fatalf("BuildTargets error: %v", err)
	}
	// Alphabetical regardless of declaration order.
	if len(targets) != 2 || targets[0].Name != "modern" || targets[1].Name != "node" {
		t.Fatalf("targets = %v", targets)
	}
	if !targets[0].Env.ShouldMinify {
		t.Error("modern target should minify")
	}
	if targets[0].SourceMaps == nil {
		t.Error("modern target should have source maps")
	}
	if targets[1].Env.OutputFormat != env.FormatCommonJS {
		t.Errorf("node format = %s, want commonjs default", targets[1].Env.OutputFormat)
	}
	if targets[1].DistDir != "build/server" {
		t.Errorf("node DistDir = %s", targets[1].DistDir)
	}
	if targets[1].Env.Engines["node"] != ">=18" {
		t.Errorf("node engines = %v", targets[1].Env.Engines)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no entries", `dist_dir = "dist"`},
		{"bad mode", "entries = [\"a.js\"]\nmode = \"staging\""},
		{"bad backend", "entries = [\"a.js\"]\n[cache]\nbackend = \"dynamo\""},
		{"bad context", "entries = [\"a.js\"]\n[targets.web]\ncontext = \"wasm\""},
		{"bad toml", `entries = [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("error = %v, want INVALID_CONFIG", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("error = %v, want INVALID_CONFIG", err)
	}
}

func TestDefaultTarget(t *testing.T) {
	path := writeConfig(t, `entries = ["src/index.js"]`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	targets, err := cfg.BuildTargets()
	if err != nil {
		t.Fatalf("BuildTargets error: %v", err)
	}
	if len(targets) != 1 || targets[0].Name != "default" {
		t.Fatalf("targets = %v", targets)
	}
	if targets[0].DistDir != "dist" {
		t.Errorf("DistDir = %s", targets[0].DistDir)
	}
	if targets[0].Env.Context != env.ContextBrowser {
		t.Errorf("Context = %s", targets[0].Env.Context)
	}
}
