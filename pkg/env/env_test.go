package env

import "testing"

func TestNewDefaults(t *testing.T) {
	e, err := New(Environment{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if e.Context != ContextBrowser {
		t.Errorf("Context = %v, want browser", e.Context)
	}
	if e.OutputFormat != FormatESModule {
		t.Errorf("OutputFormat = %v, want esmodule", e.OutputFormat)
	}
	if e.ID() == "" {
		t.Error("ID should be non-empty")
	}

	node, err := New(Environment{Context: ContextNode})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if node.OutputFormat != FormatCommonJS {
		t.Errorf("node default OutputFormat = %v, want commonjs", node.OutputFormat)
	}
}

func TestNewRejectsInvalid(t *testing.T) {
	if _, err := New(Environment{Context: "toaster"}); err == nil {
		t.Error("invalid context should be rejected")
	}
	if _, err := New(Environment{OutputFormat: "tarball"}); err == nil {
		t.Error("invalid output format should be rejected")
	}
}

func TestEqualAndID(t *testing.T) {
	a, _ := New(Environment{Context: ContextBrowser, Engines: map[string]string{"chrome": ">=100", "firefox": ">=90"}})
	b, _ := New(Environment{Context: ContextBrowser, Engines: map[string]string{"firefox": ">=90", "chrome": ">=100"}})
	c, _ := New(Environment{Context: ContextNode})

	if !a.Equal(b) {
		t.Error("environments with identical fields should be equal")
	}
	if a.ID() != b.ID() {
		t.Error("equal environments should share an ID regardless of map order")
	}
	if a.Equal(c) {
		t.Error("different contexts should not be equal")
	}
	if a.ID() == c.ID() {
		t.Error("different environments should have different IDs")
	}

	minified, _ := New(Environment{Context: ContextBrowser, ShouldMinify: true,
		Engines: map[string]string{"chrome": ">=100", "firefox": ">=90"}})
	if a.Equal(minified) || a.ID() == minified.ID() {
		t.Error("flag differences must affect equality and identity")
	}
}

func TestNodeModulesPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy NodeModulesPolicy
		pkg    string
		want   bool
	}{
		{"default includes all", NodeModulesPolicy{}, "lodash", true},
		{"exclude all", NodeModulesPolicy{ExcludeAll: true}, "lodash", false},
		{"exclude all with exception", NodeModulesPolicy{ExcludeAll: true, Exceptions: []string{"lodash"}}, "lodash", true},
		{"include all with exception", NodeModulesPolicy{Exceptions: []string{"lodash"}}, "react", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Includes(tt.pkg); got != tt.want {
				t.Errorf("Includes(%q) = %v, want %v", tt.pkg, got, tt.want)
			}
		})
	}
}

func TestNewTarget(t *testing.T) {
	tgt, err := NewTarget(Target{Name: "default", DistDir: "dist"})
	if err != nil {
		t.Fatalf("NewTarget error: %v", err)
	}
	if tgt.Env == nil {
		t.Error("target env should default")
	}
	if tgt.PublicURL != "/" {
		t.Errorf("PublicURL = %q, want /", tgt.PublicURL)
	}
	if got := tgt.DistPath("main.js"); got != "dist/main.js" {
		t.Errorf("DistPath = %q", got)
	}

	if _, err := NewTarget(Target{DistDir: "dist"}); err == nil {
		t.Error("missing name should be rejected")
	}
	if _, err := NewTarget(Target{Name: "x"}); err == nil {
		t.Error("missing dist dir should be rejected")
	}
}
