package plugin

import (
	"context"
	"strings"
	"testing"

	"github.com/packfold/packfold/pkg/bundle"
	"github.com/packfold/packfold/pkg/config"
	"github.com/packfold/packfold/pkg/errors"
	"github.com/packfold/packfold/pkg/graph"
)

// fakeTransformer matches file paths by suffix.
type fakeTransformer struct {
	name   string
	suffix string
}

func (f *fakeTransformer) Name() string { return f.name }

func (f *fakeTransformer) Match(filePath string) bool {
	return strings.HasSuffix(filePath, f.suffix)
}

func (f *fakeTransformer) Transform(context.Context, TransformInput) ([]graph.TransformResult, error) {
	return nil, nil
}

// fakeBundler does nothing; only identity matters for registry tests.
type fakeBundler struct {
	name string
}

func (f *fakeBundler) Name() string { return f.name }

func (f *fakeBundler) Bundle(context.Context, *bundle.MutableBundleGraph, config.Config) error {
	return nil
}

func TestTransformerForPicksFirstMatch(t *testing.T) {
	js := &fakeTransformer{name: "js", suffix: ".js"}
	jsToo := &fakeTransformer{name: "js-too", suffix: ".js"}
	css := &fakeTransformer{name: "css", suffix: ".css"}

	r := NewRegistry().UseTransformer(js).UseTransformer(jsToo).UseTransformer(css)

	got, err := r.TransformerFor("src/app.js")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name() != "js" {
		t.Errorf("TransformerFor = %s, want js (registration order)", got.Name())
	}

	got, err = r.TransformerFor("src/app.css")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name() != "css" {
		t.Errorf("TransformerFor = %s", got.Name())
	}
}

func TestTransformerForNoMatch(t *testing.T) {
	r := NewRegistry().UseTransformer(&fakeTransformer{name: "js", suffix: ".js"})
	if _, err := r.TransformerFor("style.css"); !errors.Is(err, errors.ErrCodeNoTransformer) {
		t.Errorf("error = %v, want NO_TRANSFORMER", err)
	}
}

func TestPackagerForNoMatch(t *testing.T) {
	r := NewRegistry()
	if _, err := r.PackagerFor("js"); !errors.Is(err, errors.ErrCodeNoPackager) {
		t.Errorf("error = %v, want NO_PACKAGER", err)
	}
}

func TestSetBundlerReplaces(t *testing.T) {
	r := NewRegistry()
	if r.Bundler() != nil {
		t.Fatal("fresh registry should have no bundler")
	}
	first := &fakeBundler{name: "first"}
	second := &fakeBundler{name: "second"}
	r.SetBundler(first).SetBundler(second)
	if got := r.Bundler(); got.Name() != "second" {
		t.Errorf("Bundler = %s, want second (last wins)", got.Name())
	}
}
