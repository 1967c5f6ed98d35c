package asset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/packfold/packfold/pkg/cache"
)

// NoContentError reports an asset with neither raw cached content nor an AST
// to regenerate from. It indicates a graph/cache consistency bug and is not
// recoverable for that asset's content request.
type NoContentError struct {
	AssetID  string
	FilePath string
}

// Error implements the error interface.
func (e *NoContentError) Error() string {
	return fmt.Sprintf("asset %s (%s) has no cached content and no AST to generate from", e.AssetID, e.FilePath)
}

// SourceMap is a decoded source map object.
type SourceMap struct {
	Version    int      `json:"version"`
	File       string   `json:"file,omitempty"`
	SourceRoot string   `json:"sourceRoot,omitempty"`
	Sources    []string `json:"sources"`
	Names      []string `json:"names"`
	Mappings   string   `json:"mappings"`
}

// ContentStore lazily resolves one asset's code, buffer, stream, AST, and
// source map from the blob cache, regenerating derived forms from the cached
// AST when the raw blob is absent.
//
// Every accessor memoizes its result for the asset's in-memory lifetime, and
// concurrent first-calls collapse into a single underlying fetch or
// regeneration: a second caller observes the in-flight operation rather than
// starting a redundant one. A store belongs to exactly one asset.
type ContentStore struct {
	asset      *Asset
	cache      cache.Cache
	serializer Serializer
	generator  Generator

	group singleflight.Group

	mu        sync.RWMutex
	buf       []byte
	bufSet    bool
	ast       *AST
	astSet    bool
	mapBuf    []byte
	mapBufSet bool
	srcMap    *SourceMap
	srcMapSet bool
}

// NewContentStore creates the content store for an asset.
// serializer defaults to JSONSerializer when nil; generator may be nil if
// the asset is never served from an AST-only cache state.
func NewContentStore(a *Asset, c cache.Cache, serializer Serializer, generator Generator) *ContentStore {
	if serializer == nil {
		serializer = JSONSerializer{}
	}
	return &ContentStore{
		asset:      a,
		cache:      c,
		serializer: serializer,
		generator:  generator,
	}
}

// Asset returns the owning asset.
func (s *ContentStore) Asset() *Asset { return s.asset }

// Buffer returns the asset's content bytes.
//
// If raw content is cached it is fetched from the blob cache; if only an AST
// is cached, code is generated from it exactly once. Empty content yields a
// zero-length buffer, never an error. Returns *NoContentError when neither
// source exists.
func (s *ContentStore) Buffer(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	if s.bufSet {
		buf := s.buf
		s.mu.RUnlock()
		return buf, nil
	}
	s.mu.RUnlock()

	v, err, _ := s.group.Do("content", func() (any, error) {
		// A concurrent winner may have filled the slot already.
		s.mu.RLock()
		if s.bufSet {
			buf := s.buf
			s.mu.RUnlock()
			return buf, nil
		}
		s.mu.RUnlock()

		switch {
		case s.asset.ContentKey != "":
			data, err := s.cache.GetBlob(ctx, s.asset.ContentKey)
			if err != nil {
				return nil, err
			}
			s.mu.Lock()
			s.buf = data
			s.bufSet = true
			s.mu.Unlock()
			return data, nil

		case s.asset.ASTKey != "":
			if err := s.generate(ctx); err != nil {
				return nil, err
			}
			s.mu.RLock()
			buf := s.buf
			s.mu.RUnlock()
			return buf, nil

		default:
			return nil, &NoContentError{AssetID: s.asset.ID, FilePath: s.asset.FilePath}
		}
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Code returns the asset's content decoded as text.
func (s *ContentStore) Code(ctx context.Context) (string, error) {
	buf, err := s.Buffer(ctx)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// Stream returns a reader over the asset's content.
//
// The underlying fetch is deferred until the first Read, so callers can
// obtain the stream before content resolution has finished. All streams for
// one asset share the single memoized materialization.
func (s *ContentStore) Stream(ctx context.Context) io.ReadCloser {
	return &lazyStream{ctx: ctx, store: s}
}

// AST returns the asset's parsed representation, or nil if the asset has no
// AST key. The cached blob is fetched and deserialized at most once.
func (s *ContentStore) AST(ctx context.Context) (*AST, error) {
	if s.asset.ASTKey == "" {
		return nil, nil
	}

	s.mu.RLock()
	if s.astSet {
		ast := s.ast
		s.mu.RUnlock()
		return ast, nil
	}
	s.mu.RUnlock()

	v, err, _ := s.group.Do("ast", func() (any, error) {
		s.mu.RLock()
		if s.astSet {
			ast := s.ast
			s.mu.RUnlock()
			return ast, nil
		}
		s.mu.RUnlock()

		data, err := s.cache.GetBlob(ctx, s.asset.ASTKey)
		if err != nil {
			return nil, err
		}
		ast, err := s.serializer.Deserialize(data)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.ast = ast
		s.astSet = true
		s.mu.Unlock()
		return ast, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*AST), nil
}

// MapBuffer returns the asset's source-map bytes, or nil when no map exists.
//
// A "not found" miss on the map blob falls back to regenerating from the AST
// when one exists; any other cache error propagates unchanged.
func (s *ContentStore) MapBuffer(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	if s.mapBufSet {
		buf := s.mapBuf
		s.mu.RUnlock()
		return buf, nil
	}
	s.mu.RUnlock()

	v, err, _ := s.group.Do("map", func() (any, error) {
		s.mu.RLock()
		if s.mapBufSet {
			buf := s.mapBuf
			s.mu.RUnlock()
			return buf, nil
		}
		s.mu.RUnlock()

		if s.asset.MapKey != "" {
			data, err := s.cache.GetBlob(ctx, s.asset.MapKey)
			switch {
			case err == nil:
				s.mu.Lock()
				s.mapBuf = data
				s.mapBufSet = true
				s.mu.Unlock()
				return data, nil
			case cache.IsMiss(err) && s.asset.ASTKey != "":
				// Fall through to regeneration below.
			default:
				return nil, err
			}
		}

		if s.asset.ASTKey != "" {
			if err := s.generate(ctx); err != nil {
				return nil, err
			}
			s.mu.RLock()
			buf := s.mapBuf
			s.mu.RUnlock()
			return buf, nil
		}

		// No map key and no AST: the asset simply has no map.
		s.mu.Lock()
		s.mapBufSet = true
		s.mu.Unlock()
		return []byte(nil), nil
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.([]byte), nil
}

// Map decodes the asset's source map, or returns nil if none exists.
func (s *ContentStore) Map(ctx context.Context) (*SourceMap, error) {
	s.mu.RLock()
	if s.srcMapSet {
		m := s.srcMap
		s.mu.RUnlock()
		return m, nil
	}
	s.mu.RUnlock()

	buf, err := s.MapBuffer(ctx)
	if err != nil {
		return nil, err
	}
	var m *SourceMap
	if len(buf) > 0 {
		m = &SourceMap{}
		if err := json.Unmarshal(buf, m); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	s.srcMap = m
	s.srcMapSet = true
	s.mu.Unlock()
	return m, nil
}

// Dependencies returns a snapshot of the asset's declared dependencies.
// The sequence is stable for a given asset.
func (s *ContentStore) Dependencies() []*Dependency {
	return slices.Clone(s.asset.Dependencies)
}

// generate runs code generation from the cached AST and memoizes both the
// generated content and the generated map. Concurrent content and map
// requests collapse into one generator invocation.
func (s *ContentStore) generate(ctx context.Context) error {
	_, err, _ := s.group.Do("generate", func() (any, error) {
		s.mu.RLock()
		done := s.bufSet && s.mapBufSet
		s.mu.RUnlock()
		if done {
			return nil, nil
		}

		ast, err := s.AST(ctx)
		if err != nil {
			return nil, err
		}
		if ast == nil {
			return nil, &NoContentError{AssetID: s.asset.ID, FilePath: s.asset.FilePath}
		}
		if s.generator == nil {
			return nil, fmt.Errorf("asset %s: no code generator configured", s.asset.ID)
		}
		out, err := s.generator.Generate(ctx, s.asset, ast)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if !s.bufSet {
			s.buf = out.Content
			s.bufSet = true
		}
		if !s.mapBufSet {
			s.mapBuf = out.Map
			s.mapBufSet = true
		}
		s.mu.Unlock()
		return nil, nil
	})
	return err
}

// lazyStream defers content materialization until the first Read.
type lazyStream struct {
	ctx   context.Context
	store *ContentStore
	r     *bytes.Reader
	err   error
}

// Read implements io.Reader.
func (l *lazyStream) Read(p []byte) (int, error) {
	if l.err != nil {
		return 0, l.err
	}
	if l.r == nil {
		buf, err := l.store.Buffer(l.ctx)
		if err != nil {
			l.err = err
			return 0, err
		}
		l.r = bytes.NewReader(buf)
	}
	return l.r.Read(p)
}

// Close implements io.Closer.
func (l *lazyStream) Close() error {
	l.err = io.ErrClosedPipe
	return nil
}
