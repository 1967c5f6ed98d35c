package cache

import (
	"context"
	"errors"
	"io"
	"testing"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	// GetBlob always returns a miss
	if _, err := c.GetBlob(ctx, "key"); !IsMiss(err) {
		t.Errorf("NullCache.GetBlob error = %v, want ErrCacheMiss", err)
	}

	// SetBlob does nothing (no error)
	if err := c.SetBlob(ctx, "key", []byte("value")); err != nil {
		t.Errorf("SetBlob error: %v", err)
	}

	// Still a miss after SetBlob
	if _, err := c.GetBlob(ctx, "key"); !IsMiss(err) {
		t.Error("NullCache should not store data")
	}

	// Delete does nothing (no error)
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	if err := c.SetBlob(ctx, "k", []byte("hello")); err != nil {
		t.Fatalf("SetBlob error: %v", err)
	}

	data, err := c.GetBlob(ctx, "k")
	if err != nil {
		t.Fatalf("GetBlob error: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("GetBlob = %q, want %q", data, "hello")
	}

	// Mutating the returned slice must not affect the stored blob.
	data[0] = 'X'
	again, _ := c.GetBlob(ctx, "k")
	if string(again) != "hello" {
		t.Error("stored blob was mutated through the returned slice")
	}

	// Streams read the same bytes.
	r, err := c.GetStream(ctx, "k")
	if err != nil {
		t.Fatalf("GetStream error: %v", err)
	}
	defer r.Close()
	streamed, _ := io.ReadAll(r)
	if string(streamed) != "hello" {
		t.Errorf("GetStream = %q, want %q", streamed, "hello")
	}

	// Delete produces a miss.
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := c.GetBlob(ctx, "k"); !IsMiss(err) {
		t.Errorf("after Delete, error = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCacheMissIsDistinguishable(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_, err := c.GetBlob(ctx, "absent")
	if !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("GetBlob(absent) = %v, want ErrCacheMiss", err)
	}
	if _, err := c.GetStream(ctx, "absent"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("GetStream(absent) = %v, want ErrCacheMiss", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache error: %v", err)
	}
	defer c.Close()

	// Miss before write
	if _, err := c.GetBlob(ctx, "k"); !IsMiss(err) {
		t.Errorf("GetBlob before write = %v, want ErrCacheMiss", err)
	}

	// Round trip, including empty blobs
	for _, blob := range [][]byte{[]byte("payload"), {}} {
		if err := c.SetBlob(ctx, "k", blob); err != nil {
			t.Fatalf("SetBlob error: %v", err)
		}
		got, err := c.GetBlob(ctx, "k")
		if err != nil {
			t.Fatalf("GetBlob error: %v", err)
		}
		if string(got) != string(blob) {
			t.Errorf("GetBlob = %q, want %q", got, blob)
		}
	}

	// Streaming path
	r, err := c.GetStream(ctx, "k")
	if err != nil {
		t.Fatalf("GetStream error: %v", err)
	}
	data, _ := io.ReadAll(r)
	r.Close()
	if len(data) != 0 {
		t.Errorf("GetStream read %d bytes, want 0", len(data))
	}

	// Delete twice is fine
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("second Delete error: %v", err)
	}
}

func TestHash(t *testing.T) {
	// Test determinism
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}

	// Test different inputs produce different hashes
	h3 := Hash([]byte("world"))
	if h1 == h3 {
		t.Error("Different inputs should produce different hashes")
	}

	// Test hash length (SHA-256 produces 64 hex chars)
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}

	if len(ShortHash([]byte("hello"))) != 16 {
		t.Error("ShortHash should be 16 chars")
	}
	if ShortHash([]byte("hello")) != h1[:16] {
		t.Error("ShortHash should be a prefix of Hash")
	}
}

func TestKeyDerivation(t *testing.T) {
	h := HashString("asset-1")
	if ContentKey(h) == ASTKey(h) || ASTKey(h) == MapKey(h) {
		t.Error("key kinds must not collide for the same hash")
	}
	if ContentKey(h) != "content:"+h {
		t.Errorf("ContentKey = %q", ContentKey(h))
	}
}

func TestRetryWithBackoffStopsOnPermanentError(t *testing.T) {
	ctx := context.Background()
	calls := 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		return errors.New("permanent")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("permanent error retried %d times, want 1 call", calls)
	}
}
