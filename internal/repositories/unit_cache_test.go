package repositories

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ryantate/typingpool-sub000/internal/shared"
)

func setupCache(t *testing.T) *UnitCache {
	t.Helper()

	cache, err := OpenUnitCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	return cache
}

func TestUnitCache(t *testing.T) {
	ctx := context.Background()

	t.Run("Get miss", func(t *testing.T) {
		cache := setupCache(t)

		_, err := cache.Get(ctx, "U1:url:project")
		if !errors.Is(err, shared.ErrCacheMiss) {
			t.Errorf("expected ErrCacheMiss, got %v", err)
		}
	})

	t.Run("Put then Get", func(t *testing.T) {
		cache := setupCache(t)

		if err := cache.Put(ctx, "U1:url:project", "U1", []byte(`{"ours":false}`)); err != nil {
			t.Fatalf("failed to put: %v", err)
		}

		got, err := cache.Get(ctx, "U1:url:project")
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if string(got) != `{"ours":false}` {
			t.Errorf("unexpected snapshot %s", got)
		}
	})

	t.Run("Put replaces", func(t *testing.T) {
		cache := setupCache(t)

		if err := cache.Put(ctx, "k", "U1", []byte("one")); err != nil {
			t.Fatalf("failed to put: %v", err)
		}
		if err := cache.Put(ctx, "k", "U1", []byte("two")); err != nil {
			t.Fatalf("failed to put again: %v", err)
		}

		got, _ := cache.Get(ctx, "k")
		if string(got) != "two" {
			t.Errorf("expected replaced value, got %s", got)
		}

		n, err := cache.Count(ctx)
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 entry, got %d", n)
		}
	})

	t.Run("Keys are distinct per field names", func(t *testing.T) {
		cache := setupCache(t)

		cache.Put(ctx, "U1:url:project", "U1", []byte("a"))
		cache.Put(ctx, "U1:audio:proj", "U1", []byte("b"))

		a, _ := cache.Get(ctx, "U1:url:project")
		b, _ := cache.Get(ctx, "U1:audio:proj")
		if string(a) != "a" || string(b) != "b" {
			t.Errorf("entries collided: %s %s", a, b)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		cache := setupCache(t)

		cache.Put(ctx, "k", "U1", []byte("v"))
		if err := cache.Delete(ctx, "k"); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if _, err := cache.Get(ctx, "k"); !errors.Is(err, shared.ErrCacheMiss) {
			t.Errorf("expected miss after delete, got %v", err)
		}
		if err := cache.Delete(ctx, "k"); err != nil {
			t.Errorf("deleting a missing key should succeed, got %v", err)
		}
	})

	t.Run("Persists across reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.db")

		first, err := OpenUnitCache(path)
		if err != nil {
			t.Fatalf("failed to open: %v", err)
		}
		first.Put(ctx, "k", "U1", []byte("kept"))
		first.Close()

		second, err := OpenUnitCache(path)
		if err != nil {
			t.Fatalf("failed to reopen: %v", err)
		}
		defer second.Close()

		got, err := second.Get(ctx, "k")
		if err != nil || string(got) != "kept" {
			t.Errorf("expected kept, got %q (%v)", got, err)
		}
	})
}
