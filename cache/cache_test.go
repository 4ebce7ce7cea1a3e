package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dirdiff/hasher"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "cache", "digests.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestPutAndLookup(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	key := Key{Path: "/data/a.txt", Algorithm: "md5", Size: 3, ModTime: 100, ChangeTime: 200}
	fp := hasher.Fingerprint{Digest: "acbd18db4cc2f85cedef654fccc4a4d8", Size: 3}

	if _, ok, err := store.Lookup(ctx, key); err != nil || ok {
		t.Fatalf("expected miss on empty cache, got ok=%t err=%v", ok, err)
	}
	if err := store.Put(ctx, key, fp); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := store.Lookup(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%t err=%v", ok, err)
	}
	if got != fp {
		t.Fatalf("unexpected fingerprint %+v", got)
	}

	stale := key
	stale.ModTime = 101
	if _, ok, _ := store.Lookup(ctx, stale); ok {
		t.Fatal("expected miss on changed mtime")
	}
	otherAlgo := key
	otherAlgo.Algorithm = "sha256"
	if _, ok, _ := store.Lookup(ctx, otherAlgo); ok {
		t.Fatal("expected miss for other algorithm")
	}

	updated := hasher.Fingerprint{Digest: "37b51d194a7513e45b56f6524f2d51f2", Size: 3}
	if err := store.Put(ctx, stale, updated); err != nil {
		t.Fatalf("put update: %v", err)
	}
	if got, ok, _ := store.Lookup(ctx, stale); !ok || got != updated {
		t.Fatalf("expected updated entry, got %+v ok=%t", got, ok)
	}
	if n, err := store.Len(ctx); err != nil || n != 1 {
		t.Fatalf("expected single row, got %d err=%v", n, err)
	}
}

func TestKeyForTracksModification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	os.WriteFile(path, []byte("one"), 0644)
	info, _ := os.Stat(path)
	k1, err := KeyFor(path, info, "MD5")
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if !filepath.IsAbs(k1.Path) || k1.Algorithm != "md5" || k1.Size != 3 {
		t.Fatalf("unexpected key %+v", k1)
	}

	later := time.Now().Add(time.Hour)
	os.Chtimes(path, later, later)
	info, _ = os.Stat(path)
	k2, _ := KeyFor(path, info, "md5")
	if k1.ModTime == k2.ModTime {
		t.Fatal("expected modification time to change the key")
	}
}
