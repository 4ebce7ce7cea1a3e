//go:build !windows

package scanner

import (
	"context"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func TestScanSkipsFIFO(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"regular.txt": "data"})
	if err := unix.Mkfifo(filepath.Join(root, "pipe"), 0644); err != nil {
		t.Skipf("mkfifo unavailable: %v", err)
	}

	stats := &Stats{}
	result, err := Scan(context.Background(), root, Options{Stats: stats})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, ok := result["pipe"]; ok {
		t.Fatal("fifo must not be hashed")
	}
	if len(result) != 1 || stats.Skipped.Load() != 1 {
		t.Fatalf("unexpected result %v skipped=%d", result, stats.Skipped.Load())
	}
}
