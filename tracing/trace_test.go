//go:build trace

package tracing

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestTraceWritesFile(t *testing.T) {
	if !Enabled {
		t.Fatal("trace build should report tracing enabled")
	}
	path := filepath.Join(t.TempDir(), DefaultTraceFile)
	if err := Start(path); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}
	ctx, endTask := StartTask(context.Background(), "compare")
	endRegion := StartRegion(ctx, "hash_file")
	Log(ctx, "root", "/srv/a")
	endRegion()
	endTask()
	Stop()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected trace file: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("expected trace data")
	}
}
