//go:build !trace

package tracing

import (
	"context"
	"time"
)

// Enabled reports whether the binary was built with the trace tag.
const Enabled = false

const DefaultTraceFile = "dirdiff-trace.out"

// Start is a no-op when tracing is disabled.
func Start(path string) error {
	return nil
}

// Stop is a no-op when tracing is disabled.
func Stop() {}

// StartTask is a no-op when tracing is disabled.
func StartTask(ctx context.Context, name string) (context.Context, func()) {
	return ctx, func() {}
}

// StartRegion is a no-op when tracing is disabled.
func StartRegion(ctx context.Context, name string) func() {
	return func() {}
}

// Log is a no-op when tracing is disabled.
func Log(ctx context.Context, category, message string) {}

// StartFlightRecorder enables the in-memory flight recorder.
func StartFlightRecorder(maxBytes uint64, minAge time.Duration) error {
	return startFlightRecorder(maxBytes, minAge)
}

// StopFlightRecorder stops the flight recorder if it is running.
func StopFlightRecorder() {
	stopFlightRecorder()
}

// WriteFlightRecorder writes the current flight recorder window to path.
func WriteFlightRecorder(path string) error {
	return writeFlightRecorder(path)
}
