package tracing

import (
	"os"
	"runtime/trace"
	"sync"
	"time"
)

var (
	flightMu       sync.Mutex
	flightRecorder *trace.FlightRecorder
)

func startFlightRecorder(maxBytes uint64, minAge time.Duration) error {
	flightMu.Lock()
	defer flightMu.Unlock()
	if flightRecorder != nil {
		return nil
	}
	fr := trace.NewFlightRecorder(trace.FlightRecorderConfig{
		MaxBytes: maxBytes,
		MinAge:   minAge,
	})
	if err := fr.Start(); err != nil {
		return err
	}
	flightRecorder = fr
	return nil
}

func stopFlightRecorder() {
	flightMu.Lock()
	defer flightMu.Unlock()
	if flightRecorder != nil {
		flightRecorder.Stop()
		flightRecorder = nil
	}
}

// FlightRecorderActive reports whether a flight recorder is running.
func FlightRecorderActive() bool {
	flightMu.Lock()
	defer flightMu.Unlock()
	return flightRecorder != nil && flightRecorder.Enabled()
}

// writeFlightRecorder is a no-op without a running recorder.
func writeFlightRecorder(path string) error {
	flightMu.Lock()
	defer flightMu.Unlock()
	if flightRecorder == nil || !flightRecorder.Enabled() {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = flightRecorder.WriteTo(f)
	return err
}
