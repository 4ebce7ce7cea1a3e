// Package diag watches a running comparison and writes diagnostic artifacts
// when hashing stops making progress.
package diag

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sync"
	"time"

	"dirdiff/logger"
)

const artifactPrefix = "dirdiff"

type profileWriter interface {
	WriteTo(w io.Writer, debug int) error
}

type Options struct {
	// StallThreshold is how long the processed count may stay flat before a
	// stall event is written. Zero disables the watchdog.
	StallThreshold     time.Duration
	Dir                string
	GoroutineLeak      bool
	ProcessedFn        func() int64
	SnapshotFn         func() map[string]int64
	Roots              []string
	DumpFlightRecorder func(path string) error
	NowFn              func() time.Time
	ProfileLookupFn    func(name string) profileWriter
}

type Controller struct {
	stallThreshold     time.Duration
	dir                string
	goroutineLeak      bool
	processedFn        func() int64
	snapshotFn         func() map[string]int64
	roots              []string
	dumpFlightRecorder func(path string) error
	nowFn              func() time.Time
	profileLookupFn    func(name string) profileWriter

	mu              sync.Mutex
	lastProcessedAt time.Time
	lastProcessed   int64
	lastDumpAt      time.Time
	stalls          int

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewController(opts Options) *Controller {
	nowFn := opts.NowFn
	if nowFn == nil {
		nowFn = time.Now
	}
	profileLookup := opts.ProfileLookupFn
	if profileLookup == nil {
		profileLookup = func(name string) profileWriter {
			if p := pprof.Lookup(name); p != nil {
				return p
			}
			return nil
		}
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}

	return &Controller{
		stallThreshold:     opts.StallThreshold,
		dir:                dir,
		goroutineLeak:      opts.GoroutineLeak,
		processedFn:        opts.ProcessedFn,
		snapshotFn:         opts.SnapshotFn,
		roots:              append([]string(nil), opts.Roots...),
		dumpFlightRecorder: opts.DumpFlightRecorder,
		nowFn:              nowFn,
		profileLookupFn:    profileLookup,
	}
}

// Start launches the stall watchdog. It returns immediately when the
// threshold or the processed counter is missing.
func (c *Controller) Start(ctx context.Context) {
	if c == nil || c.stallThreshold <= 0 || c.processedFn == nil {
		return
	}
	if c.stopCh != nil {
		return
	}

	now := c.nowFn()
	c.mu.Lock()
	c.lastProcessed = c.processedFn()
	c.lastProcessedAt = now
	c.lastDumpAt = time.Time{}
	c.mu.Unlock()

	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	interval := probeInterval(c.stallThreshold)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer close(c.doneCh)

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.runProbe(c.nowFn())
			}
		}
	}()
}

func probeInterval(threshold time.Duration) time.Duration {
	interval := threshold / 2
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	if interval > 2*time.Second {
		interval = 2 * time.Second
	}
	return interval
}

// Stalls reports how many stall events were written.
func (c *Controller) Stalls() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stalls
}

func (c *Controller) Close() {
	if c == nil {
		return
	}
	if c.stopCh != nil {
		close(c.stopCh)
		if c.doneCh != nil {
			<-c.doneCh
		}
		c.stopCh = nil
		c.doneCh = nil
	}

	if c.goroutineLeak {
		path, err := c.writeProfile("goroutine", 2)
		if err != nil {
			logger.Warnf("Goroutine profile dump failed: %v", err)
			return
		}
		logger.Debugf("Goroutine profile written to %s (%d goroutines live)", path, runtime.NumGoroutine())
	}
}

func (c *Controller) runProbe(now time.Time) {
	if c == nil || c.processedFn == nil || c.stallThreshold <= 0 {
		return
	}

	processed := c.processedFn()

	c.mu.Lock()
	if processed != c.lastProcessed {
		c.lastProcessed = processed
		c.lastProcessedAt = now
		c.mu.Unlock()
		return
	}
	if c.lastProcessedAt.IsZero() {
		c.lastProcessedAt = now
		c.mu.Unlock()
		return
	}
	stalledFor := now.Sub(c.lastProcessedAt)
	shouldDump := stalledFor >= c.stallThreshold &&
		(c.lastDumpAt.IsZero() || now.Sub(c.lastDumpAt) >= c.stallThreshold)
	if shouldDump {
		c.lastDumpAt = now
		c.stalls++
	}
	c.mu.Unlock()

	if shouldDump {
		logger.Warnf("No file finished hashing for %s (%d processed so far)", stalledFor.Truncate(time.Millisecond), processed)
		if err := c.dumpStallArtifacts(now, processed, stalledFor); err != nil {
			logger.Warnf("Stall diagnostics dump failed: %v", err)
		}
	}
}

type stallEvent struct {
	Event       string           `json:"event"`
	Timestamp   string           `json:"timestamp"`
	Roots       []string         `json:"roots,omitempty"`
	Processed   int64            `json:"processed"`
	ThresholdMs int64            `json:"threshold_ms"`
	StalledMs   int64            `json:"observed_stalled_ms"`
	Goroutines  int              `json:"goroutines"`
	Counters    map[string]int64 `json:"counters,omitempty"`
}

func (c *Controller) dumpStallArtifacts(now time.Time, processed int64, stalledFor time.Duration) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return err
	}
	ts := now.UTC().Format("20060102-150405.000")
	event := stallEvent{
		Event:       "comparison_stalled",
		Timestamp:   now.UTC().Format(time.RFC3339Nano),
		Roots:       c.roots,
		Processed:   processed,
		ThresholdMs: c.stallThreshold.Milliseconds(),
		StalledMs:   stalledFor.Milliseconds(),
		Goroutines:  runtime.NumGoroutine(),
	}
	if c.snapshotFn != nil {
		event.Counters = c.snapshotFn()
	}
	b, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return err
	}
	eventPath := filepath.Join(c.dir, fmt.Sprintf("%s-slow-scan-%s.json", artifactPrefix, ts))
	if err := os.WriteFile(eventPath, b, 0600); err != nil {
		return err
	}

	if c.dumpFlightRecorder != nil {
		tracePath := filepath.Join(c.dir, fmt.Sprintf("%s-flight-%s.out", artifactPrefix, ts))
		if err := c.dumpFlightRecorder(tracePath); err != nil {
			logger.Warnf("Flight recorder dump failed: %v", err)
		}
	}
	return nil
}

func (c *Controller) writeProfile(name string, debug int) (string, error) {
	if c == nil {
		return "", fmt.Errorf("diagnostics controller is nil")
	}
	if c.profileLookupFn == nil {
		return "", fmt.Errorf("profile lookup function is nil")
	}
	profile := c.profileLookupFn(name)
	if profile == nil {
		return "", fmt.Errorf("pprof profile %q unavailable", name)
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", err
	}
	ts := c.nowFn().UTC().Format("20060102-150405.000")
	path := filepath.Join(c.dir, fmt.Sprintf("%s-%s-profile-%s.pprof", artifactPrefix, name, ts))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := profile.WriteTo(f, debug); err != nil {
		return "", err
	}
	return path, nil
}
