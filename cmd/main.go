package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"dirdiff/cache"
	"dirdiff/config"
	"dirdiff/diag"
	"dirdiff/diff"
	"dirdiff/logger"
	"dirdiff/report"
	"dirdiff/scanner"
	"dirdiff/systeminfo"
	"dirdiff/tracing"
	"dirdiff/version"

	"github.com/sirupsen/logrus"
)

const (
	exitOK          = 0
	exitDifferences = 1
	exitError       = 2
	exitInterrupted = 130
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	cfg, err := config.LoadConfig()
	if errors.Is(err, config.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return exitError
	}

	logger.Init(cfg.LogLevel)
	logger.Debugf("dirdiff %s", version.Version)

	if tracing.Enabled {
		if err := tracing.Start(""); err != nil {
			logger.Warnf("Failed to start trace: %v", err)
		} else {
			defer tracing.Stop()
		}
	}

	if cfg.TraceFlight {
		if err := tracing.StartFlightRecorder(cfg.TraceFlightMaxBytes, cfg.TraceFlightMinAge); err != nil {
			logger.Warnf("Failed to start flight recorder: %v", err)
		} else {
			defer func() {
				if err := tracing.WriteFlightRecorder(cfg.TraceFlightFile); err != nil {
					logger.Warnf("Failed to write flight recorder: %v", err)
				}
				tracing.StopFlightRecorder()
			}()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var interrupted atomic.Bool
	go handleSignals(cancel, &interrupted, cfg.TraceFlight, cfg.TraceFlightFile)

	if cfg.Interactive && stdinIsTerminal() {
		if err := promptForRoots(ctx, cfg, os.Stdin, os.Stderr); err != nil {
			if interrupted.Load() {
				return exitInterrupted
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitError
		}
	}
	if err := cfg.ValidateRoots(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}

	out, closeOut, err := cfg.OutputWriter()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening output: %v\n", err)
		return exitError
	}
	defer func() {
		if err := closeOut(); err != nil {
			logger.Warnf("Failed to close output: %v", err)
		}
	}()

	rep, err := compare(ctx, cfg, out)
	if err != nil {
		if interrupted.Load() || errors.Is(err, context.Canceled) {
			logger.Warn("Comparison interrupted; no report written.")
			return exitInterrupted
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	return exitCode(rep, cfg)
}

func exitCode(rep diff.Report, cfg *config.Config) int {
	if cfg.FailOnDiff && rep.HasDifferences() {
		return exitDifferences
	}
	return exitOK
}

// compare scans both roots, renders the report to out and forwards it to the
// OTLP exporter when one is configured.
func compare(ctx context.Context, cfg *config.Config, out io.Writer) (diff.Report, error) {
	stats := &scanner.Stats{}
	opts := scanner.OptionsFromConfig(cfg)
	opts.Stats = stats

	if cfg.CacheFile != "" {
		store, err := cache.Open(cfg.CacheFile)
		if err != nil {
			logger.Warnf("Digest cache disabled: %v", err)
		} else {
			defer store.Close()
			opts.Cache = store
		}
	}

	finishProgress := func() {}
	if cfg.Progress {
		bar := scanner.NewProgressBar("Hashing")
		opts.Progress = bar
		finishProgress = func() { _ = bar.Finish() }
	}

	controller := diag.NewController(diag.Options{
		StallThreshold: cfg.DiagSlowScanThreshold,
		Dir:            cfg.DiagDir,
		GoroutineLeak:  cfg.DiagGoroutineLeak,
		ProcessedFn:    stats.Processed.Load,
		SnapshotFn:     func() map[string]int64 { return statsSnapshot(stats) },
		Roots:          []string{cfg.From, cfg.To},
		DumpFlightRecorder: func(path string) error {
			if !cfg.TraceFlight {
				return nil
			}
			return tracing.WriteFlightRecorder(path)
		},
	})
	controller.Start(ctx)
	defer controller.Close()

	start := time.Now()
	from, to, err := scanner.ScanPair(ctx, cfg.From, cfg.To, opts)
	finishProgress()
	if err != nil {
		return diff.Report{}, err
	}
	rep := diff.Diff(from, to)
	metrics := report.NewMetrics(stats, start, time.Now())

	ropts := report.OptionsFromConfig(cfg)
	if cfg.CollectSystemInfo && cfg.OutputFormat == report.FormatJSON {
		ropts.SystemInfo = systeminfo.Collect(cfg.From, cfg.To)
	}
	if err := report.Write(out, rep, ropts, metrics); err != nil {
		return rep, fmt.Errorf("writing report: %w", err)
	}

	exporter, err := report.NewExporter(cfg)
	if err != nil {
		logger.Warnf("OTEL export disabled: %v", err)
	} else if exporter != nil {
		logger.Debugf("Exporting report to %s", exporter.Endpoint())
		exporter.Export(rep, ropts, metrics)
		exporter.Shutdown()
	}

	counts := rep.Counts()
	logger.WithFields(logrus.Fields{
		"added":      counts.Added,
		"removed":    counts.Removed,
		"modified":   counts.Modified,
		"identical":  counts.Identical,
		"failed":     metrics.FilesFailed,
		"cache_hits": metrics.CacheHits,
		"duration":   time.Duration(metrics.DurationMs) * time.Millisecond,
	}).Info("Comparison completed.")
	return rep, nil
}

func statsSnapshot(stats *scanner.Stats) map[string]int64 {
	return map[string]int64{
		"enumerated":   stats.Enumerated.Load(),
		"hashed":       stats.Hashed.Load(),
		"cache_hits":   stats.CacheHits.Load(),
		"failed":       stats.Failed.Load(),
		"skipped":      stats.Skipped.Load(),
		"skipped_dirs": stats.SkippedDirs.Load(),
		"processed":    stats.Processed.Load(),
	}
}

func handleSignals(cancelFunc context.CancelFunc, interrupted *atomic.Bool, traceFlight bool, traceFlightFile string) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	handleSignalEvent(cancelFunc, interrupted, traceFlight, traceFlightFile, sigChan)
}

func handleSignalEvent(cancelFunc context.CancelFunc, interrupted *atomic.Bool, traceFlight bool, traceFlightFile string, sigChan <-chan os.Signal) {
	sig := <-sigChan
	logger.Infof("Signal %v received. Shutting down...", sig)
	interrupted.Store(true)

	if traceFlight {
		if err := tracing.WriteFlightRecorder(traceFlightFile); err != nil {
			logger.Warnf("Failed to write flight recorder: %v", err)
		}
		tracing.StopFlightRecorder()
	}

	cancelFunc()
}
