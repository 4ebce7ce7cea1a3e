// Package report renders comparison results as text, NDJSON or CSV and can
// forward them as OTLP log records.
package report

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"dirdiff/config"
	"dirdiff/diff"
	"dirdiff/scanner"
	"dirdiff/systeminfo"
)

const SchemaVersion = "1.0.0"

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

type Options struct {
	Format        string
	From          string
	To            string
	Algorithm     string
	ShowIdentical bool
	Color         string
	SystemInfo    *systeminfo.SystemInfo
}

// OptionsFromConfig copies the rendering settings of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Format:        cfg.OutputFormat,
		From:          cfg.From,
		To:            cfg.To,
		Algorithm:     cfg.HashAlgorithm,
		ShowIdentical: cfg.ShowIdentical,
		Color:         cfg.Color,
	}
}

type Metrics struct {
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMs      int64  `json:"duration_ms"`
	FilesEnumerated int64  `json:"files_enumerated"`
	FilesHashed     int64  `json:"files_hashed"`
	CacheHits       int64  `json:"cache_hits"`
	FilesFailed     int64  `json:"files_failed"`
	FilesSkipped    int64  `json:"files_skipped"`
	DirsSkipped     int64  `json:"dirs_skipped"`
}

// NewMetrics snapshots scan counters for a comparison that ran from start to
// end.
func NewMetrics(stats *scanner.Stats, start, end time.Time) *Metrics {
	m := &Metrics{
		StartTime:  start.UTC().Format(time.RFC3339),
		EndTime:    end.UTC().Format(time.RFC3339),
		DurationMs: end.Sub(start).Milliseconds(),
	}
	if stats != nil {
		m.FilesEnumerated = stats.Enumerated.Load()
		m.FilesHashed = stats.Hashed.Load()
		m.CacheHits = stats.CacheHits.Load()
		m.FilesFailed = stats.Failed.Load()
		m.FilesSkipped = stats.Skipped.Load()
		m.DirsSkipped = stats.SkippedDirs.Load()
	}
	return m
}

// Write renders rep to w in the configured format. Metrics may be nil.
func Write(w io.Writer, rep diff.Report, opts Options, m *Metrics) error {
	buf := bufio.NewWriterSize(w, 64*1024)
	var err error
	switch opts.Format {
	case FormatText, "":
		err = writeText(buf, rep, opts, newTextStyles(w, opts.Color))
	case FormatJSON:
		err = writeNDJSON(buf, rep, opts, m)
	case FormatCSV:
		err = writeCSV(buf, rep, opts, m)
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
	if err != nil {
		return err
	}
	return buf.Flush()
}

type summary struct {
	diff.Counts
	Total         int      `json:"total"`
	NoDifferences bool     `json:"no_differences"`
	Metrics       *Metrics `json:"metrics,omitempty"`
}

func newSummary(rep diff.Report, m *Metrics) summary {
	counts := rep.Counts()
	return summary{
		Counts:        counts,
		Total:         counts.Total(),
		NoDifferences: !rep.HasDifferences(),
		Metrics:       m,
	}
}
