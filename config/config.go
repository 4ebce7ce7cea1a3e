package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"dirdiff/hasher"
	"dirdiff/version"
)

// ErrHelp is returned when the user asked for usage or the version string.
var ErrHelp = errors.New("help requested")

type Config struct {
	From                  string            `json:"from"`
	To                    string            `json:"to"`
	HashAlgorithm         string            `json:"hash_algorithm"`
	ConcurrencyLevel      int               `json:"concurrency_level"`
	NiceLevel             string            `json:"nice_level"`
	IncludePatterns       []string          `json:"include_patterns"`
	ExcludePatterns       []string          `json:"exclude_patterns"`
	MaxIOPerSecond        int               `json:"max_io_per_second"`
	ReadMode              string            `json:"read_mode"`
	MmapMinSize           int64             `json:"mmap_min_size"`
	Sequential            bool              `json:"sequential"`
	CacheFile             string            `json:"cache_file"`
	OutputFormat          string            `json:"output_format"`
	OutputFileName        string            `json:"output_file_name"`
	ShowIdentical         bool              `json:"show_identical"`
	Color                 string            `json:"color"`
	FailOnDiff            bool              `json:"fail_on_diff"`
	LogLevel              string            `json:"log_level"`
	Progress              bool              `json:"progress"`
	Interactive           bool              `json:"interactive"`
	CollectSystemInfo     bool              `json:"collect_system_info"`
	ConfigFile            string            `json:"config_file"`
	DiagSlowScanThreshold time.Duration     `json:"diag_slow_scan_threshold"`
	DiagDir               string            `json:"diag_dir"`
	DiagGoroutineLeak     bool              `json:"diag_goroutine_leak"`
	OtelEndpoint          string            `json:"otel_endpoint"`
	OtelFromEnv           bool              `json:"otel_from_env"`
	OtelHeaders           map[string]string `json:"otel_headers"`
	OtelServiceName       string            `json:"otel_service_name"`
	OtelTimeout           time.Duration     `json:"otel_timeout"`
	OtelExportPaths       bool              `json:"otel_export_paths"`
	TraceFlight           bool              `json:"trace_flight"`
	TraceFlightFile       string            `json:"trace_flight_file"`
	TraceFlightMaxBytes   uint64            `json:"trace_flight_max_bytes"`
	TraceFlightMinAge     time.Duration     `json:"trace_flight_min_age"`
	ConcurrencySet        bool              `json:"-"`
	MaxIOSet              bool              `json:"-"`
}

// Default returns the configuration used when no flags or file are given.
func Default() *Config {
	return &Config{
		HashAlgorithm:         hasher.DefaultAlgorithm,
		ConcurrencyLevel:      runtime.NumCPU(),
		NiceLevel:             "high",
		IncludePatterns:       []string{},
		ExcludePatterns:       []string{},
		MaxIOPerSecond:        0,
		ReadMode:              hasher.ReadModeStream,
		MmapMinSize:           hasher.DefaultMmapMinSize,
		OutputFormat:          "text",
		ShowIdentical:         true,
		Color:                 "auto",
		LogLevel:              "warn",
		Progress:              true,
		Interactive:           true,
		CollectSystemInfo:     true,
		DiagDir:               ".",
		OtelHeaders:           map[string]string{},
		OtelServiceName:       "dirdiff",
		OtelTimeout:           5 * time.Second,
		TraceFlightFile:       "trace-flight.out",
		DiagSlowScanThreshold: 0,
	}
}

// LoadConfig parses the process command line.
func LoadConfig() (*Config, error) {
	return Load(flag.CommandLine, os.Args[1:])
}

// Load parses args with fs. The config file, when given, is applied first and
// explicitly set flags override it. Positional arguments fill FROM and TO.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := Default()

	from := fs.String("from", cfg.From, "Path of the FROM directory (or first positional argument).")
	to := fs.String("to", cfg.To, "Path of the TO directory (or second positional argument).")
	hashAlgo := fs.String("hash", cfg.HashAlgorithm, fmt.Sprintf("Hash algorithm: %s (default: %s).", strings.Join(hasher.Algorithms(), ", "), cfg.HashAlgorithm))
	concurrency := fs.Int("concurrency", cfg.ConcurrencyLevel, fmt.Sprintf("Number of hashing workers per tree (default: %d).", cfg.ConcurrencyLevel))
	nice := fs.String("nice", cfg.NiceLevel, fmt.Sprintf("Nice level: high, medium, or low (default: %s).", cfg.NiceLevel))
	includes := fs.String("include", "", "Comma-separated list of include patterns: globs on the file name, plain paths, or regular expressions on the relative path (default: none).")
	excludes := fs.String("exclude", "", "Comma-separated list of exclude patterns; plain names such as a.txt or vendor/ match whole path segments, other patterns are globs or unanchored regular expressions (default: none).")
	maxIO := fs.Int("max-io-per-second", cfg.MaxIOPerSecond, "Maximum files opened per second per tree, 0 for unlimited (default: 0).")
	readMode := fs.String("read-mode", cfg.ReadMode, fmt.Sprintf("File read mode: stream, mmap, or auto (default: %s).", cfg.ReadMode))
	mmapMinSize := fs.Int64("mmap-min-size", cfg.MmapMinSize, fmt.Sprintf("Minimum file size for mmap in auto read mode (default: %d).", cfg.MmapMinSize))
	sequential := fs.Bool("sequential", cfg.Sequential, "Scan FROM and TO one after the other instead of concurrently.")
	cacheFile := fs.String("cache-file", cfg.CacheFile, "SQLite file caching digests by size and modification time (default: disabled).")
	format := fs.String("format", cfg.OutputFormat, fmt.Sprintf("Output format: text, json, or csv (default: %s).", cfg.OutputFormat))
	output := fs.String("output", cfg.OutputFileName, "Output file name (default: stdout).")
	showIdentical := fs.Bool("show-identical", cfg.ShowIdentical, fmt.Sprintf("List identical files in the report (default: %t).", cfg.ShowIdentical))
	color := fs.String("color", cfg.Color, fmt.Sprintf("Colour text output: auto, always, or never (default: %s).", cfg.Color))
	failOnDiff := fs.Bool("fail-on-diff", cfg.FailOnDiff, "Exit with status 1 when differences are found.")
	logLevel := fs.String("log-level", cfg.LogLevel, fmt.Sprintf("Log level: debug, info, warn, error, fatal, or panic (default: %s).", cfg.LogLevel))
	progress := fs.Bool("progress", cfg.Progress, fmt.Sprintf("Show a progress bar on stderr (default: %t).", cfg.Progress))
	interactive := fs.Bool("interactive", cfg.Interactive, fmt.Sprintf("Prompt for missing paths when stdin is a terminal (default: %t).", cfg.Interactive))
	collectSystemInfo := fs.Bool("collect-system-info", cfg.CollectSystemInfo, fmt.Sprintf("Include host information in json output (default: %t).", cfg.CollectSystemInfo))
	configFile := fs.String("config", "", "Path to JSON config file.")
	diagSlowScanThreshold := fs.Duration("diag-slow-scan-threshold", cfg.DiagSlowScanThreshold, "Dump diagnostics when no file completes for this long (default: disabled).")
	diagDir := fs.String("diag-dir", cfg.DiagDir, fmt.Sprintf("Directory for diagnostics artifacts (default: %s).", cfg.DiagDir))
	diagGoroutineLeak := fs.Bool("diag-goroutine-leak", cfg.DiagGoroutineLeak, "Write a goroutine profile on exit.")
	otelEndpoint := fs.String("otel-endpoint", cfg.OtelEndpoint, "OTLP/HTTP logs endpoint URL (default: disabled).")
	otelFromEnv := fs.Bool("otel-from-env", cfg.OtelFromEnv, "Read the OTLP endpoint from OTEL_EXPORTER_OTLP_* variables.")
	otelHeaders := fs.String("otel-headers", "", "Comma-separated key=value headers for OTLP export.")
	otelServiceName := fs.String("otel-service-name", cfg.OtelServiceName, fmt.Sprintf("OTLP service.name (default: %s).", cfg.OtelServiceName))
	otelTimeout := fs.Duration("otel-timeout", cfg.OtelTimeout, fmt.Sprintf("OTLP export timeout (default: %s).", cfg.OtelTimeout))
	otelExportPaths := fs.Bool("otel-export-paths", cfg.OtelExportPaths, "Include file paths in OTLP records.")
	traceFlight := fs.Bool("trace-flight", cfg.TraceFlight, "Keep an in-memory runtime trace and write it on exit.")
	traceFlightFile := fs.String("trace-flight-file", cfg.TraceFlightFile, fmt.Sprintf("Flight recorder output file (default: %s).", cfg.TraceFlightFile))
	traceFlightMaxBytes := fs.Uint64("trace-flight-max-bytes", cfg.TraceFlightMaxBytes, "Flight recorder buffer size in bytes (default: runtime default).")
	traceFlightMinAge := fs.Duration("trace-flight-min-age", cfg.TraceFlightMinAge, "Flight recorder minimum trace age (default: runtime default).")
	showVersion := fs.Bool("version", false, "Print version and exit.")

	fs.Usage = func() { displayHelp(fs) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, ErrHelp
		}
		return nil, err
	}

	if *showVersion {
		fmt.Fprintf(fs.Output(), "dirdiff version %s\n", version.Version)
		return nil, ErrHelp
	}

	if *configFile != "" {
		cfg.ConfigFile = *configFile
		if err := cfg.loadFromFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "from":
			cfg.From = *from
		case "to":
			cfg.To = *to
		case "hash":
			cfg.HashAlgorithm = *hashAlgo
		case "concurrency":
			cfg.ConcurrencyLevel = *concurrency
			cfg.ConcurrencySet = true
		case "nice":
			cfg.NiceLevel = *nice
		case "include":
			cfg.IncludePatterns = parseCommaSeparated(*includes)
		case "exclude":
			cfg.ExcludePatterns = parseCommaSeparated(*excludes)
		case "max-io-per-second":
			cfg.MaxIOPerSecond = *maxIO
			cfg.MaxIOSet = true
		case "read-mode":
			cfg.ReadMode = *readMode
		case "mmap-min-size":
			cfg.MmapMinSize = *mmapMinSize
		case "sequential":
			cfg.Sequential = *sequential
		case "cache-file":
			cfg.CacheFile = *cacheFile
		case "format":
			cfg.OutputFormat = *format
		case "output":
			cfg.OutputFileName = *output
		case "show-identical":
			cfg.ShowIdentical = *showIdentical
		case "color":
			cfg.Color = *color
		case "fail-on-diff":
			cfg.FailOnDiff = *failOnDiff
		case "log-level":
			cfg.LogLevel = *logLevel
		case "progress":
			cfg.Progress = *progress
		case "interactive":
			cfg.Interactive = *interactive
		case "collect-system-info":
			cfg.CollectSystemInfo = *collectSystemInfo
		case "diag-slow-scan-threshold":
			cfg.DiagSlowScanThreshold = *diagSlowScanThreshold
		case "diag-dir":
			cfg.DiagDir = strings.TrimSpace(*diagDir)
		case "diag-goroutine-leak":
			cfg.DiagGoroutineLeak = *diagGoroutineLeak
		case "otel-endpoint":
			cfg.OtelEndpoint = strings.TrimSpace(*otelEndpoint)
		case "otel-from-env":
			cfg.OtelFromEnv = *otelFromEnv
		case "otel-headers":
			cfg.OtelHeaders = parseHeaders(*otelHeaders)
		case "otel-service-name":
			cfg.OtelServiceName = strings.TrimSpace(*otelServiceName)
		case "otel-timeout":
			cfg.OtelTimeout = *otelTimeout
		case "otel-export-paths":
			cfg.OtelExportPaths = *otelExportPaths
		case "trace-flight":
			cfg.TraceFlight = *traceFlight
		case "trace-flight-file":
			cfg.TraceFlightFile = *traceFlightFile
		case "trace-flight-max-bytes":
			cfg.TraceFlightMaxBytes = *traceFlightMaxBytes
		case "trace-flight-min-age":
			cfg.TraceFlightMinAge = *traceFlightMinAge
		}
	})

	positional := fs.Args()
	if len(positional) > 2 {
		return nil, fmt.Errorf("expected at most two paths, got %d", len(positional))
	}
	if len(positional) > 0 {
		cfg.From = positional[0]
	}
	if len(positional) > 1 {
		cfg.To = positional[1]
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func displayHelp(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintln(out, "dirdiff - compare two directory trees by content")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  dirdiff [options] FROM TO")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Options:")
	fs.PrintDefaults()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Examples:")
	fmt.Fprintln(out, "  dirdiff ./release-1 ./release-2")
	fmt.Fprintln(out, "  dirdiff --format json --output diff.ndjson --show-identical=false /srv/a /srv/b")
	fmt.Fprintln(out, "  dirdiff --hash blake3 --exclude '*.tmp,\\.git/' old new")
}

func (cfg *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config file: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid config file format: %v", err)
	}
	if _, ok := raw["concurrency_level"]; ok {
		cfg.ConcurrencySet = true
	}
	if _, ok := raw["max_io_per_second"]; ok {
		cfg.MaxIOSet = true
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid config file format: %v", err)
	}
	return nil
}

func (cfg *Config) normalize() {
	cfg.From = strings.TrimSpace(cfg.From)
	cfg.To = strings.TrimSpace(cfg.To)
	cfg.HashAlgorithm = strings.ToLower(strings.TrimSpace(cfg.HashAlgorithm))
	cfg.NiceLevel = strings.ToLower(strings.TrimSpace(cfg.NiceLevel))
	cfg.ReadMode = strings.ToLower(strings.TrimSpace(cfg.ReadMode))
	cfg.OutputFormat = strings.ToLower(strings.TrimSpace(cfg.OutputFormat))
	cfg.Color = strings.ToLower(strings.TrimSpace(cfg.Color))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.HashAlgorithm == "" {
		cfg.HashAlgorithm = hasher.DefaultAlgorithm
	}
	if cfg.ReadMode == "" {
		cfg.ReadMode = hasher.ReadModeStream
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "text"
	}
	if cfg.Color == "" {
		cfg.Color = "auto"
	}
	if cfg.DiagDir == "" {
		cfg.DiagDir = "."
	}
	if cfg.TraceFlight && cfg.TraceFlightFile == "" {
		cfg.TraceFlightFile = "trace-flight.out"
	}
	if cfg.OtelServiceName == "" {
		cfg.OtelServiceName = "dirdiff"
	}
}

func (cfg *Config) validate() error {
	if _, err := hasher.NewHash(cfg.HashAlgorithm); err != nil {
		return err
	}
	if cfg.ConcurrencyLevel <= 0 {
		return fmt.Errorf("concurrency level must be positive")
	}
	if cfg.NiceLevel != "high" && cfg.NiceLevel != "medium" && cfg.NiceLevel != "low" {
		return fmt.Errorf("invalid nice level: %s", cfg.NiceLevel)
	}
	if cfg.ReadMode != hasher.ReadModeStream && cfg.ReadMode != hasher.ReadModeMmap && cfg.ReadMode != hasher.ReadModeAuto {
		return fmt.Errorf("invalid read-mode value: %s", cfg.ReadMode)
	}
	if cfg.MmapMinSize < 0 {
		return fmt.Errorf("mmap-min-size must be zero or positive")
	}
	if cfg.MaxIOPerSecond < 0 {
		return fmt.Errorf("max-io-per-second must be zero or positive")
	}
	if cfg.OutputFormat != "text" && cfg.OutputFormat != "json" && cfg.OutputFormat != "csv" {
		return fmt.Errorf("invalid output format: %s (text, json or csv)", cfg.OutputFormat)
	}
	if cfg.Color != "auto" && cfg.Color != "always" && cfg.Color != "never" {
		return fmt.Errorf("invalid color value: %s", cfg.Color)
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" &&
		cfg.LogLevel != "error" && cfg.LogLevel != "fatal" && cfg.LogLevel != "panic" {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if cfg.DiagSlowScanThreshold < 0 {
		return fmt.Errorf("diag-slow-scan-threshold must be zero or positive")
	}
	if cfg.TraceFlightMinAge < 0 {
		return fmt.Errorf("trace-flight-min-age must be zero or positive")
	}
	if cfg.OtelTimeout < 0 {
		return fmt.Errorf("otel-timeout must be zero or positive")
	}
	if cfg.OtelEndpoint != "" {
		if !strings.HasPrefix(cfg.OtelEndpoint, "http://") && !strings.HasPrefix(cfg.OtelEndpoint, "https://") {
			return fmt.Errorf("otel-endpoint must include scheme (http or https)")
		}
	}
	return nil
}

// ValidateRoots checks that both comparison roots were supplied.
func (cfg *Config) ValidateRoots() error {
	if cfg.From == "" || cfg.To == "" {
		return fmt.Errorf("both FROM and TO paths must be specified")
	}
	return nil
}

// OutputWriter opens the configured report destination. The returned closer
// is a no-op for stdout.
func (cfg *Config) OutputWriter() (io.Writer, func() error, error) {
	if cfg.OutputFileName == "" || cfg.OutputFileName == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.OpenFile(cfg.OutputFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func parseCommaSeparated(input string) []string {
	if input == "" {
		return []string{}
	}
	items := strings.Split(input, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func parseHeaders(input string) map[string]string {
	headers := make(map[string]string)
	if input == "" {
		return headers
	}
	items := strings.Split(input, ",")
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		headers[key] = value
	}
	return headers
}
