package scanner

import (
	"runtime"

	"dirdiff/config"
	"dirdiff/logger"

	"github.com/shirou/gopsutil/v4/mem"
)

type poolPlan struct {
	concurrency int
	ioLimit     int
	diskType    string
}

// planPool sizes the worker pool and I/O budget for a nice level. The high
// level keeps one worker per CPU; medium and low are further capped on hosts
// with little memory since every worker holds a hash buffer and an open file.
func planPool(nice string) poolPlan {
	numCPU := runtime.NumCPU()
	concurrency := numCPU
	switch nice {
	case "low":
		concurrency = 1
	case "medium":
		concurrency = maxInt(1, numCPU/2)
	case "high":
		concurrency = numCPU
	}
	if nice != "high" {
		if vm, err := mem.VirtualMemory(); err == nil {
			concurrency = capByMemory(concurrency, vm.Total)
		} else {
			logger.Debugf("Memory probe unavailable: %v", err)
		}
	}
	diskType := detectDiskType()
	if diskType == "hdd" && nice != "high" {
		// Random reads across many files thrash a spinning disk.
		concurrency = minInt(concurrency, 4)
	}
	return poolPlan{
		concurrency: maxInt(1, concurrency),
		ioLimit:     defaultIOLimit(nice, diskType),
		diskType:    diskType,
	}
}

func capByMemory(concurrency int, totalBytes uint64) int {
	totalGB := totalBytes / (1024 * 1024 * 1024)
	switch {
	case totalGB <= 4:
		return minInt(concurrency, 2)
	case totalGB <= 8:
		return minInt(concurrency, 4)
	}
	return concurrency
}

// defaultIOLimit returns files per second for a nice level, 0 meaning
// unlimited.
func defaultIOLimit(nice, diskType string) int {
	base := 800
	switch diskType {
	case "ssd":
		base = 1200
	case "hdd":
		base = 400
	}
	switch nice {
	case "low":
		return minInt(base, 250)
	case "medium":
		return minInt(base, 600)
	default:
		return 0
	}
}

// OptionsFromConfig maps command line settings onto scan options. Explicit
// concurrency and I/O settings win over the nice level plan.
func OptionsFromConfig(cfg *config.Config) Options {
	plan := planPool(cfg.NiceLevel)
	opts := Options{
		Concurrency:     plan.concurrency,
		IncludePatterns: cfg.IncludePatterns,
		ExcludePatterns: cfg.ExcludePatterns,
		MaxIOPerSecond:  plan.ioLimit,
		Sequential:      cfg.Sequential,
	}
	opts.Hash.Algorithm = cfg.HashAlgorithm
	opts.Hash.ReadMode = cfg.ReadMode
	opts.Hash.MmapMinSize = cfg.MmapMinSize
	if cfg.ConcurrencySet {
		opts.Concurrency = cfg.ConcurrencyLevel
	}
	if cfg.MaxIOSet {
		opts.MaxIOPerSecond = cfg.MaxIOPerSecond
	}
	logger.Debugf("Scan plan: %d workers, io limit %d/s, disk %s", opts.Concurrency, opts.MaxIOPerSecond, plan.diskType)
	return opts
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
