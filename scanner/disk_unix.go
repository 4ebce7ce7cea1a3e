//go:build !windows

package scanner

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const sysBlockDir = "/sys/block"

// detectDiskType reports "ssd", "hdd" or "unknown". Virtual block devices are
// ignored; any rotational disk marks the host as hdd.
func detectDiskType() string {
	switch runtime.GOOS {
	case "darwin":
		return "ssd"
	case "linux":
		return diskTypeFromSysfs(sysBlockDir)
	default:
		return "unknown"
	}
}

func diskTypeFromSysfs(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "unknown"
	}
	kind := "unknown"
	for _, entry := range entries {
		if virtualBlockDevice(entry.Name()) {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, entry.Name(), "queue", "rotational"))
		if err != nil {
			continue
		}
		switch strings.TrimSpace(string(b)) {
		case "1":
			return "hdd"
		case "0":
			kind = "ssd"
		}
	}
	return kind
}

func virtualBlockDevice(name string) bool {
	for _, prefix := range []string{"loop", "ram", "zram", "dm-", "md", "sr"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
