//go:build !windows

package systeminfo

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

func gatherOSVersion(sysInfo *SystemInfo) error {
	switch runtime.GOOS {
	case "linux":
		f, err := os.Open("/etc/os-release")
		if err != nil {
			return err
		}
		defer f.Close()
		name, err := prettyName(f)
		if err != nil {
			return err
		}
		if name != "" {
			sysInfo.OSVersion = name
			return nil
		}
	case "darwin":
		product, err := runCommandOutput("sw_vers", "-productName")
		if err != nil {
			return err
		}
		release, err := runCommandOutput("sw_vers", "-productVersion")
		if err != nil {
			return err
		}
		sysInfo.OSVersion = strings.TrimSpace(product) + " " + strings.TrimSpace(release)
		return nil
	}
	sysInfo.OSVersion = runtime.GOOS
	return nil
}

// prettyName returns PRETTY_NAME from an os-release file, or NAME when the
// pretty form is missing.
func prettyName(r io.Reader) (string, error) {
	var name string
	s := bufio.NewScanner(r)
	for s.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(s.Text()), "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"'`)
		switch key {
		case "PRETTY_NAME":
			return value, nil
		case "NAME":
			name = value
		}
	}
	return name, s.Err()
}

func runCommandOutput(name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).Output()
	return string(out), err
}
