package utils

import (
	"path/filepath"
	"strings"
)

// IsPathWithin returns true if the given path is within any of the roots.
func IsPathWithin(path string, roots []string) bool {
	absPath, err := resolve(path)
	if err != nil {
		return false
	}
	for _, root := range roots {
		absRoot, err := resolve(root)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absRoot, absPath)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// RootsOverlap reports whether one root contains the other (or both are the
// same directory).
func RootsOverlap(a, b string) bool {
	return IsPathWithin(a, []string{b}) || IsPathWithin(b, []string{a})
}

// RelativeKey converts a path under root into the slash-separated key used to
// correlate files across trees.
func RelativeKey(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func resolve(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path
	}
	return filepath.Abs(resolved)
}
