package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"dirdiff/logger"
	"dirdiff/utils"
)

var (
	ErrRootNotFound   = errors.New("root directory does not exist")
	ErrNotADirectory  = errors.New("root is not a directory")
	ErrRootUnreadable = errors.New("root directory cannot be read")
)

type fileTask struct {
	path string
	key  string
	info os.FileInfo
}

// checkRoot classifies a root path before any work starts. The root itself
// may be a symlink to a directory.
func checkRoot(root string) error {
	info, err := os.Stat(root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s: %w", root, ErrRootNotFound)
	case err != nil:
		return fmt.Errorf("%s: %w: %w", root, ErrRootUnreadable, err)
	case !info.IsDir():
		return fmt.Errorf("%s: %w", root, ErrNotADirectory)
	}
	return nil
}

type treeWalker struct {
	root    string
	matcher *utils.PatternMatcher
	stats   *Stats
}

// walk visits every regular file under the root depth first and hands it to
// emit. Symlinked directories are not followed. A directory below the root
// that cannot be listed is logged and skipped; the root itself failing is
// fatal.
func (w treeWalker) walk(ctx context.Context, emit func(fileTask) error) error {
	stack := []string{w.root}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			if dir == w.root {
				return fmt.Errorf("%s: %w: %w", w.root, ErrRootUnreadable, err)
			}
			logger.Warnf("Skipping unreadable directory %s: %v", dir, err)
			w.stats.SkippedDirs.Add(1)
			// ReadDir may return the entries read before the failure.
			if len(entries) == 0 {
				continue
			}
		}

		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			key, err := utils.RelativeKey(w.root, path)
			if err != nil {
				logger.Warnf("Skipping %s: %v", path, err)
				continue
			}

			if entry.IsDir() {
				if w.matcher.ShouldSkipDir(key) {
					continue
				}
				stack = append(stack, path)
				continue
			}

			info, ok := w.resolve(path, entry)
			if !ok || !w.matcher.ShouldInclude(key) {
				continue
			}
			if err := emit(fileTask{path: path, key: key, info: info}); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolve returns the stat of a hashable entry. Regular files qualify, as do
// symlinks whose target is a regular file. Everything else is skipped.
func (w treeWalker) resolve(path string, entry fs.DirEntry) (os.FileInfo, bool) {
	mode := entry.Type()
	switch {
	case mode.IsRegular():
		info, err := entry.Info()
		if err != nil {
			logger.Debugf("Skipping %s: %v", path, err)
			return nil, false
		}
		return info, true
	case mode&fs.ModeSymlink != 0:
		info, err := os.Stat(path)
		if err != nil {
			logger.Debugf("Skipping dangling symlink %s: %v", path, err)
			w.stats.Skipped.Add(1)
			return nil, false
		}
		if !info.Mode().IsRegular() {
			logger.Debugf("Skipping symlink %s to %s", path, info.Mode().Type())
			w.stats.Skipped.Add(1)
			return nil, false
		}
		return info, true
	default:
		logger.Debugf("Skipping special file %s (%s)", path, mode)
		w.stats.Skipped.Add(1)
		return nil, false
	}
}
