package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dusk-indust/codelens/internal/config"
	"github.com/dusk-indust/codelens/internal/lang"
	"github.com/dusk-indust/codelens/internal/scan"
)

// resolveTargetDir returns the absolute path of the directory to scan.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	return checkDir(dir)
}

func checkDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// collectFiles reads every file under root whose name maps to a registered
// language. Excluded and hidden directories are not entered. Paths are
// slash-separated and relative to root, so the same file in two trees gets
// the same path.
func collectFiles(root string, cfg *config.Config, reg *lang.Registry) ([]scan.File, error) {
	var files []scan.File
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.WithError(err).WithField("path", path).Debug("skipping inaccessible path")
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (cfg.Excluded(name) || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if _, ok := reg.Detect(path); !ok {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			logger.WithError(err).WithField("path", path).Warn("skipping unreadable file")
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		files = append(files, scan.File{Path: filepath.ToSlash(rel), Content: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}
