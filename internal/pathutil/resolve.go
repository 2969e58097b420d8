// Package pathutil turns user-typed local paths (upload sources, download
// directories) into absolute paths.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// Resolve expands a leading "~" and makes path absolute. Symlinks are
// resolved when the path exists, so messages show where a download really
// lands. An empty path means the working directory.
func Resolve(path string) (string, error) {
	if path == "" {
		return os.Getwd()
	}

	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}
