// Package validation checks local paths derived from remote object keys
// before anything is written to disk.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateFilename rejects names that are not a single path element:
// empty names, separators, "." and "..", and NUL bytes. Object keys come
// from the service and are treated as untrusted.
func ValidateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	if strings.ContainsRune(filename, 0) {
		return fmt.Errorf("filename contains null byte: %q", filename)
	}
	if strings.ContainsAny(filename, `/\`) {
		return fmt.Errorf("filename cannot contain path separators: %s", filename)
	}
	// "foo..bar.txt" is fine; only the bare dot names resolve elsewhere.
	if filename == "." || filename == ".." {
		return fmt.Errorf("filename cannot be %q", filename)
	}
	return nil
}

// ValidatePathInDirectory reports an error when path, resolved against
// baseDir, lands outside baseDir.
func ValidatePathInDirectory(path string, baseDir string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if baseDir == "" {
		return fmt.Errorf("base directory cannot be empty")
	}

	cleanBase, err := filepath.Abs(filepath.Clean(baseDir))
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}

	resolved := filepath.Clean(path)
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(cleanBase, resolved)
	}

	rel, err := filepath.Rel(cleanBase, resolved)
	if err != nil {
		return fmt.Errorf("failed to compute relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s (base: %s)", path, baseDir)
	}
	return nil
}

// DownloadTarget joins name onto dir after checking both rules above.
func DownloadTarget(dir, name string) (string, error) {
	if err := ValidateFilename(name); err != nil {
		return "", err
	}
	target := filepath.Join(dir, name)
	if err := ValidatePathInDirectory(target, dir); err != nil {
		return "", err
	}
	return target, nil
}
