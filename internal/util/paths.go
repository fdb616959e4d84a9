package util

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

// ValidateArtifactKey checks that a registry key (a plugin directory name or
// a patch filename) names a single entry directly inside an install
// directory. Keys are joined onto install paths, so separators and
// traversal components are rejected.
func ValidateArtifactKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("artifact key cannot be empty")
	}
	if key == "." || key == ".." || strings.Contains(key, "..") {
		return fmt.Errorf("artifact key %q contains invalid directory traversal", key)
	}
	if strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("artifact key %q must not contain path separators", key)
	}
	if controlChars.MatchString(key) {
		return fmt.Errorf("artifact key %q contains control characters", key)
	}
	return nil
}

// EnsureParentDir creates the directory that will hold path.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("path exists but is not a directory: %s", dir)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("cannot access directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	return nil
}

// WriteFileAtomic writes data next to path and renames it into place, so a
// reader sees either the old document or the new one.
func WriteFileAtomic(path string, data []byte) error {
	if err := EnsureParentDir(path); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file into place: %w", err)
	}
	return nil
}
