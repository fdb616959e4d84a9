package reconcile

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/juanfuturochile/appstore.koplugin/internal/apperr"
)

// exists reports whether path is present on disk. Errors other than
// "does not exist" are returned.
func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, &apperr.IOError{Path: path, Inner: err}
}

// latestModTime returns the newest modification time of any file below
// root. A tree without files reports root's own time.
func latestModTime(root string) (time.Time, error) {
	var latest time.Time
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return time.Time{}, &apperr.IOError{Path: root, Inner: err}
	}
	if latest.IsZero() {
		info, err := os.Stat(root)
		if err != nil {
			return time.Time{}, &apperr.IOError{Path: root, Inner: err}
		}
		latest = info.ModTime()
	}
	return latest, nil
}
