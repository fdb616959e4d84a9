package util

import (
	"os"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/juanfuturochile/appstore.koplugin/internal/apperr"
)

// HashBlob returns the git blob digest of content: SHA-1 over
// "blob <len>\x00" followed by the bytes. It matches the sha GitHub reports
// for files in a tree, so local and remote digests compare directly.
func HashBlob(content []byte) string {
	return plumbing.ComputeHash(plumbing.BlobObject, content).String()
}

// HashFile reads the whole file and returns its git blob digest.
// Line endings are not normalized.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &apperr.IOError{Path: path, Inner: err}
	}
	return HashBlob(data), nil
}
