package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind partitions the catalog: plugin packages and patch script files.
type Kind string

const (
	KindPlugin Kind = "plugin"
	KindPatch  Kind = "patch"
)

// Kinds lists every catalog partition.
var Kinds = []Kind{KindPlugin, KindPatch}

// ParseKind validates a kind coming from a URL, flag or config value.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindPlugin, KindPatch:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

// Plural is the kind's name for counts in messages.
func (k Kind) Plural() string {
	if k == KindPatch {
		return "patches"
	}
	return string(k) + "s"
}

// CatalogEntry is one remote repository as cached. (RemoteID, Kind) is unique.
// PushedAt, CreatedAt and UpdatedAt are unix seconds; 0 means unknown.
type CatalogEntry struct {
	RemoteID      int64           `json:"remote_id"`
	Kind          Kind            `json:"kind"`
	Name          string          `json:"name"`
	Owner         string          `json:"owner"`
	FullName      string          `json:"full_name"`
	Description   string          `json:"description"`
	Language      string          `json:"language"`
	Homepage      string          `json:"homepage"`
	Topics        []string        `json:"topics"`
	Popularity    int             `json:"popularity"`
	DefaultBranch string          `json:"default_branch"`
	PushedAt      int64           `json:"pushed_at"`
	CreatedAt     int64           `json:"created_at"`
	UpdatedAt     int64           `json:"updated_at"`
	FetchedAt     int64           `json:"fetched_at"`
	RawMetadata   json.RawMessage `json:"raw_metadata,omitempty"`
}

// PatchFileEntry is one file inside a patch repository.
type PatchFileEntry struct {
	RepoRemoteID int64  `json:"repo_remote_id"`
	Path         string `json:"path"`
	Filename     string `json:"filename"`
	Branch       string `json:"branch"`
	ContentSHA   string `json:"content_sha"`
	Size         int64  `json:"size"`
	DownloadURL  string `json:"download_url"`
	FetchedAt    int64  `json:"fetched_at"`
}

// RepoMetadata is what the remote reports about a single repository.
type RepoMetadata struct {
	RemoteID      int64     `json:"remote_id"`
	FullName      string    `json:"full_name"`
	DefaultBranch string    `json:"default_branch"`
	PushedAt      time.Time `json:"pushed_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Popularity    int       `json:"popularity"`
	Archived      bool      `json:"archived"`
}

// RemoteFile is a blob in a remote repository tree.
type RemoteFile struct {
	Path        string `json:"path"`
	ContentSHA  string `json:"content_sha"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
}
