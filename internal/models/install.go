package models

import "time"

// InstallRecord maps an installed plugin directory to the upstream
// repository it was matched with.
type InstallRecord struct {
	PluginName       string    `json:"plugin_name"`
	InstalledVersion string    `json:"installed_version"`
	Owner            string    `json:"owner"`
	Repo             string    `json:"repo"`
	FullName         string    `json:"full_name"`
	RepoRemoteID     int64     `json:"repo_remote_id"`
	Description      string    `json:"description"`
	Branch           string    `json:"branch"`
	ManifestPath     string    `json:"manifest_path"`
	MatchedAt        time.Time `json:"matched_at"`
}

// Matched reports whether the record names an upstream repository.
func (r InstallRecord) Matched() bool {
	return r.Owner != "" && r.Repo != ""
}

// PatchInstallRecord maps an installed patch file to its upstream file.
type PatchInstallRecord struct {
	Owner        string    `json:"owner"`
	Repo         string    `json:"repo"`
	FullName     string    `json:"full_name"`
	RepoRemoteID int64     `json:"repo_remote_id"`
	Description  string    `json:"description"`
	Branch       string    `json:"branch"`
	Path         string    `json:"path"`
	ContentSHA   string    `json:"content_sha"`
	MatchedAt    time.Time `json:"matched_at"`
}

// Matched reports whether the record names an upstream file.
func (r PatchInstallRecord) Matched() bool {
	return r.Owner != "" && r.Repo != "" && r.Path != ""
}
