package models

import "time"

// VerdictState is the terminal state of one artifact's update check.
type VerdictState string

const (
	StateUnmatched   VerdictState = "unmatched"
	StateCheckFailed VerdictState = "check_failed"
	StateUpToDate    VerdictState = "up_to_date"
	StateNeedsUpdate VerdictState = "needs_update"
)

// Verdict is the result of reconciling one installed artifact. Plugin
// verdicts fill RemoteVersion and RemotePushedAt, patch verdicts fill
// RemoteSHA and DownloadURL.
type Verdict struct {
	Kind           Kind         `json:"kind"`
	Key            string       `json:"key"`
	State          VerdictState `json:"state"`
	RemoteVersion  string       `json:"remote_version,omitempty"`
	RemotePushedAt int64        `json:"remote_pushed_at,omitempty"`
	RemoteSHA      string       `json:"remote_sha,omitempty"`
	DownloadURL    string       `json:"download_url,omitempty"`
	Reason         string       `json:"reason,omitempty"`
	Orphaned       bool         `json:"orphaned,omitempty"`
	Err            error        `json:"-"`
	Error          string       `json:"error,omitempty"`
	LastChecked    time.Time    `json:"last_checked"`
}

// BatchSummary counts verdicts by outcome.
type BatchSummary struct {
	Total       int `json:"total"`
	Matched     int `json:"matched"`
	Unmatched   int `json:"unmatched"`
	UpToDate    int `json:"up_to_date"`
	NeedsUpdate int `json:"needs_update"`
	CheckFailed int `json:"check_failed"`
}

// Add folds one verdict into the summary.
func (s *BatchSummary) Add(v Verdict) {
	s.Total++
	switch v.State {
	case StateUnmatched:
		s.Unmatched++
		return
	case StateUpToDate:
		s.UpToDate++
	case StateNeedsUpdate:
		s.NeedsUpdate++
	case StateCheckFailed:
		s.CheckFailed++
	}
	s.Matched++
}

// BatchResult holds the verdicts of a batch check in registry key order.
// Cancelled is set when the batch stopped early; Verdicts then holds only
// the artifacts checked before cancellation.
type BatchResult struct {
	Kind      Kind         `json:"kind"`
	Verdicts  []Verdict    `json:"verdicts"`
	Summary   BatchSummary `json:"summary"`
	Cancelled bool         `json:"cancelled"`
}
