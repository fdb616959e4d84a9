package models

// ProgressUpdate is broadcast over the websocket hub while a job runs.
type ProgressUpdate struct {
	JobID    string   `json:"jobId"`
	RunID    string   `json:"run_id"`
	Message  string   `json:"message"`
	Progress float64  `json:"progress"`
	Status   string   `json:"status"` // e.g. "in_progress", "completed", "failed"
	Verdict  *Verdict `json:"verdict,omitempty"`
	Done     bool     `json:"done"`
}
