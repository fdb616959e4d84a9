package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"version": s.app.Version})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.app.DB().Ping(); err != nil {
		RespondWithError(w, http.StatusServiceUnavailable, "Database connection failed")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) startJob(w http.ResponseWriter, jobID string) {
	runID, err := s.app.JobManager().RunJob(jobID, s.app)
	if err != nil {
		RespondWithAppError(w, err)
		return
	}

	RespondWithJSON(w, http.StatusAccepted, map[string]string{
		"message": "Job '" + jobID + "' started successfully.",
		"job_id":  jobID,
		"run_id":  runID,
	})
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		JobName string `json:"job_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	s.startJob(w, payload.JobName)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	if !s.app.JobManager().CancelJob() {
		RespondWithError(w, http.StatusConflict, "No job is running")
		return
	}
	RespondWithJSON(w, http.StatusAccepted, map[string]string{"message": "Cancellation requested."})
}

func (s *Server) handleGetJobsStatus(w http.ResponseWriter, r *http.Request) {
	statuses := s.app.JobManager().GetStatus()
	RespondWithJSON(w, http.StatusOK, statuses)
}
