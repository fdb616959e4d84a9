package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/juanfuturochile/appstore.koplugin/internal/jobs"
	"github.com/juanfuturochile/appstore.koplugin/internal/models"
	"github.com/juanfuturochile/appstore.koplugin/internal/reconcile"
	"github.com/juanfuturochile/appstore.koplugin/internal/util"
)

// keyParam returns the validated {key} URL parameter, or writes a 400.
func keyParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := chi.URLParam(r, "key")
	if err := util.ValidateArtifactKey(key); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return key, true
}

func (s *Server) handleListInstalled(w http.ResponseWriter, r *http.Request) {
	installed, err := s.app.Engine().Installed(getKindFromContext(r))
	if err != nil {
		RespondWithAppError(w, err)
		return
	}
	if installed == nil {
		installed = []reconcile.InstalledArtifact{}
	}
	RespondWithJSON(w, http.StatusOK, installed)
}

func (s *Server) handleGetInstalled(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}
	installed, err := s.app.Engine().Installed(getKindFromContext(r))
	if err != nil {
		RespondWithAppError(w, err)
		return
	}
	for _, a := range installed {
		if a.Key == key {
			RespondWithJSON(w, http.StatusOK, a)
			return
		}
	}
	RespondWithError(w, http.StatusNotFound, "Artifact not found")
}

func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	checks, err := s.app.Engine().LastChecks(getKindFromContext(r))
	if err != nil {
		RespondWithAppError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, checks)
}

type matchRequest struct {
	FullName string `json:"full_name"`
	// ManifestPath is the plugin manifest inside the repository, Path the
	// patch file. Both default when empty.
	ManifestPath string `json:"manifest_path"`
	Path         string `json:"path"`
	Branch       string `json:"branch"`
	ContentSHA   string `json:"content_sha"`
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}
	var payload matchRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.FullName == "" {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	kind := getKindFromContext(r)
	engine := s.app.Engine()
	entry, err := engine.FindEntry(kind, payload.FullName)
	if err != nil {
		RespondWithAppError(w, err)
		return
	}

	var rec interface{}
	if kind == models.KindPlugin {
		rec, err = engine.MatchPlugin(key, *entry, payload.ManifestPath, payload.Branch)
	} else {
		rec, err = engine.MatchPatch(key, *entry, payload.Path, payload.Branch, payload.ContentSHA)
	}
	if err != nil {
		RespondWithAppError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUnmatch(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}
	if err := s.app.Engine().Unmatch(getKindFromContext(r), key); err != nil {
		RespondWithAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListOrphans(w http.ResponseWriter, r *http.Request) {
	orphans, err := s.app.Engine().Orphans(getKindFromContext(r))
	if err != nil {
		RespondWithAppError(w, err)
		return
	}
	if orphans == nil {
		orphans = []string{}
	}
	RespondWithJSON(w, http.StatusOK, orphans)
}

func (s *Server) handlePruneOrphans(w http.ResponseWriter, r *http.Request) {
	pruned, err := s.app.Engine().Prune(getKindFromContext(r))
	if err != nil {
		RespondWithAppError(w, err)
		return
	}
	if pruned == nil {
		pruned = []string{}
	}
	RespondWithJSON(w, http.StatusOK, map[string][]string{"pruned": pruned})
}

// handleCheckOne reconciles a single artifact synchronously.
func (s *Server) handleCheckOne(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}
	verdict, err := s.app.Engine().Check(r.Context(), getKindFromContext(r), key)
	if err != nil {
		RespondWithAppError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, verdict)
}

// handleCheckAll starts a batch check as a background job. Progress and
// verdicts arrive over the websocket.
func (s *Server) handleCheckAll(w http.ResponseWriter, r *http.Request) {
	jobID := jobs.JobCheckPlugins
	if getKindFromContext(r) == models.KindPatch {
		jobID = jobs.JobCheckPatches
	}
	s.startJob(w, jobID)
}
