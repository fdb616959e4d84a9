package api

import (
	"encoding/json"
	"net/http"

	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

func (s *Server) handleGetBrowserState(w http.ResponseWriter, r *http.Request) {
	state, err := s.app.BrowserState().Load()
	if err != nil {
		RespondWithAppError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, state)
}

// handleSaveBrowserState stores the posted state. Invalid fields are
// replaced with their defaults; the stored state is returned.
func (s *Server) handleSaveBrowserState(w http.ResponseWriter, r *http.Request) {
	var state models.BrowserState
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	saved, err := s.app.BrowserState().Save(state)
	if err != nil {
		RespondWithAppError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, saved)
}
