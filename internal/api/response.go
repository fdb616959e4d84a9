// Helper functions for sending standardized JSON responses.

package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/juanfuturochile/appstore.koplugin/internal/apperr"
	"github.com/juanfuturochile/appstore.koplugin/internal/catalog"
	"github.com/juanfuturochile/appstore.koplugin/internal/jobs"
)

// RespondWithJSON writes a JSON response with the given status code and payload.
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		// If marshaling fails, return an error response
		RespondWithError(w, http.StatusInternalServerError, "Failed to marshal response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// RespondWithError writes a standardized JSON error response.
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]string{"error": message})
}

// RespondWithAppError maps err onto a status code by its class.
func RespondWithAppError(w http.ResponseWriter, err error) {
	RespondWithError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	var (
		notFound *apperr.NotFoundError
		network  *apperr.NetworkError
	)
	switch {
	case errors.As(err, &notFound), errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrRefreshInProgress), errors.Is(err, jobs.ErrJobRunning):
		return http.StatusConflict
	case errors.As(err, &network):
		if network.RateLimited {
			return http.StatusTooManyRequests
		}
		return http.StatusBadGateway
	}
	log.Error().Err(err).Msg("Request failed")
	return http.StatusInternalServerError
}
