package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

// contextKey is a private type to prevent collisions with other context keys.
type contextKey string

const kindContextKey = contextKey("kind")

// KindMiddleware validates the {kind} URL parameter and injects the parsed
// kind into the request's context for downstream handlers to use.
func KindMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind, err := models.ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			RespondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), kindContextKey, kind)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// getKindFromContext returns the kind injected by KindMiddleware.
func getKindFromContext(r *http.Request) models.Kind {
	kind, ok := r.Context().Value(kindContextKey).(models.Kind)
	if !ok {
		return models.KindPlugin
	}
	return kind
}

// RequestLogger logs every request through zerolog once it completes.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		defer func() {
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("took", time.Since(started)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("HTTP request")
		}()
		next.ServeHTTP(ww, r)
	})
}
