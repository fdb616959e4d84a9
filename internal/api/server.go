// It defines the API server, sets up the routes (endpoints)
// using chi, and links them to the handler functions.

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/juanfuturochile/appstore.koplugin/internal/core"
	"github.com/juanfuturochile/appstore.koplugin/internal/store"
)

// Server holds the dependencies for our API.
type Server struct {
	app   *core.App
	store *store.Store
}

// Store returns the store instance.
func (s *Server) Store() *store.Store {
	return s.store
}

// NewServer creates a new Server instance.
func NewServer(app *core.App) *Server {
	return &Server{
		app:   app,
		store: app.Store(),
	}
}

// Router sets up and returns the main router for the application.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer) // Recovers from panics

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", s.handleGetVersion)
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			// Remote calls are bounded by the client timeout, local work is not slow.
			r.Use(middleware.Timeout(60 * time.Second))

			// Catalog browsing
			r.Get("/browse", s.handleBrowseSaved)
			r.Get("/browser-state", s.handleGetBrowserState)
			r.Put("/browser-state", s.handleSaveBrowserState)

			r.Route("/catalog/{kind}", func(r chi.Router) {
				r.Use(KindMiddleware)
				r.Get("/", s.handleBrowseCatalog)
				r.Get("/status", s.handleCatalogStatus)
				r.Get("/search", s.handleSearchRemote)
				r.Get("/entries/{id}", s.handleGetCatalogEntryByID)
				r.Get("/repos/{owner}/{repo}", s.handleGetCatalogEntry)
				r.Get("/repos/{owner}/{repo}/files", s.handleListPatchFiles)
				r.Post("/repos/{owner}/{repo}/files", s.handleRefreshPatchFiles)
			})

			// Installed artifacts and reconciliation
			r.Route("/installed/{kind}", func(r chi.Router) {
				r.Use(KindMiddleware)
				r.Get("/", s.handleListInstalled)
				r.Get("/checks", s.handleListChecks)
				r.Post("/check", s.handleCheckAll)
				r.Get("/orphans", s.handleListOrphans)
				r.Delete("/orphans", s.handlePruneOrphans)
				r.Get("/{key}", s.handleGetInstalled)
				r.Put("/{key}/match", s.handleMatch)
				r.Delete("/{key}/match", s.handleUnmatch)
				r.Post("/{key}/check", s.handleCheckOne)
			})
		})

		// Job triggers
		r.Get("/jobs/status", s.handleGetJobsStatus)
		r.Post("/jobs/run", s.handleRunJob)
		r.Post("/jobs/cancel", s.handleCancelJob)
	})

	// WebSocket route
	r.Get("/ws/progress", func(w http.ResponseWriter, r *http.Request) {
		s.app.WsHub().ServeWs(w, r)
	})

	r.Handle("/metrics", s.app.Metrics().Handler())

	return r
}
