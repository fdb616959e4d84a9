package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/juanfuturochile/appstore.koplugin/internal/catalog"
	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

// browseResponse is a page of the catalog plus the cache timestamp that
// drives the staleness banner.
type browseResponse struct {
	catalog.Page
	Kind        models.Kind `json:"kind"`
	LastFetched *time.Time  `json:"last_fetched"`
	Remote      bool        `json:"remote"`
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// stateFromQuery builds a browser state for kind out of the query string.
func stateFromQuery(r *http.Request, kind models.Kind) (models.BrowserState, error) {
	q := r.URL.Query()
	state := models.DefaultBrowserState()
	state.Kind = kind
	state.Search = q.Get("search")
	state.Owner = q.Get("owner")
	state.SearchRemote = q.Get("remote") == "true"

	mode, err := models.ParseSortMode(q.Get("sort"))
	if err != nil {
		return state, err
	}
	state.Sort = mode
	if state.MinPopularity, err = queryInt(r, "min_popularity", 0); err != nil {
		return state, err
	}
	if state.Page, err = queryInt(r, "page", 1); err != nil {
		return state, err
	}
	return catalog.Normalize(state), nil
}

// browse runs state against the cache, or against the remote search when
// the state asks for it.
func (s *Server) browse(r *http.Request, state models.BrowserState, pageSize int) (browseResponse, error) {
	resp := browseResponse{Kind: state.Kind, Remote: state.SearchRemote && strings.TrimSpace(state.Search) != ""}

	var (
		entries    []models.CatalogEntry
		patchFiles map[int64][]models.PatchFileEntry
		err        error
	)
	if resp.Remote {
		entries, err = s.app.Refresher().SearchRemote(r.Context(), state.Kind, state.Search)
		if err != nil {
			return resp, err
		}
		// The remote already narrowed by the text.
		state.Search = ""
	} else {
		if entries, err = s.store.ListCatalog(state.Kind); err != nil {
			return resp, err
		}
		if state.Kind == models.KindPatch {
			if patchFiles, err = s.store.ListAllPatchFiles(); err != nil {
				return resp, err
			}
		}
	}

	last, ok, err := s.store.LastFetched(state.Kind)
	if err != nil {
		return resp, err
	}
	if ok {
		resp.LastFetched = &last
	}
	resp.Page = catalog.Browse(entries, patchFiles, state, pageSize)
	return resp, nil
}

func (s *Server) pageSize(r *http.Request) (int, error) {
	return queryInt(r, "page_size", s.app.Config().PageSize)
}

func (s *Server) handleBrowseCatalog(w http.ResponseWriter, r *http.Request) {
	state, err := stateFromQuery(r, getKindFromContext(r))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	size, err := s.pageSize(r)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid page_size")
		return
	}

	resp, err := s.browse(r, state, size)
	if err != nil {
		RespondWithAppError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, resp)
}

// handleBrowseSaved browses with the persisted browser state.
func (s *Server) handleBrowseSaved(w http.ResponseWriter, r *http.Request) {
	state, err := s.app.BrowserState().Load()
	if err != nil {
		RespondWithAppError(w, err)
		return
	}
	size, err := s.pageSize(r)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid page_size")
		return
	}
	resp, err := s.browse(r, state, size)
	if err != nil {
		RespondWithAppError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCatalogStatus(w http.ResponseWriter, r *http.Request) {
	kind := getKindFromContext(r)
	entries, err := s.store.ListCatalog(kind)
	if err != nil {
		RespondWithAppError(w, err)
		return
	}
	last, ok, err := s.store.LastFetched(kind)
	if err != nil {
		RespondWithAppError(w, err)
		return
	}

	status := map[string]interface{}{
		"kind":       kind,
		"count":      len(entries),
		"refreshing": s.app.Refresher().Running(),
	}
	if ok {
		status["last_fetched"] = last
	} else {
		status["last_fetched"] = nil
	}
	RespondWithJSON(w, http.StatusOK, status)
}

func (s *Server) handleSearchRemote(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.URL.Query().Get("q"))
	if text == "" {
		RespondWithError(w, http.StatusBadRequest, "Search query is required")
		return
	}
	entries, err := s.app.Refresher().SearchRemote(r.Context(), getKindFromContext(r), text)
	if err != nil {
		RespondWithAppError(w, err)
		return
	}
	if entries == nil {
		entries = []models.CatalogEntry{}
	}
	RespondWithJSON(w, http.StatusOK, entries)
}

func fullNameParam(r *http.Request) string {
	return chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "repo")
}

func (s *Server) handleGetCatalogEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.app.Engine().FindEntry(getKindFromContext(r), fullNameParam(r))
	if err != nil {
		RespondWithAppError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, entry)
}

func (s *Server) handleGetCatalogEntryByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid remote id")
		return
	}
	entry, err := s.store.GetCatalogEntry(getKindFromContext(r), id)
	if err != nil {
		RespondWithAppError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, entry)
}

func (s *Server) handleListPatchFiles(w http.ResponseWriter, r *http.Request) {
	entry, err := s.app.Engine().FindEntry(getKindFromContext(r), fullNameParam(r))
	if err != nil {
		RespondWithAppError(w, err)
		return
	}
	files, err := s.store.ListPatchFiles(entry.RemoteID)
	if err != nil {
		RespondWithAppError(w, err)
		return
	}
	if files == nil {
		files = []models.PatchFileEntry{}
	}
	RespondWithJSON(w, http.StatusOK, files)
}

// handleRefreshPatchFiles enumerates one repository's files from the remote.
func (s *Server) handleRefreshPatchFiles(w http.ResponseWriter, r *http.Request) {
	entry, err := s.app.Engine().FindEntry(getKindFromContext(r), fullNameParam(r))
	if err != nil {
		RespondWithAppError(w, err)
		return
	}
	files, err := s.app.Refresher().RefreshPatchFiles(r.Context(), *entry)
	if err != nil {
		RespondWithAppError(w, err)
		return
	}
	if files == nil {
		files = []models.PatchFileEntry{}
	}
	RespondWithJSON(w, http.StatusOK, files)
}
