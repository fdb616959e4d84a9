package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/juanfuturochile/appstore.koplugin/internal/apperr"
	"github.com/juanfuturochile/appstore.koplugin/internal/models"
	"github.com/juanfuturochile/appstore.koplugin/internal/util"
)

// StateStore persists the browsing state in its own JSON document, apart
// from the cache and the install registry.
type StateStore struct {
	path string
	mu   sync.Mutex
}

// NewStateStore returns a store for the document at path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Normalize replaces invalid fields with their defaults.
func Normalize(s models.BrowserState) models.BrowserState {
	def := models.DefaultBrowserState()
	if _, err := models.ParseKind(string(s.Kind)); err != nil {
		s.Kind = def.Kind
	}
	if mode, err := models.ParseSortMode(string(s.Sort)); err != nil {
		s.Sort = def.Sort
	} else {
		s.Sort = mode
	}
	if s.Page < 1 {
		s.Page = 1
	}
	if s.ScrollPosition < 0 {
		s.ScrollPosition = 0
	}
	if s.MinPopularity < 0 {
		s.MinPopularity = 0
	}
	return s
}

// Load returns the persisted state, or the defaults if nothing was saved.
func (s *StateStore) Load() (models.BrowserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.DefaultBrowserState(), nil
		}
		return models.BrowserState{}, &apperr.IOError{Path: s.path, Inner: err}
	}

	state := models.DefaultBrowserState()
	if err := json.Unmarshal(data, &state); err != nil {
		return models.BrowserState{}, &apperr.DecodeError{What: "browser state " + s.path, Inner: err}
	}
	return Normalize(state), nil
}

// Save writes state atomically and returns the normalized value written.
func (s *StateStore) Save(state models.BrowserState) (models.BrowserState, error) {
	state = Normalize(state)
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return state, fmt.Errorf("failed to marshal browser state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := util.WriteFileAtomic(s.path, data); err != nil {
		return state, &apperr.IOError{Path: s.path, Inner: err}
	}
	return state, nil
}
