package models

import "fmt"

// SortMode selects one of the catalog's total orders.
type SortMode string

const (
	// SortPopularity: popularity desc, pushed desc, name asc.
	SortPopularity SortMode = "popularity"
	// SortRecentlyPushed: pushed desc, popularity desc, name asc.
	SortRecentlyPushed SortMode = "pushed"
	// SortName: name asc, popularity desc, pushed desc.
	SortName SortMode = "name"
	// SortNewest: created desc, popularity desc, name asc.
	SortNewest SortMode = "created"
)

// ParseSortMode validates a sort mode string. Empty means SortPopularity.
func ParseSortMode(s string) (SortMode, error) {
	switch SortMode(s) {
	case "":
		return SortPopularity, nil
	case SortPopularity, SortRecentlyPushed, SortName, SortNewest:
		return SortMode(s), nil
	}
	return "", fmt.Errorf("unknown sort mode %q", s)
}

// FilterCriteria narrows a catalog listing.
type FilterCriteria struct {
	Search        string `json:"search"`
	Owner         string `json:"owner"`
	MinPopularity int    `json:"min_popularity"`
}

// BrowserState is the persisted state of the catalog browsing view.
type BrowserState struct {
	Kind           Kind     `json:"kind"`
	Search         string   `json:"search"`
	Owner          string   `json:"owner"`
	MinPopularity  int      `json:"min_popularity"`
	Page           int      `json:"page"`
	ScrollPosition int      `json:"scroll_position"`
	Sort           SortMode `json:"sort"`
	SearchRemote   bool     `json:"search_remote"`
}

// DefaultBrowserState is the state used before anything has been persisted.
func DefaultBrowserState() BrowserState {
	return BrowserState{Kind: KindPlugin, Sort: SortPopularity, Page: 1}
}

// Criteria extracts the filter part of the state.
func (b BrowserState) Criteria() FilterCriteria {
	return FilterCriteria{Search: b.Search, Owner: b.Owner, MinPopularity: b.MinPopularity}
}
