// Package catalog filters, orders and pages cached catalog entries, keeps
// the persisted browsing state, and refreshes the cache from the remote.
package catalog

import (
	"strings"

	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

// searchTerms splits a free-text search into lower-cased terms.
func searchTerms(search string) []string {
	return strings.Fields(strings.ToLower(search))
}

func containsFold(haystack, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(haystack), lowerNeedle)
}

// entryMatchesTerm reports whether one term occurs in any searchable field.
func entryMatchesTerm(e models.CatalogEntry, term string) bool {
	if containsFold(e.Name, term) ||
		containsFold(e.FullName, term) ||
		containsFold(e.Description, term) ||
		containsFold(e.Language, term) {
		return true
	}
	for _, topic := range e.Topics {
		if containsFold(topic, term) {
			return true
		}
	}
	return false
}

func entryMatchesAll(e models.CatalogEntry, terms []string) bool {
	for _, term := range terms {
		if !entryMatchesTerm(e, term) {
			return false
		}
	}
	return true
}

// fileMatchesAll reports whether every term occurs in the filename or path
// of a single patch file.
func fileMatchesAll(f models.PatchFileEntry, terms []string) bool {
	for _, term := range terms {
		if !containsFold(f.Filename, term) && !containsFold(f.Path, term) {
			return false
		}
	}
	return true
}

// Matches reports whether e passes criteria. files are the patch files of
// e's repository; they are only consulted for patch entries.
func Matches(e models.CatalogEntry, criteria models.FilterCriteria, files []models.PatchFileEntry) bool {
	if e.Popularity < criteria.MinPopularity {
		return false
	}
	if owner := strings.ToLower(strings.TrimSpace(criteria.Owner)); owner != "" && !containsFold(e.Owner, owner) {
		return false
	}

	terms := searchTerms(criteria.Search)
	if len(terms) == 0 || entryMatchesAll(e, terms) {
		return true
	}
	if e.Kind != models.KindPatch {
		return false
	}
	for _, f := range files {
		if fileMatchesAll(f, terms) {
			return true
		}
	}
	return false
}

// Filter returns the entries that pass criteria, in input order. patchFiles
// maps a repository remote id to its file listing and may be nil.
func Filter(entries []models.CatalogEntry, criteria models.FilterCriteria, patchFiles map[int64][]models.PatchFileEntry) []models.CatalogEntry {
	out := make([]models.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		if Matches(e, criteria, patchFiles[e.RemoteID]) {
			out = append(out, e)
		}
	}
	return out
}
