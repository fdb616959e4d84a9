package catalog

import (
	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

// DefaultPageSize is used when a caller asks for a non-positive page size.
const DefaultPageSize = 20

// Page is one page of a filtered and sorted listing.
type Page struct {
	Entries  []models.CatalogEntry `json:"entries"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Pages    int                   `json:"pages"`
}

// Browse filters entries by state, orders them by state.Sort and cuts out
// state.Page. Pages are 1-based; a page past the end is empty.
func Browse(entries []models.CatalogEntry, patchFiles map[int64][]models.PatchFileEntry, state models.BrowserState, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	page := max(state.Page, 1)

	matched := Sort(Filter(entries, state.Criteria(), patchFiles), state.Sort)
	total := len(matched)

	result := Page{
		Entries:  []models.CatalogEntry{},
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	if total == 0 {
		return result
	}
	// Written so that huge page numbers or sizes cannot overflow.
	result.Pages = (total-1)/pageSize + 1
	if page > result.Pages {
		return result
	}

	start := (page - 1) * pageSize
	end := start + min(pageSize, total-start)
	result.Entries = matched[start:end]
	return result
}
