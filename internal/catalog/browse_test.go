package catalog

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

func TestBrowse(t *testing.T) {
	var entries []models.CatalogEntry
	for i := 1; i <= 25; i++ {
		entries = append(entries, entry(int64(i), fmt.Sprintf("plugin-%02d", i), i))
	}
	state := models.DefaultBrowserState()

	t.Run("First page", func(t *testing.T) {
		page := Browse(entries, nil, state, 10)
		assert.Equal(t, 25, page.Total)
		assert.Equal(t, 3, page.Pages)
		assert.Len(t, page.Entries, 10)
		assert.Equal(t, "plugin-25", page.Entries[0].Name)
	})

	t.Run("Last partial page", func(t *testing.T) {
		state.Page = 3
		page := Browse(entries, nil, state, 10)
		assert.Len(t, page.Entries, 5)
		assert.Equal(t, "plugin-01", page.Entries[4].Name)
	})

	t.Run("Out of range page is empty", func(t *testing.T) {
		state.Page = 4
		page := Browse(entries, nil, state, 10)
		assert.Empty(t, page.Entries)
		assert.NotNil(t, page.Entries)
		assert.Equal(t, 25, page.Total)
	})

	t.Run("Huge page number is empty", func(t *testing.T) {
		state.Page = math.MaxInt
		page := Browse(entries, nil, state, 20)
		assert.Empty(t, page.Entries)
		assert.Equal(t, 2, page.Pages)
	})

	t.Run("Huge page size is one page", func(t *testing.T) {
		state.Page = 1
		page := Browse(entries, nil, state, math.MaxInt)
		assert.Equal(t, 1, page.Pages)
		assert.Len(t, page.Entries, 25)
	})

	t.Run("Filter narrows total", func(t *testing.T) {
		s := models.DefaultBrowserState()
		s.Search = "plugin-1"
		s.Sort = models.SortName
		page := Browse(entries, nil, s, 0)
		assert.Equal(t, 10, page.Total)
		assert.Equal(t, DefaultPageSize, page.PageSize)
		assert.Equal(t, "plugin-10", page.Entries[0].Name)
	})

	t.Run("Zero page is treated as first", func(t *testing.T) {
		s := models.DefaultBrowserState()
		s.Page = 0
		assert.Equal(t, 1, Browse(entries, nil, s, 10).Page)
	})
}
