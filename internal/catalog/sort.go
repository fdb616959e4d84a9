package catalog

import (
	"cmp"
	"slices"

	"github.com/juanfuturochile/appstore.koplugin/internal/models"
	"github.com/juanfuturochile/appstore.koplugin/internal/util"
)

// compareName orders by natural, case-insensitive name, then by the raw
// name, then by remote id, so that no two distinct entries compare equal.
func compareName(a, b models.CatalogEntry) int {
	if c := util.NaturalCompare(a.Name, b.Name); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.RemoteID, b.RemoteID)
}

func desc[T cmp.Ordered](a, b T) int {
	return cmp.Compare(b, a)
}

func comparator(mode models.SortMode) func(a, b models.CatalogEntry) int {
	switch mode {
	case models.SortRecentlyPushed:
		return func(a, b models.CatalogEntry) int {
			return cmp.Or(
				desc(a.PushedAt, b.PushedAt),
				desc(a.Popularity, b.Popularity),
				compareName(a, b),
			)
		}
	case models.SortName:
		return func(a, b models.CatalogEntry) int {
			if c := util.NaturalCompare(a.Name, b.Name); c != 0 {
				return c
			}
			return cmp.Or(
				desc(a.Popularity, b.Popularity),
				desc(a.PushedAt, b.PushedAt),
				compareName(a, b),
			)
		}
	case models.SortNewest:
		return func(a, b models.CatalogEntry) int {
			return cmp.Or(
				desc(a.CreatedAt, b.CreatedAt),
				desc(a.Popularity, b.Popularity),
				compareName(a, b),
			)
		}
	default:
		return func(a, b models.CatalogEntry) int {
			return cmp.Or(
				desc(a.Popularity, b.Popularity),
				desc(a.PushedAt, b.PushedAt),
				compareName(a, b),
			)
		}
	}
}

// Sort returns a sorted copy of entries. Every mode is a total order, so
// the same input always pages the same way. Missing timestamps are 0 and
// sink to the bottom of the recency orders.
func Sort(entries []models.CatalogEntry, mode models.SortMode) []models.CatalogEntry {
	out := slices.Clone(entries)
	slices.SortStableFunc(out, comparator(mode))
	return out
}
