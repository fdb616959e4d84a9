// Package remote defines the calls the catalog and the reconciliation
// engine make against the upstream catalog host.
package remote

import (
	"context"

	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

// Pagination selects one page of a search. Page is 1-based.
type Pagination struct {
	Page    int
	PerPage int
}

// Remote is the upstream catalog host. Implementations return
// *apperr.NotFoundError for absent entities, *apperr.NetworkError for
// transport failures, bad statuses and timeouts, and *apperr.DecodeError
// for malformed payloads.
type Remote interface {
	// SearchCatalog returns one page of repositories matching query.
	// Returned entries have no Kind or FetchedAt set.
	SearchCatalog(ctx context.Context, query string, page Pagination) ([]models.CatalogEntry, error)
	FetchRepoMetadata(ctx context.Context, owner, name string) (*models.RepoMetadata, error)
	// FetchFileTree lists every blob in the tree of branch, recursively.
	FetchFileTree(ctx context.Context, owner, name, branch string) ([]models.RemoteFile, error)
	FetchRawFile(ctx context.Context, owner, name, branch, path string) ([]byte, error)
}
