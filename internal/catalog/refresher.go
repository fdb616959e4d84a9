package catalog

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/juanfuturochile/appstore.koplugin/internal/metrics"
	"github.com/juanfuturochile/appstore.koplugin/internal/models"
	"github.com/juanfuturochile/appstore.koplugin/internal/remote"
	"github.com/juanfuturochile/appstore.koplugin/internal/store"
)

// ErrRefreshInProgress is returned when a refresh is requested while
// another one is still running.
var ErrRefreshInProgress = errors.New("catalog refresh already in progress")

// RefreshOptions configures a Refresher.
type RefreshOptions struct {
	// Queries holds the remote search query for each kind.
	Queries  map[models.Kind]string
	PerPage  int
	MaxPages int
	// IndexPatchFiles enumerates the files of every patch repository after
	// a successful patch refresh, so file-level search has data.
	IndexPatchFiles bool
	Metrics         *metrics.Metrics
}

// DefaultQueries are the remote searches for each kind.
var DefaultQueries = map[models.Kind]string{
	models.KindPlugin: "topic:koreader-plugin",
	models.KindPatch:  "topic:koreader-user-patch",
}

// Refresher pulls catalog pages from the remote into the cache store.
type Refresher struct {
	store   *store.Store
	remote  remote.Remote
	opts    RefreshOptions
	running atomic.Bool
	now     func() time.Time
}

// NewRefresher creates a refresher writing into st.
func NewRefresher(st *store.Store, r remote.Remote, opts RefreshOptions) *Refresher {
	if opts.Queries == nil {
		opts.Queries = DefaultQueries
	}
	if opts.PerPage <= 0 {
		opts.PerPage = 100
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 10
	}
	return &Refresher{store: st, remote: r, opts: opts, now: time.Now}
}

// Running reports whether a refresh is in flight.
func (r *Refresher) Running() bool {
	return r.running.Load()
}

func (r *Refresher) query(kind models.Kind) (string, error) {
	q, ok := r.opts.Queries[kind]
	if !ok || strings.TrimSpace(q) == "" {
		return "", fmt.Errorf("no catalog query configured for kind %q", kind)
	}
	return q, nil
}

// Refresh replaces the cached catalog of kind with a fresh remote listing
// and returns the number of entries stored. If any page fails the cache is
// left untouched.
func (r *Refresher) Refresh(ctx context.Context, kind models.Kind) (int, error) {
	if !r.running.CompareAndSwap(false, true) {
		return 0, ErrRefreshInProgress
	}
	defer r.running.Store(false)

	return r.refresh(ctx, kind)
}

// RefreshAll refreshes every kind in turn under a single guard. It stops
// at the first failure.
func (r *Refresher) RefreshAll(ctx context.Context) (map[models.Kind]int, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRefreshInProgress
	}
	defer r.running.Store(false)

	counts := make(map[models.Kind]int, len(models.Kinds))
	for _, kind := range models.Kinds {
		n, err := r.refresh(ctx, kind)
		if err != nil {
			return counts, err
		}
		counts[kind] = n
	}
	return counts, nil
}

func (r *Refresher) refresh(ctx context.Context, kind models.Kind) (int, error) {
	started := time.Now()
	entries, err := r.fetchAll(ctx, kind)
	if err == nil {
		err = r.store.RefreshKind(kind, entries)
	}
	r.opts.Metrics.ObserveRefresh(kind, len(entries), started, err)
	if err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Msg("Catalog refresh failed")
		return 0, err
	}
	log.Info().Str("kind", string(kind)).Int("entries", len(entries)).Dur("took", time.Since(started)).Msg("Catalog refreshed")

	if kind == models.KindPatch && r.opts.IndexPatchFiles {
		r.indexPatchFiles(ctx, entries)
	}
	return len(entries), nil
}

// fetchAll pages through the search until a short page or the page limit.
// Entries are de-duplicated by remote id; the first occurrence wins.
func (r *Refresher) fetchAll(ctx context.Context, kind models.Kind) ([]models.CatalogEntry, error) {
	q, err := r.query(kind)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool)
	entries := make([]models.CatalogEntry, 0)
	for page := 1; page <= r.opts.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch, err := r.remote.SearchCatalog(ctx, q, remote.Pagination{Page: page, PerPage: r.opts.PerPage})
		if err != nil {
			return nil, fmt.Errorf("fetch %s catalog page %d: %w", kind, page, err)
		}
		for _, e := range batch {
			if seen[e.RemoteID] {
				continue
			}
			seen[e.RemoteID] = true
			e.Kind = kind
			entries = append(entries, e)
		}
		if len(batch) < r.opts.PerPage {
			break
		}
	}
	return entries, nil
}

func (r *Refresher) indexPatchFiles(ctx context.Context, entries []models.CatalogEntry) {
	for _, e := range entries {
		if ctx.Err() != nil {
			return
		}
		if _, err := r.RefreshPatchFiles(ctx, e); err != nil {
			log.Warn().Err(err).Str("repo", e.FullName).Msg("Failed to index patch files")
		}
	}
}

// IsPatchFile reports whether a repository path is an installable patch.
func IsPatchFile(p string) bool {
	return strings.EqualFold(path.Ext(p), ".lua")
}

// PatchFilesFromTree converts a remote tree listing into cache rows,
// keeping only patch files.
func PatchFilesFromTree(repoRemoteID int64, branch string, files []models.RemoteFile, fetchedAt int64) []models.PatchFileEntry {
	out := make([]models.PatchFileEntry, 0, len(files))
	for _, f := range files {
		if !IsPatchFile(f.Path) {
			continue
		}
		out = append(out, models.PatchFileEntry{
			RepoRemoteID: repoRemoteID,
			Path:         f.Path,
			Filename:     path.Base(f.Path),
			Branch:       branch,
			ContentSHA:   f.ContentSHA,
			Size:         f.Size,
			DownloadURL:  f.DownloadURL,
			FetchedAt:    fetchedAt,
		})
	}
	return out
}

// RefreshPatchFiles enumerates the patch files of one repository on its
// default branch and replaces its cached listing.
func (r *Refresher) RefreshPatchFiles(ctx context.Context, entry models.CatalogEntry) ([]models.PatchFileEntry, error) {
	owner, name, ok := strings.Cut(entry.FullName, "/")
	if !ok {
		owner, name = entry.Owner, entry.Name
	}
	branch := entry.DefaultBranch
	if branch == "" {
		branch = "HEAD"
	}

	tree, err := r.remote.FetchFileTree(ctx, owner, name, branch)
	if err != nil {
		return nil, err
	}
	files := PatchFilesFromTree(entry.RemoteID, branch, tree, r.now().Unix())
	if err := r.store.RefreshPatchFiles(entry.RemoteID, files); err != nil {
		return nil, err
	}
	return files, nil
}

// SearchRemote runs the remote search for kind narrowed by text and
// returns the first page without touching the cache.
func (r *Refresher) SearchRemote(ctx context.Context, kind models.Kind, text string) ([]models.CatalogEntry, error) {
	q, err := r.query(kind)
	if err != nil {
		return nil, err
	}
	if text = strings.TrimSpace(text); text != "" {
		q = text + " " + q
	}

	entries, err := r.remote.SearchCatalog(ctx, q, remote.Pagination{Page: 1, PerPage: r.opts.PerPage})
	if err != nil {
		return nil, err
	}
	fetchedAt := r.now().Unix()
	for i := range entries {
		entries[i].Kind = kind
		entries[i].FetchedAt = fetchedAt
	}
	return entries, nil
}
