package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/juanfuturochile/appstore.koplugin/internal/apperr"
	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

const catalogColumns = `remote_id, kind, name, owner, full_name, description, language, homepage,
	topics, popularity, default_branch, pushed_at, created_at, updated_at, fetched_at, raw_metadata`

// RefreshKind replaces every cached entry of kind with entries in a single
// transaction. An empty slice is a valid refresh that leaves the kind
// empty. On any failure the previous snapshot stays in place.
func (s *Store) RefreshKind(kind models.Kind, entries []models.CatalogEntry) error {
	fetchedAt := s.now().Unix()
	return s.withTx("refresh catalog "+string(kind), func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM catalog_entries WHERE kind = ?", kind); err != nil {
			return err
		}

		stmt, err := tx.Prepare(`INSERT INTO catalog_entries (` + catalogColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range entries {
			if e.Popularity < 0 {
				return fmt.Errorf("entry %d has negative popularity %d", e.RemoteID, e.Popularity)
			}
			topics, err := json.Marshal(nonNilTopics(e.Topics))
			if err != nil {
				return err
			}
			var raw sql.NullString
			if len(e.RawMetadata) > 0 {
				raw = sql.NullString{String: string(e.RawMetadata), Valid: true}
			}
			_, err = stmt.Exec(
				e.RemoteID, kind, e.Name, e.Owner, e.FullName, e.Description, e.Language, e.Homepage,
				string(topics), e.Popularity, e.DefaultBranch, e.PushedAt, e.CreatedAt, e.UpdatedAt,
				fetchedAt, raw,
			)
			if err != nil {
				return fmt.Errorf("insert entry %d: %w", e.RemoteID, err)
			}
		}

		_, err = tx.Exec(`
			INSERT INTO catalog_fetches (kind, fetched_at) VALUES (?, ?)
			ON CONFLICT(kind) DO UPDATE SET fetched_at = excluded.fetched_at
		`, kind, fetchedAt)
		return err
	})
}

// ListCatalog returns the cached entries of kind, most popular first and
// by name for equal popularity.
func (s *Store) ListCatalog(kind models.Kind) ([]models.CatalogEntry, error) {
	rows, err := s.db.Query(`SELECT `+catalogColumns+`
		FROM catalog_entries
		WHERE kind = ?
		ORDER BY popularity DESC, name ASC, remote_id ASC`, kind)
	if err != nil {
		return nil, apperr.WrapStorage("list catalog", err)
	}
	defer rows.Close()

	entries := make([]models.CatalogEntry, 0)
	for rows.Next() {
		e, err := scanCatalogEntry(rows)
		if err != nil {
			return nil, apperr.WrapStorage("list catalog", err)
		}
		entries = append(entries, *e)
	}
	return entries, apperr.WrapStorage("list catalog", rows.Err())
}

// GetCatalogEntry returns one cached entry, or a NotFoundError when the
// repository is not in the cache.
func (s *Store) GetCatalogEntry(kind models.Kind, remoteID int64) (*models.CatalogEntry, error) {
	row := s.db.QueryRow(`SELECT `+catalogColumns+`
		FROM catalog_entries WHERE kind = ? AND remote_id = ?`, kind, remoteID)
	e, err := scanCatalogEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperr.NotFoundError{Resource: fmt.Sprintf("%s catalog entry %d", kind, remoteID)}
	}
	if err != nil {
		return nil, apperr.WrapStorage("get catalog entry", err)
	}
	return e, nil
}

// FindCatalogEntry looks an entry up by its "owner/name" full name,
// ignoring case. It returns a NotFoundError when no entry matches.
func (s *Store) FindCatalogEntry(kind models.Kind, fullName string) (*models.CatalogEntry, error) {
	row := s.db.QueryRow(`SELECT `+catalogColumns+`
		FROM catalog_entries WHERE kind = ? AND full_name = ? COLLATE NOCASE
		ORDER BY remote_id LIMIT 1`, kind, fullName)
	e, err := scanCatalogEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperr.NotFoundError{Resource: fmt.Sprintf("%s catalog entry %s", kind, fullName)}
	}
	if err != nil {
		return nil, apperr.WrapStorage("find catalog entry", err)
	}
	return e, nil
}

// LastFetched returns when kind was last refreshed. ok is false when the
// kind has never been refreshed.
func (s *Store) LastFetched(kind models.Kind) (t time.Time, ok bool, err error) {
	var fetchedAt int64
	err = s.db.QueryRow("SELECT fetched_at FROM catalog_fetches WHERE kind = ?", kind).Scan(&fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, apperr.WrapStorage("last fetched", err)
	}
	return time.Unix(fetchedAt, 0), true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCatalogEntry(row rowScanner) (*models.CatalogEntry, error) {
	var e models.CatalogEntry
	var topics string
	var raw sql.NullString
	err := row.Scan(
		&e.RemoteID, &e.Kind, &e.Name, &e.Owner, &e.FullName, &e.Description, &e.Language, &e.Homepage,
		&topics, &e.Popularity, &e.DefaultBranch, &e.PushedAt, &e.CreatedAt, &e.UpdatedAt,
		&e.FetchedAt, &raw,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(topics), &e.Topics); err != nil {
		return nil, fmt.Errorf("corrupt topics for %d: %w", e.RemoteID, err)
	}
	if raw.Valid {
		e.RawMetadata = json.RawMessage(raw.String)
	}
	return &e, nil
}

func nonNilTopics(topics []string) []string {
	if topics == nil {
		return []string{}
	}
	return topics
}
