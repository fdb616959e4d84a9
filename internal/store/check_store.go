package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/juanfuturochile/appstore.koplugin/internal/apperr"
	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

// SaveCheck records v as the last remote check of its artifact.
func (s *Store) SaveCheck(v models.Verdict) error {
	_, err := s.db.Exec(`
		INSERT INTO update_checks (kind, artifact_key, state, remote_version, remote_pushed_at,
			remote_sha, download_url, error, orphaned, last_checked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, artifact_key) DO UPDATE SET
			state = excluded.state,
			remote_version = excluded.remote_version,
			remote_pushed_at = excluded.remote_pushed_at,
			remote_sha = excluded.remote_sha,
			download_url = excluded.download_url,
			error = excluded.error,
			orphaned = excluded.orphaned,
			last_checked = excluded.last_checked
	`, v.Kind, v.Key, v.State, v.RemoteVersion, v.RemotePushedAt, v.RemoteSHA, v.DownloadURL,
		v.Error, v.Orphaned, v.LastChecked.Unix())
	return apperr.WrapStorage("save check", err)
}

// GetCheck returns the last remote check of one artifact, or nil if the
// artifact has not been checked since it last changed.
func (s *Store) GetCheck(kind models.Kind, key string) (*models.Verdict, error) {
	row := s.db.QueryRow(`
		SELECT kind, artifact_key, state, remote_version, remote_pushed_at, remote_sha,
			download_url, error, orphaned, last_checked
		FROM update_checks WHERE kind = ? AND artifact_key = ?`, kind, key)
	v, err := scanCheck(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.WrapStorage("get check", err)
	}
	return v, nil
}

// ListChecks returns the last remote checks of kind keyed by artifact.
func (s *Store) ListChecks(kind models.Kind) (map[string]models.Verdict, error) {
	rows, err := s.db.Query(`
		SELECT kind, artifact_key, state, remote_version, remote_pushed_at, remote_sha,
			download_url, error, orphaned, last_checked
		FROM update_checks WHERE kind = ?`, kind)
	if err != nil {
		return nil, apperr.WrapStorage("list checks", err)
	}
	defer rows.Close()

	checks := make(map[string]models.Verdict)
	for rows.Next() {
		v, err := scanCheck(rows)
		if err != nil {
			return nil, apperr.WrapStorage("list checks", err)
		}
		checks[v.Key] = *v
	}
	return checks, apperr.WrapStorage("list checks", rows.Err())
}

// DeleteCheck forgets the last remote check of one artifact.
func (s *Store) DeleteCheck(kind models.Kind, key string) error {
	_, err := s.db.Exec("DELETE FROM update_checks WHERE kind = ? AND artifact_key = ?", kind, key)
	return apperr.WrapStorage("delete check", err)
}

func scanCheck(row rowScanner) (*models.Verdict, error) {
	var v models.Verdict
	var lastChecked int64
	err := row.Scan(&v.Kind, &v.Key, &v.State, &v.RemoteVersion, &v.RemotePushedAt, &v.RemoteSHA,
		&v.DownloadURL, &v.Error, &v.Orphaned, &lastChecked)
	if err != nil {
		return nil, err
	}
	v.LastChecked = time.Unix(lastChecked, 0)
	return &v, nil
}
