package store

import (
	"database/sql"
	"fmt"

	"github.com/juanfuturochile/appstore.koplugin/internal/apperr"
	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

// RefreshPatchFiles replaces the cached file listing of one patch
// repository in a single transaction.
func (s *Store) RefreshPatchFiles(repoRemoteID int64, files []models.PatchFileEntry) error {
	fetchedAt := s.now().Unix()
	return s.withTx(fmt.Sprintf("refresh patch files %d", repoRemoteID), func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM patch_files WHERE repo_remote_id = ?", repoRemoteID); err != nil {
			return err
		}

		stmt, err := tx.Prepare(`
			INSERT INTO patch_files (repo_remote_id, path, filename, branch, content_sha, size, download_url, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, f := range files {
			_, err := stmt.Exec(repoRemoteID, f.Path, f.Filename, f.Branch, f.ContentSHA, f.Size, f.DownloadURL, fetchedAt)
			if err != nil {
				return fmt.Errorf("insert patch file %s: %w", f.Path, err)
			}
		}
		return nil
	})
}

// ListPatchFiles returns the cached files of one repository ordered by path.
func (s *Store) ListPatchFiles(repoRemoteID int64) ([]models.PatchFileEntry, error) {
	rows, err := s.db.Query(`
		SELECT repo_remote_id, path, filename, branch, content_sha, size, download_url, fetched_at
		FROM patch_files WHERE repo_remote_id = ? ORDER BY path`, repoRemoteID)
	if err != nil {
		return nil, apperr.WrapStorage("list patch files", err)
	}
	defer rows.Close()

	files := make([]models.PatchFileEntry, 0)
	for rows.Next() {
		var f models.PatchFileEntry
		if err := rows.Scan(&f.RepoRemoteID, &f.Path, &f.Filename, &f.Branch, &f.ContentSHA, &f.Size, &f.DownloadURL, &f.FetchedAt); err != nil {
			return nil, apperr.WrapStorage("list patch files", err)
		}
		files = append(files, f)
	}
	return files, apperr.WrapStorage("list patch files", rows.Err())
}

// ListAllPatchFiles returns every cached patch file grouped by repository.
func (s *Store) ListAllPatchFiles() (map[int64][]models.PatchFileEntry, error) {
	rows, err := s.db.Query(`
		SELECT repo_remote_id, path, filename, branch, content_sha, size, download_url, fetched_at
		FROM patch_files ORDER BY repo_remote_id, path`)
	if err != nil {
		return nil, apperr.WrapStorage("list all patch files", err)
	}
	defer rows.Close()

	byRepo := make(map[int64][]models.PatchFileEntry)
	for rows.Next() {
		var f models.PatchFileEntry
		if err := rows.Scan(&f.RepoRemoteID, &f.Path, &f.Filename, &f.Branch, &f.ContentSHA, &f.Size, &f.DownloadURL, &f.FetchedAt); err != nil {
			return nil, apperr.WrapStorage("list all patch files", err)
		}
		byRepo[f.RepoRemoteID] = append(byRepo[f.RepoRemoteID], f)
	}
	return byRepo, apperr.WrapStorage("list all patch files", rows.Err())
}
