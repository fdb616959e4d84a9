package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/juanfuturochile/appstore.koplugin/internal/apperr"
	"github.com/juanfuturochile/appstore.koplugin/internal/catalog"
	"github.com/juanfuturochile/appstore.koplugin/internal/models"
	"github.com/juanfuturochile/appstore.koplugin/internal/util"
)

// listingCache holds repository file listings fetched during one run,
// keyed by owner/repo@branch.
type listingCache map[string][]models.RemoteFile

// CheckPatch reconciles the installed patch file key.
func (e *Engine) CheckPatch(ctx context.Context, key string) (models.Verdict, error) {
	rec, err := e.registry.GetPatch(key)
	if err != nil {
		return models.Verdict{}, err
	}
	if rec == nil {
		rec = &models.PatchInstallRecord{}
	}
	return e.checkPatch(ctx, key, *rec, make(listingCache)), nil
}

// fetchListing returns the file tree of the record's repository, trying
// the recorded branch and then the usual fallbacks.
func (e *Engine) fetchListing(ctx context.Context, rec models.PatchInstallRecord, cache listingCache) ([]models.RemoteFile, error) {
	var lastErr error
	for _, ref := range branchCandidates(rec.Branch) {
		branch := ref.Short()
		cacheKey := fmt.Sprintf("%s/%s@%s", rec.Owner, rec.Repo, branch)
		if files, ok := cache[cacheKey]; ok {
			return files, nil
		}

		files, err := e.remote.FetchFileTree(ctx, rec.Owner, rec.Repo, branch)
		if err == nil {
			cache[cacheKey] = files
			e.writeThroughListing(rec.RepoRemoteID, branch, files)
			return files, nil
		}
		if !apperr.IsNotFound(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (e *Engine) writeThroughListing(repoRemoteID int64, branch string, files []models.RemoteFile) {
	if repoRemoteID == 0 {
		return
	}
	rows := catalog.PatchFilesFromTree(repoRemoteID, branch, files, e.now().Unix())
	if err := e.store.RefreshPatchFiles(repoRemoteID, rows); err != nil {
		log.Warn().Err(err).Int64("repo_id", repoRemoteID).Msg("Failed to cache patch file listing")
	}
}

func (e *Engine) checkPatch(ctx context.Context, key string, rec models.PatchInstallRecord, cache listingCache) models.Verdict {
	localSHA, hashErr := util.HashFile(e.ArtifactPath(models.KindPatch, key))
	if hashErr != nil && errors.Is(hashErr, fs.ErrNotExist) {
		return orphaned(e.verdict(models.KindPatch, key, models.StateUnmatched, ReasonArtifactMissing))
	}
	if !rec.Matched() {
		return e.verdict(models.KindPatch, key, models.StateUnmatched, ReasonNotMatched)
	}

	files, err := e.fetchListing(ctx, rec, cache)
	if err != nil {
		return e.failed(models.KindPatch, key, "", err)
	}

	target := cleanRepoPath(rec.Path)
	var remoteFile *models.RemoteFile
	for i := range files {
		if cleanRepoPath(files[i].Path) == target {
			remoteFile = &files[i]
			break
		}
	}
	if remoteFile == nil {
		return e.failed(models.KindPatch, key, ReasonFileNotUpstream,
			&apperr.NotFoundError{Resource: fmt.Sprintf("%s in %s/%s", target, rec.Owner, rec.Repo)})
	}
	if remoteFile.ContentSHA == "" {
		return e.failed(models.KindPatch, key, ReasonNoRemoteDigest,
			&apperr.DecodeError{What: "content digest of " + target})
	}

	v := e.verdict(models.KindPatch, key, models.StateUpToDate, "")
	v.RemoteSHA = remoteFile.ContentSHA
	v.DownloadURL = remoteFile.DownloadURL

	switch {
	case hashErr != nil:
		log.Warn().Err(hashErr).Str("patch", key).Msg("Could not hash installed patch")
		v.State = models.StateNeedsUpdate
		v.Reason = ReasonNoLocalDigest
	case !strings.EqualFold(localSHA, remoteFile.ContentSHA):
		v.State = models.StateNeedsUpdate
		v.Reason = ReasonContentDiffers
	}
	return v
}
