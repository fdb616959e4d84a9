package reconcile

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/juanfuturochile/appstore.koplugin/internal/apperr"
	"github.com/juanfuturochile/appstore.koplugin/internal/models"
	"github.com/juanfuturochile/appstore.koplugin/internal/util"
)

// CheckPlugin reconciles the installed plugin directory key.
func (e *Engine) CheckPlugin(ctx context.Context, key string) (models.Verdict, error) {
	rec, err := e.registry.GetPlugin(key)
	if err != nil {
		return models.Verdict{}, err
	}
	if rec == nil {
		rec = &models.InstallRecord{}
	}
	return e.checkPlugin(ctx, key, *rec), nil
}

// fetchManifest walks the candidates until one manifest is found. A
// not-found answer moves on to the next candidate; any other error ends
// the search.
func (e *Engine) fetchManifest(ctx context.Context, owner, repo string, it *candidateIterator) ([]byte, Candidate, error) {
	var lastErr error
	for c, ok := it.Next(); ok; c, ok = it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, c, apperr.FromContext("fetch manifest", err)
		}
		data, err := e.remote.FetchRawFile(ctx, owner, repo, c.BranchName(), c.Path)
		if err == nil {
			return data, c, nil
		}
		if !apperr.IsNotFound(err) {
			return nil, c, err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = &apperr.NotFoundError{Resource: fmt.Sprintf("manifest of %s/%s", owner, repo)}
	}
	return nil, Candidate{}, lastErr
}

func (e *Engine) checkPlugin(ctx context.Context, key string, rec models.InstallRecord) models.Verdict {
	dir := e.ArtifactPath(models.KindPlugin, key)
	present, err := exists(dir)
	if err != nil {
		return e.failed(models.KindPlugin, key, "", err)
	}
	if !present {
		return orphaned(e.verdict(models.KindPlugin, key, models.StateUnmatched, ReasonArtifactMissing))
	}
	if !rec.Matched() {
		return e.verdict(models.KindPlugin, key, models.StateUnmatched, ReasonNotMatched)
	}

	meta, err := e.remote.FetchRepoMetadata(ctx, rec.Owner, rec.Repo)
	if err != nil {
		return e.failed(models.KindPlugin, key, "", err)
	}

	it := newCandidateIterator(rec.ManifestPath, key, rec.Branch)
	data, found, err := e.fetchManifest(ctx, rec.Owner, rec.Repo, it)
	if err != nil {
		return e.failed(models.KindPlugin, key, "", err)
	}
	e.rememberCandidate(key, rec, found)
	remoteVersion := ParseManifest(data).Version

	localMtime, err := latestModTime(dir)
	if err != nil {
		return e.failed(models.KindPlugin, key, "", err)
	}

	v := e.verdict(models.KindPlugin, key, models.StateUpToDate, "")
	v.RemoteVersion = remoteVersion
	if !meta.PushedAt.IsZero() {
		v.RemotePushedAt = meta.PushedAt.Unix()
	}

	if !meta.PushedAt.IsZero() && meta.PushedAt.After(localMtime) {
		v.State = models.StateNeedsUpdate
		v.Reason = ReasonPushedLater
		return v
	}

	installed := rec.InstalledVersion
	if installed == "" {
		if local, err := ReadLocalManifest(dir); err == nil {
			installed = local.Version
		} else {
			log.Debug().Err(err).Str("plugin", key).Msg("No local manifest, skipping version comparison")
		}
	}
	if util.IsNewer(remoteVersion, installed) {
		v.State = models.StateNeedsUpdate
		v.Reason = fmt.Sprintf("%s: %s -> %s", ReasonNewerVersion, installed, remoteVersion)
	}
	return v
}

// rememberCandidate stores a rediscovered manifest location so the next
// check starts from it.
func (e *Engine) rememberCandidate(key string, rec models.InstallRecord, found Candidate) {
	branch := found.BranchName()
	if found.Path == cleanRepoPath(rec.ManifestPath) && branch == rec.Branch {
		return
	}
	rec.ManifestPath = found.Path
	rec.Branch = branch
	if err := e.registry.UpsertPlugin(key, rec); err != nil {
		log.Warn().Err(err).Str("plugin", key).Msg("Failed to record rediscovered manifest location")
		return
	}
	log.Info().Str("plugin", key).Str("path", found.Path).Str("branch", branch).Msg("Rediscovered plugin manifest")
}
