package reconcile

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/juanfuturochile/appstore.koplugin/internal/apperr"
	"github.com/juanfuturochile/appstore.koplugin/internal/catalog"
	"github.com/juanfuturochile/appstore.koplugin/internal/models"
	"github.com/juanfuturochile/appstore.koplugin/internal/util"
)

func splitFullName(entry models.CatalogEntry) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(entry.FullName, "/")
	if !ok || owner == "" || repo == "" {
		owner, repo = entry.Owner, entry.Name
	}
	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("catalog entry %d has no owner/repo", entry.RemoteID)
	}
	return owner, repo, nil
}

func (e *Engine) requirePresent(kind models.Kind, key string) error {
	if err := util.ValidateArtifactKey(key); err != nil {
		return err
	}
	p := e.ArtifactPath(kind, key)
	present, err := exists(p)
	if err != nil {
		return err
	}
	if !present {
		return &apperr.IOError{Path: p, Inner: fs.ErrNotExist}
	}
	return nil
}

// MatchPlugin records that the installed plugin directory key came from
// entry. Empty manifestPath and branch default to the root manifest and
// the repository's default branch.
func (e *Engine) MatchPlugin(key string, entry models.CatalogEntry, manifestPath, branch string) (models.InstallRecord, error) {
	if err := e.requirePresent(models.KindPlugin, key); err != nil {
		return models.InstallRecord{}, err
	}
	owner, repo, err := splitFullName(entry)
	if err != nil {
		return models.InstallRecord{}, err
	}
	if manifestPath = cleanRepoPath(manifestPath); manifestPath == "" {
		manifestPath = ManifestFile
	}
	if branch == "" {
		branch = entry.DefaultBranch
	}

	rec := models.InstallRecord{
		PluginName:   strings.TrimSuffix(key, ".koplugin"),
		Owner:        owner,
		Repo:         repo,
		FullName:     owner + "/" + repo,
		RepoRemoteID: entry.RemoteID,
		Description:  entry.Description,
		Branch:       branch,
		ManifestPath: manifestPath,
		MatchedAt:    e.now(),
	}
	if local, err := ReadLocalManifest(e.ArtifactPath(models.KindPlugin, key)); err == nil {
		if local.Name != "" {
			rec.PluginName = local.Name
		}
		rec.InstalledVersion = local.Version
	}

	if err := e.registry.UpsertPlugin(key, rec); err != nil {
		return models.InstallRecord{}, err
	}
	e.forget(models.KindPlugin, key)
	log.Info().Str("plugin", key).Str("repo", rec.FullName).Msg("Plugin matched")
	return rec, nil
}

// MatchPatch records that the installed patch file key came from path in
// entry's repository. When sha is empty the cached listing supplies it.
func (e *Engine) MatchPatch(key string, entry models.CatalogEntry, path, branch, sha string) (models.PatchInstallRecord, error) {
	if err := e.requirePresent(models.KindPatch, key); err != nil {
		return models.PatchInstallRecord{}, err
	}
	owner, repo, err := splitFullName(entry)
	if err != nil {
		return models.PatchInstallRecord{}, err
	}
	if path = cleanRepoPath(path); path == "" {
		path = key
	}
	if branch == "" {
		branch = entry.DefaultBranch
	}

	if sha == "" && entry.RemoteID != 0 {
		files, err := e.store.ListPatchFiles(entry.RemoteID)
		if err != nil {
			return models.PatchInstallRecord{}, err
		}
		for _, f := range files {
			if f.Path == path {
				sha = f.ContentSHA
				if branch == "" {
					branch = f.Branch
				}
				break
			}
		}
	}

	rec := models.PatchInstallRecord{
		Owner:        owner,
		Repo:         repo,
		FullName:     owner + "/" + repo,
		RepoRemoteID: entry.RemoteID,
		Description:  entry.Description,
		Branch:       branch,
		Path:         path,
		ContentSHA:   sha,
		MatchedAt:    e.now(),
	}
	if err := e.registry.UpsertPatch(key, rec); err != nil {
		return models.PatchInstallRecord{}, err
	}
	e.forget(models.KindPatch, key)
	log.Info().Str("patch", key).Str("repo", rec.FullName).Str("path", path).Msg("Patch matched")
	return rec, nil
}

// Unmatch removes the install record of key and its cached verdict.
func (e *Engine) Unmatch(kind models.Kind, key string) error {
	if err := e.registry.Remove(kind, key); err != nil {
		return err
	}
	return e.store.DeleteCheck(kind, key)
}

func (e *Engine) forget(kind models.Kind, key string) {
	if err := e.store.DeleteCheck(kind, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to clear cached update check")
	}
}

// FindEntry looks up a cached catalog entry by "owner/repo".
func (e *Engine) FindEntry(kind models.Kind, fullName string) (*models.CatalogEntry, error) {
	return e.store.FindCatalogEntry(kind, fullName)
}

// Orphans lists registered keys of kind whose local artifact is gone.
func (e *Engine) Orphans(kind models.Kind) ([]string, error) {
	keys, err := e.registry.Keys(kind)
	if err != nil {
		return nil, err
	}
	var orphans []string
	for _, k := range keys {
		present, err := exists(e.ArtifactPath(kind, k))
		if err != nil {
			return nil, err
		}
		if !present {
			orphans = append(orphans, k)
		}
	}
	sort.Strings(orphans)
	return orphans, nil
}

// Prune removes the install records of every orphan of kind and returns
// the removed keys.
func (e *Engine) Prune(kind models.Kind) ([]string, error) {
	orphans, err := e.Orphans(kind)
	if err != nil {
		return nil, err
	}
	for _, k := range orphans {
		if err := e.Unmatch(kind, k); err != nil {
			return nil, err
		}
		log.Info().Str("kind", string(kind)).Str("key", k).Msg("Pruned orphaned install record")
	}
	return orphans, nil
}

// InstalledArtifact is one local artifact or registry entry.
type InstalledArtifact struct {
	Kind      models.Kind     `json:"kind"`
	Key       string          `json:"key"`
	Present   bool            `json:"present"`
	Matched   bool            `json:"matched"`
	FullName  string          `json:"full_name,omitempty"`
	Version   string          `json:"version,omitempty"`
	LastCheck *models.Verdict `json:"last_check,omitempty"`
}

// scanLocal lists artifact keys present in the install directory of kind.
// A missing install directory has no artifacts.
func (e *Engine) scanLocal(kind models.Kind) ([]string, error) {
	dir := e.pluginsDir
	if kind == models.KindPatch {
		dir = e.patchesDir
	}
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &apperr.IOError{Path: dir, Inner: err}
	}

	var keys []string
	for _, de := range entries {
		name := de.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		switch kind {
		case models.KindPlugin:
			if de.IsDir() {
				keys = append(keys, name)
			}
		case models.KindPatch:
			if de.Type().IsRegular() && catalog.IsPatchFile(name) {
				keys = append(keys, name)
			}
		}
	}
	return keys, nil
}

// Installed merges what is on disk with what is registered for kind.
func (e *Engine) Installed(kind models.Kind) ([]InstalledArtifact, error) {
	local, err := e.scanLocal(kind)
	if err != nil {
		return nil, err
	}
	checks, err := e.store.ListChecks(kind)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*InstalledArtifact)
	for _, k := range local {
		byKey[k] = &InstalledArtifact{Kind: kind, Key: k, Present: true}
	}
	get := func(k string) *InstalledArtifact {
		a, ok := byKey[k]
		if !ok {
			a = &InstalledArtifact{Kind: kind, Key: k}
			byKey[k] = a
		}
		return a
	}

	switch kind {
	case models.KindPlugin:
		recs, err := e.registry.ListPlugins()
		if err != nil {
			return nil, err
		}
		for k, r := range recs {
			a := get(k)
			a.Matched = r.Matched()
			a.FullName = r.FullName
			a.Version = r.InstalledVersion
		}
		for _, a := range byKey {
			if a.Version == "" && a.Present {
				if m, err := ReadLocalManifest(e.ArtifactPath(kind, a.Key)); err == nil {
					a.Version = m.Version
				}
			}
		}
	case models.KindPatch:
		recs, err := e.registry.ListPatches()
		if err != nil {
			return nil, err
		}
		for k, r := range recs {
			a := get(k)
			a.Matched = r.Matched()
			a.FullName = r.FullName
		}
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}

	out := make([]InstalledArtifact, 0, len(byKey))
	for k, a := range byKey {
		if v, ok := checks[k]; ok {
			a.LastCheck = &v
		}
		out = append(out, *a)
	}
	slices.SortFunc(out, func(a, b InstalledArtifact) int {
		return cmp.Or(util.NaturalCompare(a.Key, b.Key), strings.Compare(a.Key, b.Key))
	})
	return out, nil
}
