package api_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/juanfuturochile/appstore.koplugin/internal/jobs"
	"github.com/juanfuturochile/appstore.koplugin/internal/models"
	"github.com/juanfuturochile/appstore.koplugin/internal/reconcile"
	"github.com/juanfuturochile/appstore.koplugin/internal/util"
)

func (ts *testServer) installPlugin(t *testing.T, key, version string) {
	t.Helper()
	dir := filepath.Join(ts.cfg.Plugins.Path, key)
	require.NoError(t, os.MkdirAll(dir, 0755))
	manifest := `return { name = "` + key + `", version = "` + version + `" }`
	require.NoError(t, os.WriteFile(filepath.Join(dir, reconcile.ManifestFile), []byte(manifest), 0644))
	old := time.Unix(1700000000, 0)
	require.NoError(t, os.Chtimes(filepath.Join(dir, reconcile.ManifestFile), old, old))
}

func (ts *testServer) installPatch(t *testing.T, key string, content []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(ts.cfg.Patches.Path, key), content, 0644))
}

func TestMatchAndUnmatchPlugin(t *testing.T) {
	ts := setupTestServer(t)
	seedPlugins(t, ts)
	ts.installPlugin(t, "reader.koplugin", "1.0.0")

	rr := ts.do(t, http.MethodGet, "/api/installed/plugin", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	installed := decode[[]reconcile.InstalledArtifact](t, rr)
	require.Len(t, installed, 1)
	assert.True(t, installed[0].Present)
	assert.False(t, installed[0].Matched)

	rr = ts.do(t, http.MethodPut, "/api/installed/plugin/reader.koplugin/match", map[string]string{
		"full_name": "alice/reader",
		"branch":    "main",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rec := decode[models.InstallRecord](t, rr)
	assert.Equal(t, "alice", rec.Owner)
	assert.Equal(t, "1.0.0", rec.InstalledVersion)
	assert.Equal(t, reconcile.ManifestFile, rec.ManifestPath)

	rr = ts.do(t, http.MethodGet, "/api/installed/plugin/reader.koplugin", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	artifact := decode[reconcile.InstalledArtifact](t, rr)
	assert.True(t, artifact.Matched)
	assert.Equal(t, "alice/reader", artifact.FullName)

	rr = ts.do(t, http.MethodDelete, "/api/installed/plugin/reader.koplugin/match", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	got, err := ts.app.Registry().GetPlugin("reader.koplugin")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMatchErrors(t *testing.T) {
	ts := setupTestServer(t)
	seedPlugins(t, ts)
	ts.installPlugin(t, "reader.koplugin", "1.0.0")

	t.Run("Unknown repository", func(t *testing.T) {
		rr := ts.do(t, http.MethodPut, "/api/installed/plugin/reader.koplugin/match", map[string]string{"full_name": "nobody/nothing"})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Missing local artifact", func(t *testing.T) {
		rr := ts.do(t, http.MethodPut, "/api/installed/plugin/ghost.koplugin/match", map[string]string{"full_name": "alice/reader"})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Missing full name", func(t *testing.T) {
		rr := ts.do(t, http.MethodPut, "/api/installed/plugin/reader.koplugin/match", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Traversal key", func(t *testing.T) {
		rr := ts.do(t, http.MethodPost, "/api/installed/plugin/..%2Fetc/check", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestCheckOnePlugin(t *testing.T) {
	ts := setupTestServer(t)
	seedPlugins(t, ts)
	ts.installPlugin(t, "reader.koplugin", "1.0.0")
	rr := ts.do(t, http.MethodPut, "/api/installed/plugin/reader.koplugin/match", map[string]string{"full_name": "alice/reader", "branch": "main"})
	require.Equal(t, http.StatusOK, rr.Code)

	ts.remote.On("FetchRepoMetadata", mock.Anything, "alice", "reader").
		Return(&models.RepoMetadata{FullName: "alice/reader", DefaultBranch: "main", PushedAt: time.Unix(1600000000, 0)}, nil)
	ts.remote.On("FetchRawFile", mock.Anything, "alice", "reader", "main", reconcile.ManifestFile).
		Return([]byte(`return { version = "1.1.0" }`), nil)

	rr = ts.do(t, http.MethodPost, "/api/installed/plugin/reader.koplugin/check", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	v := decode[models.Verdict](t, rr)
	assert.Equal(t, models.StateNeedsUpdate, v.State)
	assert.Equal(t, "1.1.0", v.RemoteVersion)

	rr = ts.do(t, http.MethodGet, "/api/installed/plugin/checks", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	checks := decode[map[string]models.Verdict](t, rr)
	assert.Equal(t, models.StateNeedsUpdate, checks["reader.koplugin"].State)
}

func TestCheckOnePatch(t *testing.T) {
	ts := setupTestServer(t)
	content := []byte("-- hide the clock\n")
	ts.installPatch(t, "2-hide-clock.lua", content)
	require.NoError(t, ts.app.Registry().UpsertPatch("2-hide-clock.lua", models.PatchInstallRecord{
		Owner: "carol", Repo: "patches", FullName: "carol/patches", Branch: "main", Path: "2-hide-clock.lua",
	}))
	ts.remote.On("FetchFileTree", mock.Anything, "carol", "patches", "main").
		Return([]models.RemoteFile{{Path: "2-hide-clock.lua", ContentSHA: util.HashBlob(content)}}, nil)

	rr := ts.do(t, http.MethodPost, "/api/installed/patch/2-hide-clock.lua/check", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, models.StateUpToDate, decode[models.Verdict](t, rr).State)
}

func TestOrphans(t *testing.T) {
	ts := setupTestServer(t)
	require.NoError(t, ts.app.Registry().UpsertPatch("gone.lua", models.PatchInstallRecord{Owner: "o", Repo: "r", Path: "gone.lua"}))

	rr := ts.do(t, http.MethodGet, "/api/installed/patch/orphans", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"gone.lua"}, decode[[]string](t, rr))

	rr = ts.do(t, http.MethodDelete, "/api/installed/patch/orphans", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"gone.lua"}, decode[map[string][]string](t, rr)["pruned"])

	rr = ts.do(t, http.MethodGet, "/api/installed/patch/orphans", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]string](t, rr))
}

func TestJobs(t *testing.T) {
	ts := setupTestServer(t)
	ts.installPlugin(t, "local.koplugin", "1.0")
	require.NoError(t, ts.app.Registry().UpsertPlugin("local.koplugin", models.InstallRecord{PluginName: "local"}))

	rr := ts.do(t, http.MethodPost, "/api/installed/plugin/check", nil)
	require.Equal(t, http.StatusAccepted, rr.Code)
	body := decode[map[string]string](t, rr)
	assert.Equal(t, jobs.JobCheckPlugins, body["job_id"])
	assert.NotEmpty(t, body["run_id"])
	ts.app.JobManager().Wait()

	rr = ts.do(t, http.MethodGet, "/api/jobs/status", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	statuses := decode[[]jobs.JobStatus](t, rr)
	require.Len(t, statuses, 4)
	for _, s := range statuses {
		if s.ID == jobs.JobCheckPlugins {
			assert.Equal(t, "success", s.Status)
			assert.Equal(t, body["run_id"], s.RunID)
		}
	}

	t.Run("Unknown job", func(t *testing.T) {
		rr := ts.do(t, http.MethodPost, "/api/jobs/run", map[string]string{"job_name": "nope"})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Cancel with nothing running", func(t *testing.T) {
		rr := ts.do(t, http.MethodPost, "/api/jobs/cancel", nil)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("Second run conflicts", func(t *testing.T) {
		block := make(chan struct{})
		ts.app.JobManager().Register("blocker", "Blocker", func(ctx context.Context, _ jobs.JobContext, _ string) error {
			select {
			case <-block:
			case <-ctx.Done():
			}
			return nil
		})
		rr := ts.do(t, http.MethodPost, "/api/jobs/run", map[string]string{"job_name": "blocker"})
		require.Equal(t, http.StatusAccepted, rr.Code)
		rr = ts.do(t, http.MethodPost, "/api/jobs/run", map[string]string{"job_name": jobs.JobCatalogRefresh})
		assert.Equal(t, http.StatusConflict, rr.Code)
		close(block)
		ts.app.JobManager().Wait()
	})
}
