package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/juanfuturochile/appstore.koplugin/internal/apperr"
	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

const calibre = "calibre.koplugin"

func calibreRecord() models.InstallRecord {
	return models.InstallRecord{
		PluginName:       "calibre",
		InstalledVersion: "1.0.0",
		Owner:            "alice",
		Repo:             calibre,
		FullName:         "alice/" + calibre,
		RepoRemoteID:     7,
		Branch:           "main",
		ManifestPath:     ManifestFile,
	}
}

func manifest(version string) []byte {
	return []byte(`return { name = "calibre", version = "` + version + `" }`)
}

func TestCheckPluginScenarios(t *testing.T) {
	tests := []struct {
		name          string
		remotePushed  time.Time
		remoteVersion string
		expected      models.VerdictState
		reason        string
	}{
		{"Older push same version", t0.Add(-100 * time.Second), "1.0.0", models.StateUpToDate, ""},
		{"Newer push same version", t0.Add(100 * time.Second), "1.0.0", models.StateNeedsUpdate, ReasonPushedLater},
		{"Older push newer version", t0.Add(-100 * time.Second), "1.1.0", models.StateNeedsUpdate, ReasonNewerVersion},
		{"Older push older version", t0.Add(-100 * time.Second), "0.9", models.StateUpToDate, ""},
		{"Unknown push time", time.Time{}, "1.0.0", models.StateUpToDate, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.installPlugin(t, calibre, "1.0.0", t0)
			require.NoError(t, f.registry.UpsertPlugin(calibre, calibreRecord()))

			f.remote.On("FetchRepoMetadata", mock.Anything, "alice", calibre).
				Return(&models.RepoMetadata{FullName: "alice/" + calibre, PushedAt: tt.remotePushed}, nil)
			f.remote.On("FetchRawFile", mock.Anything, "alice", calibre, "main", ManifestFile).
				Return(manifest(tt.remoteVersion), nil)

			v, err := f.engine.CheckPlugin(context.Background(), calibre)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v.State)
			assert.Contains(t, v.Reason, tt.reason)
			assert.Equal(t, tt.remoteVersion, v.RemoteVersion)
			assert.Equal(t, checkNow, v.LastChecked)
			f.remote.AssertExpectations(t)
		})
	}
}

func TestCheckPluginRediscoversManifest(t *testing.T) {
	f := newFixture(t)
	f.installPlugin(t, calibre, "1.0.0", t0)
	rec := calibreRecord()
	rec.ManifestPath = "old/_meta.lua"
	rec.Branch = "dev"
	require.NoError(t, f.registry.UpsertPlugin(calibre, rec))

	f.remote.On("FetchRepoMetadata", mock.Anything, "alice", calibre).
		Return(&models.RepoMetadata{PushedAt: t0.Add(-time.Hour)}, nil)
	f.remote.On("FetchRawFile", mock.Anything, "alice", calibre, "main", ManifestFile).Return(manifest("2.0"), nil)
	f.allOtherRawFilesMissing()

	v, err := f.engine.CheckPlugin(context.Background(), calibre)
	require.NoError(t, err)
	assert.Equal(t, models.StateNeedsUpdate, v.State)
	assert.Equal(t, "2.0", v.RemoteVersion)

	// old/_meta.lua on dev, HEAD, main, master, then _meta.lua on dev, HEAD, main.
	f.remote.AssertNumberOfCalls(t, "FetchRawFile", 7)

	updated, err := f.registry.GetPlugin(calibre)
	require.NoError(t, err)
	assert.Equal(t, ManifestFile, updated.ManifestPath)
	assert.Equal(t, "main", updated.Branch)
	assert.Equal(t, "1.0.0", updated.InstalledVersion)
}

func TestCheckPluginCandidateFailures(t *testing.T) {
	t.Run("Non not-found error aborts the search", func(t *testing.T) {
		f := newFixture(t)
		f.installPlugin(t, calibre, "1.0.0", t0)
		require.NoError(t, f.registry.UpsertPlugin(calibre, calibreRecord()))
		f.remote.On("FetchRepoMetadata", mock.Anything, "alice", calibre).Return(&models.RepoMetadata{}, nil)
		f.remote.On("FetchRawFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, &apperr.NetworkError{Op: "fetch file", StatusCode: 500})

		v, err := f.engine.CheckPlugin(context.Background(), calibre)
		require.NoError(t, err)
		assert.Equal(t, models.StateCheckFailed, v.State)
		var netErr *apperr.NetworkError
		assert.True(t, errors.As(v.Err, &netErr))
		assert.NotEmpty(t, v.Error)
		f.remote.AssertNumberOfCalls(t, "FetchRawFile", 1)
	})

	t.Run("Exhausted candidates carry the last not-found", func(t *testing.T) {
		f := newFixture(t)
		f.installPlugin(t, calibre, "1.0.0", t0)
		require.NoError(t, f.registry.UpsertPlugin(calibre, calibreRecord()))
		f.remote.On("FetchRepoMetadata", mock.Anything, "alice", calibre).Return(&models.RepoMetadata{}, nil)
		f.allOtherRawFilesMissing()

		v, err := f.engine.CheckPlugin(context.Background(), calibre)
		require.NoError(t, err)
		assert.Equal(t, models.StateCheckFailed, v.State)
		assert.True(t, apperr.IsNotFound(v.Err))
		// 2 paths x 3 branches.
		f.remote.AssertNumberOfCalls(t, "FetchRawFile", 6)
	})

	t.Run("Metadata failure", func(t *testing.T) {
		f := newFixture(t)
		f.installPlugin(t, calibre, "1.0.0", t0)
		require.NoError(t, f.registry.UpsertPlugin(calibre, calibreRecord()))
		f.remote.On("FetchRepoMetadata", mock.Anything, "alice", calibre).Return(nil, notFound("repository"))

		v, err := f.engine.CheckPlugin(context.Background(), calibre)
		require.NoError(t, err)
		assert.Equal(t, models.StateCheckFailed, v.State)
		f.remote.AssertNotCalled(t, "FetchRawFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCheckPluginUnmatchedAndOrphaned(t *testing.T) {
	f := newFixture(t)
	f.installPlugin(t, "local.koplugin", "1.0", t0)
	require.NoError(t, f.registry.UpsertPlugin("local.koplugin", models.InstallRecord{PluginName: "local"}))
	require.NoError(t, f.registry.UpsertPlugin("gone.koplugin", calibreRecord()))

	v, err := f.engine.CheckPlugin(context.Background(), "local.koplugin")
	require.NoError(t, err)
	assert.Equal(t, models.StateUnmatched, v.State)
	assert.False(t, v.Orphaned)

	v, err = f.engine.CheckPlugin(context.Background(), "gone.koplugin")
	require.NoError(t, err)
	assert.Equal(t, models.StateUnmatched, v.State)
	assert.True(t, v.Orphaned)
	assert.Equal(t, ReasonArtifactMissing, v.Reason)

	// Never registered but present on disk.
	f.installPlugin(t, "stray.koplugin", "1.0", t0)
	v, err = f.engine.CheckPlugin(context.Background(), "stray.koplugin")
	require.NoError(t, err)
	assert.Equal(t, models.StateUnmatched, v.State)

	f.remote.AssertNotCalled(t, "FetchRepoMetadata", mock.Anything, mock.Anything, mock.Anything)

	// The registry keeps the orphan.
	rec, err := f.registry.GetPlugin("gone.koplugin")
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestCheckPluginReadsLocalVersionWhenUnrecorded(t *testing.T) {
	f := newFixture(t)
	f.installPlugin(t, calibre, "1.0.0", t0)
	rec := calibreRecord()
	rec.InstalledVersion = ""
	require.NoError(t, f.registry.UpsertPlugin(calibre, rec))

	f.remote.On("FetchRepoMetadata", mock.Anything, "alice", calibre).
		Return(&models.RepoMetadata{PushedAt: t0.Add(-time.Minute)}, nil)
	f.remote.On("FetchRawFile", mock.Anything, "alice", calibre, "main", ManifestFile).Return(manifest("1.0.1"), nil)

	v, err := f.engine.CheckPlugin(context.Background(), calibre)
	require.NoError(t, err)
	assert.Equal(t, models.StateNeedsUpdate, v.State)
	assert.Contains(t, v.Reason, "1.0.0 -> 1.0.1")
}

func TestLatestModTimeIsRecursive(t *testing.T) {
	f := newFixture(t)
	dir := f.installPlugin(t, calibre, "1.0.0", t0)
	later := t0.Add(time.Hour)
	nested := dir + "/lib/util.lua"
	require.NoError(t, chtimes(nested, later))

	got, err := latestModTime(dir)
	require.NoError(t, err)
	assert.True(t, got.Equal(later))
}
