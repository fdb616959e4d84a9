package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/juanfuturochile/appstore.koplugin/internal/apperr"
	"github.com/juanfuturochile/appstore.koplugin/internal/models"
	"github.com/juanfuturochile/appstore.koplugin/internal/util"
)

const patchContent = "-- hide the footer\nlocal ReaderFooter = require(\"apps/reader/modules/readerfooter\")\n"

func patchRecord(path string) models.PatchInstallRecord {
	return models.PatchInstallRecord{
		Owner:        "carol",
		Repo:         "patches",
		FullName:     "carol/patches",
		RepoRemoteID: 9,
		Branch:       "main",
		Path:         path,
	}
}

func TestCheckPatchDigests(t *testing.T) {
	d1 := util.HashBlob([]byte(patchContent))
	d2 := util.HashBlob([]byte(patchContent + "-- changed\n"))

	tests := []struct {
		name      string
		remoteSHA string
		expected  models.VerdictState
	}{
		{"Same digest", d1, models.StateUpToDate},
		{"Different digest", d2, models.StateNeedsUpdate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.installPatch(t, "2-hide-footer.lua", patchContent)
			require.NoError(t, f.registry.UpsertPatch("2-hide-footer.lua", patchRecord("ui/2-hide-footer.lua")))
			f.remote.On("FetchFileTree", mock.Anything, "carol", "patches", "main").Return([]models.RemoteFile{
				{Path: "README.md", ContentSHA: "x"},
				{Path: "ui/2-hide-footer.lua", ContentSHA: tt.remoteSHA, DownloadURL: "https://raw/ui/2-hide-footer.lua"},
			}, nil)

			v, err := f.engine.CheckPatch(context.Background(), "2-hide-footer.lua")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v.State)
			assert.Equal(t, tt.remoteSHA, v.RemoteSHA)
			assert.Equal(t, "https://raw/ui/2-hide-footer.lua", v.DownloadURL)
		})
	}
}

func TestCheckPatchFailures(t *testing.T) {
	t.Run("File not found upstream", func(t *testing.T) {
		f := newFixture(t)
		f.installPatch(t, "2-fix.lua", patchContent)
		require.NoError(t, f.registry.UpsertPatch("2-fix.lua", patchRecord("2-fix.lua")))
		f.remote.On("FetchFileTree", mock.Anything, "carol", "patches", "main").
			Return([]models.RemoteFile{{Path: "2-other.lua", ContentSHA: "abc"}}, nil)

		v, err := f.engine.CheckPatch(context.Background(), "2-fix.lua")
		require.NoError(t, err)
		assert.Equal(t, models.StateCheckFailed, v.State)
		assert.Equal(t, ReasonFileNotUpstream, v.Reason)
		assert.True(t, apperr.IsNotFound(v.Err))
	})

	t.Run("Remote digest missing", func(t *testing.T) {
		f := newFixture(t)
		f.installPatch(t, "2-fix.lua", patchContent)
		require.NoError(t, f.registry.UpsertPatch("2-fix.lua", patchRecord("2-fix.lua")))
		f.remote.On("FetchFileTree", mock.Anything, "carol", "patches", "main").
			Return([]models.RemoteFile{{Path: "2-fix.lua"}}, nil)

		v, err := f.engine.CheckPatch(context.Background(), "2-fix.lua")
		require.NoError(t, err)
		assert.Equal(t, models.StateCheckFailed, v.State)
		assert.Equal(t, ReasonNoRemoteDigest, v.Reason)
	})

	t.Run("Listing fails", func(t *testing.T) {
		f := newFixture(t)
		f.installPatch(t, "2-fix.lua", patchContent)
		require.NoError(t, f.registry.UpsertPatch("2-fix.lua", patchRecord("2-fix.lua")))
		f.remote.On("FetchFileTree", mock.Anything, "carol", "patches", "main").
			Return(nil, &apperr.NetworkError{Op: "fetch tree", RateLimited: true, StatusCode: 403})

		v, err := f.engine.CheckPatch(context.Background(), "2-fix.lua")
		require.NoError(t, err)
		assert.Equal(t, models.StateCheckFailed, v.State)
		f.remote.AssertNumberOfCalls(t, "FetchFileTree", 1)
	})

	t.Run("Local digest unavailable", func(t *testing.T) {
		f := newFixture(t)
		// A directory where the file should be cannot be hashed.
		require.NoError(t, os.Mkdir(filepath.Join(f.patchesDir, "2-fix.lua"), 0755))
		require.NoError(t, f.registry.UpsertPatch("2-fix.lua", patchRecord("2-fix.lua")))
		f.remote.On("FetchFileTree", mock.Anything, "carol", "patches", "main").
			Return([]models.RemoteFile{{Path: "2-fix.lua", ContentSHA: "abc"}}, nil)

		v, err := f.engine.CheckPatch(context.Background(), "2-fix.lua")
		require.NoError(t, err)
		assert.Equal(t, models.StateNeedsUpdate, v.State)
		assert.Equal(t, ReasonNoLocalDigest, v.Reason)
	})
}

func TestCheckPatchUnmatchedAndOrphaned(t *testing.T) {
	f := newFixture(t)
	f.installPatch(t, "2-local.lua", patchContent)
	rec := patchRecord("")
	require.NoError(t, f.registry.UpsertPatch("2-local.lua", rec))
	require.NoError(t, f.registry.UpsertPatch("2-gone.lua", patchRecord("2-gone.lua")))

	v, err := f.engine.CheckPatch(context.Background(), "2-local.lua")
	require.NoError(t, err)
	assert.Equal(t, models.StateUnmatched, v.State, "a record without an upstream path is unmatched")

	v, err = f.engine.CheckPatch(context.Background(), "2-gone.lua")
	require.NoError(t, err)
	assert.Equal(t, models.StateUnmatched, v.State)
	assert.True(t, v.Orphaned)

	f.remote.AssertNotCalled(t, "FetchFileTree", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckPatchBranchFallbackWritesThrough(t *testing.T) {
	f := newFixture(t)
	f.installPatch(t, "2-fix.lua", patchContent)
	rec := patchRecord("2-fix.lua")
	rec.Branch = "dev"
	require.NoError(t, f.registry.UpsertPatch("2-fix.lua", rec))

	f.remote.On("FetchFileTree", mock.Anything, "carol", "patches", "dev").Return(nil, notFound("branch dev"))
	f.remote.On("FetchFileTree", mock.Anything, "carol", "patches", "HEAD").Return([]models.RemoteFile{
		{Path: "2-fix.lua", ContentSHA: util.HashBlob([]byte(patchContent))},
		{Path: "notes.txt", ContentSHA: "n"},
	}, nil)

	v, err := f.engine.CheckPatch(context.Background(), "2-fix.lua")
	require.NoError(t, err)
	assert.Equal(t, models.StateUpToDate, v.State)

	cached, err := f.store.ListPatchFiles(9)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "HEAD", cached[0].Branch)
}
