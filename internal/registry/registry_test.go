package registry

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juanfuturochile/appstore.koplugin/internal/apperr"
	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

func TestRegistryPlugins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	r := New(path)
	matched := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Missing document reads as empty", func(t *testing.T) {
		plugins, err := r.ListPlugins()
		require.NoError(t, err)
		assert.Empty(t, plugins)

		rec, err := r.GetPlugin("calibre.koplugin")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("Upsert and get", func(t *testing.T) {
		err := r.UpsertPlugin("calibre.koplugin", models.InstallRecord{
			PluginName:       "calibre",
			InstalledVersion: "1.0.0",
			Owner:            "someone",
			Repo:             "calibre.koplugin",
			FullName:         "someone/calibre.koplugin",
			RepoRemoteID:     42,
			Branch:           "main",
			ManifestPath:     "_meta.lua",
			MatchedAt:        matched,
		})
		require.NoError(t, err)

		rec, err := r.GetPlugin("calibre.koplugin")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "someone/calibre.koplugin", rec.FullName)
		assert.True(t, rec.MatchedAt.Equal(matched))
		assert.True(t, rec.Matched())
	})

	t.Run("Upsert overwrites", func(t *testing.T) {
		require.NoError(t, r.UpsertPlugin("calibre.koplugin", models.InstallRecord{PluginName: "calibre", InstalledVersion: "2.0"}))
		rec, err := r.GetPlugin("calibre.koplugin")
		require.NoError(t, err)
		assert.Equal(t, "2.0", rec.InstalledVersion)
		assert.False(t, rec.Matched())
	})

	t.Run("Survives reopen", func(t *testing.T) {
		reopened := New(path)
		plugins, err := reopened.ListPlugins()
		require.NoError(t, err)
		assert.Len(t, plugins, 1)
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, r.RemovePlugin("calibre.koplugin"))
		require.NoError(t, r.RemovePlugin("never-existed.koplugin"))
		plugins, err := r.ListPlugins()
		require.NoError(t, err)
		assert.Empty(t, plugins)
	})

	t.Run("Rejects traversal keys", func(t *testing.T) {
		assert.Error(t, r.UpsertPlugin("../evil", models.InstallRecord{}))
	})
}

func TestRegistryNamespacesAreIndependent(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "registry.json"))

	require.NoError(t, r.UpsertPlugin("same", models.InstallRecord{PluginName: "plugin"}))
	require.NoError(t, r.UpsertPatch("same", models.PatchInstallRecord{Owner: "o", Repo: "r", Path: "same"}))
	require.NoError(t, r.UpsertPatch("2-other.lua", models.PatchInstallRecord{Owner: "o", Repo: "r", Path: "2-other.lua"}))

	require.NoError(t, r.Remove(models.KindPatch, "same"))

	plugin, err := r.GetPlugin("same")
	require.NoError(t, err)
	assert.NotNil(t, plugin, "removing a patch must not touch the plugin namespace")

	patch, err := r.GetPatch("same")
	require.NoError(t, err)
	assert.Nil(t, patch)

	keys, err := r.Keys(models.KindPatch)
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"2-other.lua"}, keys)

	patches, err := r.ListPatches()
	require.NoError(t, err)
	assert.True(t, patches["2-other.lua"].Matched())
}

func TestRegistryCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	r := New(path)

	_, err := r.ListPlugins()
	var decodeErr *apperr.DecodeError
	assert.True(t, errors.As(err, &decodeErr))

	// A failed load must not be overwritten by a write.
	assert.Error(t, r.UpsertPlugin("x.koplugin", models.InstallRecord{}))
	data, _ := os.ReadFile(path)
	assert.Equal(t, "{not json", string(data))
}
