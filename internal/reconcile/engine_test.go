package reconcile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/juanfuturochile/appstore.koplugin/internal/apperr"
	"github.com/juanfuturochile/appstore.koplugin/internal/registry"
	"github.com/juanfuturochile/appstore.koplugin/internal/remote"
	"github.com/juanfuturochile/appstore.koplugin/internal/store"
	"github.com/juanfuturochile/appstore.koplugin/internal/testutil"
)

var (
	t0       = time.Unix(1700000000, 0)
	checkNow = time.Unix(1800000000, 0)
)

type fixture struct {
	engine     *Engine
	store      *store.Store
	registry   *registry.Registry
	remote     *remote.MockRemote
	pluginsDir string
	patchesDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		store:      store.New(testutil.SetupTestDB(t)),
		registry:   registry.New(filepath.Join(root, "registry.json")),
		remote:     new(remote.MockRemote),
		pluginsDir: filepath.Join(root, "plugins"),
		patchesDir: filepath.Join(root, "patches"),
	}
	require.NoError(t, os.MkdirAll(f.pluginsDir, 0755))
	require.NoError(t, os.MkdirAll(f.patchesDir, 0755))
	f.engine = NewEngine(f.store, f.registry, f.remote, Options{PluginsDir: f.pluginsDir, PatchesDir: f.patchesDir})
	f.engine.SetClock(func() time.Time { return checkNow })
	return f
}

// installPlugin creates a plugin directory whose files all carry mtime.
func (f *fixture) installPlugin(t *testing.T, key, version string, mtime time.Time) string {
	t.Helper()
	dir := filepath.Join(f.pluginsDir, key)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0755))
	files := map[string]string{
		ManifestFile:                     `return { name = "` + key + `", version = "` + version + `" }`,
		"main.lua":                       "return {}",
		filepath.Join("lib", "util.lua"): "return {}",
	}
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		require.NoError(t, os.Chtimes(p, mtime, mtime))
	}
	return dir
}

func (f *fixture) installPatch(t *testing.T, key, content string) string {
	t.Helper()
	p := filepath.Join(f.patchesDir, key)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func notFound(what string) error {
	return &apperr.NotFoundError{Resource: what}
}

// allOtherRawFilesMissing answers every raw file request not matched by an
// earlier expectation with not-found.
func (f *fixture) allOtherRawFilesMissing() {
	f.remote.On("FetchRawFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, notFound("file"))
}

func chtimes(path string, t time.Time) error {
	return os.Chtimes(path, t, t)
}
