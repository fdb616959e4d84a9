// Package reconcile decides, for each installed plugin and patch, whether
// the upstream repository it was matched with has something newer.
package reconcile

import (
	"path/filepath"
	"time"

	"github.com/juanfuturochile/appstore.koplugin/internal/metrics"
	"github.com/juanfuturochile/appstore.koplugin/internal/models"
	"github.com/juanfuturochile/appstore.koplugin/internal/registry"
	"github.com/juanfuturochile/appstore.koplugin/internal/remote"
	"github.com/juanfuturochile/appstore.koplugin/internal/store"
)

// Reasons attached to verdicts.
const (
	ReasonNotMatched      = "no upstream repository recorded"
	ReasonArtifactMissing = "local artifact missing"
	ReasonFileNotUpstream = "file not found upstream"
	ReasonNoRemoteDigest  = "remote digest unavailable"
	ReasonNoLocalDigest   = "local digest unavailable"
	ReasonPushedLater     = "remote pushed after local files"
	ReasonNewerVersion    = "newer version available"
	ReasonContentDiffers  = "content differs"
)

// Options configures an Engine.
type Options struct {
	PluginsDir string
	PatchesDir string
	Metrics    *metrics.Metrics
}

// Engine reconciles installed artifacts against the remote. It is meant
// to be driven by one caller at a time.
type Engine struct {
	store      *store.Store
	registry   *registry.Registry
	remote     remote.Remote
	pluginsDir string
	patchesDir string
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewEngine wires an engine to its collaborators.
func NewEngine(st *store.Store, reg *registry.Registry, rm remote.Remote, opts Options) *Engine {
	return &Engine{
		store:      st,
		registry:   reg,
		remote:     rm,
		pluginsDir: opts.PluginsDir,
		patchesDir: opts.PatchesDir,
		metrics:    opts.Metrics,
		now:        time.Now,
	}
}

// SetClock replaces the time source used for verdict and match stamps.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// PluginsDir is the directory holding installed plugins.
func (e *Engine) PluginsDir() string {
	return e.pluginsDir
}

// PatchesDir is the directory holding installed patches.
func (e *Engine) PatchesDir() string {
	return e.patchesDir
}

// ArtifactPath returns where the artifact key of kind lives on disk.
func (e *Engine) ArtifactPath(kind models.Kind, key string) string {
	if kind == models.KindPatch {
		return filepath.Join(e.patchesDir, key)
	}
	return filepath.Join(e.pluginsDir, key)
}

func (e *Engine) verdict(kind models.Kind, key string, state models.VerdictState, reason string) models.Verdict {
	return models.Verdict{
		Kind:        kind,
		Key:         key,
		State:       state,
		Reason:      reason,
		LastChecked: e.now(),
	}
}

func (e *Engine) failed(kind models.Kind, key string, reason string, err error) models.Verdict {
	v := e.verdict(kind, key, models.StateCheckFailed, reason)
	v.Err = err
	if err != nil {
		v.Error = err.Error()
	}
	return v
}

func orphaned(v models.Verdict) models.Verdict {
	v.Orphaned = true
	return v
}

// LastChecks returns the cached verdict of every checked artifact of kind.
func (e *Engine) LastChecks(kind models.Kind) (map[string]models.Verdict, error) {
	return e.store.ListChecks(kind)
}

// Invalidate forgets the cached verdict of one artifact, typically because
// its local files changed.
func (e *Engine) Invalidate(kind models.Kind, key string) error {
	return e.store.DeleteCheck(kind, key)
}
