// Package watcher invalidates cached update checks when installed
// artifacts change on disk.
package watcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/juanfuturochile/appstore.koplugin/internal/catalog"
	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

// DefaultDebounce is how long the watcher waits after the last change
// before invalidating.
const DefaultDebounce = 2 * time.Second

// Invalidator drops the cached verdict of one artifact.
type Invalidator interface {
	Invalidate(kind models.Kind, key string) error
}

type artifact struct {
	kind models.Kind
	key  string
}

// Service watches the plugin and patch install directories.
type Service struct {
	pluginsDir    string
	patchesDir    string
	inv           Invalidator
	watcher       *fsnotify.Watcher
	changed       map[artifact]bool
	mu            sync.Mutex
	debounceTimer *time.Timer
	debounceDelay time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// New creates a watcher service. A non-positive delay uses DefaultDebounce.
func New(pluginsDir, patchesDir string, inv Invalidator, delay time.Duration) *Service {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Service{
		pluginsDir:    filepath.Clean(pluginsDir),
		patchesDir:    filepath.Clean(patchesDir),
		inv:           inv,
		changed:       make(map[artifact]bool),
		debounceDelay: delay,
		stopChan:      make(chan struct{}),
	}
}

// Start begins watching. An install directory that does not exist yet is
// skipped.
func (w *Service) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	// Plugins are directory trees; watch every level.
	if err := w.addTree(w.pluginsDir); err != nil {
		watcher.Close()
		return err
	}
	// Patches are flat files in one directory.
	if _, err := os.Stat(w.patchesDir); err == nil {
		if err := watcher.Add(w.patchesDir); err != nil {
			watcher.Close()
			return err
		}
	} else {
		log.Warn().Str("path", w.patchesDir).Msg("Install directory missing, not watching it")
	}

	log.Info().Str("plugins", w.pluginsDir).Str("patches", w.patchesDir).Msg("File watcher started")
	go w.processEvents()
	return nil
}

func (w *Service) addTree(root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		// Only watch directories (files are watched via their parent directory)
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", root).Msg("Install directory missing, not watching it")
		return nil
	}
	return err
}

// Stop stops the file watcher service.
func (w *Service) Stop() error {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *Service) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("File watcher error")

		case <-w.stopChan:
			return
		}
	}
}

func (w *Service) handleEvent(event fsnotify.Event) {
	// Chmod fires on reads and attribute changes; content did not change.
	if event.Op == fsnotify.Chmod {
		return
	}

	// New plugin subdirectories need their own watch.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && w.under(w.pluginsDir, event.Name) {
			if err := w.addTree(event.Name); err != nil {
				log.Warn().Err(err).Str("path", event.Name).Msg("Failed to watch new directory")
			}
		}
	}

	a, ok := w.classify(event.Name)
	if !ok {
		return
	}
	w.mark(a)
}

func (w *Service) under(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}

// classify maps a changed path to the installed artifact it belongs to.
func (w *Service) classify(path string) (artifact, bool) {
	path = filepath.Clean(path)
	if w.under(w.pluginsDir, path) {
		rel, _ := filepath.Rel(w.pluginsDir, path)
		key := strings.Split(rel, string(filepath.Separator))[0]
		if strings.HasPrefix(key, ".") {
			return artifact{}, false
		}
		return artifact{kind: models.KindPlugin, key: key}, true
	}
	if filepath.Dir(path) == w.patchesDir {
		key := filepath.Base(path)
		if strings.HasPrefix(key, ".") || !catalog.IsPatchFile(key) {
			return artifact{}, false
		}
		return artifact{kind: models.KindPatch, key: key}, true
	}
	return artifact{}, false
}

func (w *Service) mark(a artifact) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.changed[a] = true
	// Reset debounce timer
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.flush)
}

// flush invalidates every artifact changed since the last flush.
func (w *Service) flush() {
	w.mu.Lock()
	if len(w.changed) == 0 {
		w.mu.Unlock()
		return
	}
	changed := w.changed
	w.changed = make(map[artifact]bool)
	w.mu.Unlock()

	log.Info().Int("artifacts", len(changed)).Msg("Installed artifacts changed, invalidating update checks")
	for a := range changed {
		if err := w.inv.Invalidate(a.kind, a.key); err != nil {
			log.Warn().Err(err).Str("kind", string(a.kind)).Str("key", a.key).Msg("Failed to invalidate update check")
		}
	}
}
