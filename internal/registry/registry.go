// Package registry persists which installed artifacts were matched to
// which upstream repositories. Plugin directories and patch filenames live
// in two namespaces of one JSON document that is rewritten whole on every
// change.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/juanfuturochile/appstore.koplugin/internal/apperr"
	"github.com/juanfuturochile/appstore.koplugin/internal/models"
	"github.com/juanfuturochile/appstore.koplugin/internal/util"
)

type document struct {
	Plugins map[string]models.InstallRecord      `json:"plugins"`
	Patches map[string]models.PatchInstallRecord `json:"patches"`
}

func emptyDocument() *document {
	return &document{
		Plugins: make(map[string]models.InstallRecord),
		Patches: make(map[string]models.PatchInstallRecord),
	}
}

// Registry is the install registry backed by a single file.
type Registry struct {
	path string
	mu   sync.Mutex
}

// New returns a registry stored at path. The file is created on first write.
func New(path string) *Registry {
	return &Registry{path: path}
}

func (r *Registry) load() (*document, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return emptyDocument(), nil
		}
		return nil, &apperr.IOError{Path: r.path, Inner: err}
	}

	doc := emptyDocument()
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, &apperr.DecodeError{What: "registry " + r.path, Inner: err}
	}
	if doc.Plugins == nil {
		doc.Plugins = make(map[string]models.InstallRecord)
	}
	if doc.Patches == nil {
		doc.Patches = make(map[string]models.PatchInstallRecord)
	}
	return doc, nil
}

func (r *Registry) save(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := util.WriteFileAtomic(r.path, data); err != nil {
		return &apperr.IOError{Path: r.path, Inner: err}
	}
	return nil
}

// read loads the document under the lock.
func (r *Registry) read() (*document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// update loads the document, applies fn and writes it back. Nothing is
// written if fn fails.
func (r *Registry) update(fn func(doc *document) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return r.save(doc)
}

// UpsertPlugin stores rec under the plugin directory name key.
func (r *Registry) UpsertPlugin(key string, rec models.InstallRecord) error {
	if err := util.ValidateArtifactKey(key); err != nil {
		return err
	}
	return r.update(func(doc *document) error {
		doc.Plugins[key] = rec
		return nil
	})
}

// GetPlugin returns the record for a plugin directory, or nil if none exists.
func (r *Registry) GetPlugin(key string) (*models.InstallRecord, error) {
	doc, err := r.read()
	if err != nil {
		return nil, err
	}
	rec, ok := doc.Plugins[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// RemovePlugin deletes the record for a plugin directory. Removing a
// missing key is not an error.
func (r *Registry) RemovePlugin(key string) error {
	return r.update(func(doc *document) error {
		delete(doc.Plugins, key)
		return nil
	})
}

// ListPlugins returns every plugin record keyed by directory name.
func (r *Registry) ListPlugins() (map[string]models.InstallRecord, error) {
	doc, err := r.read()
	if err != nil {
		return nil, err
	}
	return doc.Plugins, nil
}

// UpsertPatch stores rec under the patch filename key.
func (r *Registry) UpsertPatch(key string, rec models.PatchInstallRecord) error {
	if err := util.ValidateArtifactKey(key); err != nil {
		return err
	}
	return r.update(func(doc *document) error {
		doc.Patches[key] = rec
		return nil
	})
}

// GetPatch returns the record for a patch file, or nil if none exists.
func (r *Registry) GetPatch(key string) (*models.PatchInstallRecord, error) {
	doc, err := r.read()
	if err != nil {
		return nil, err
	}
	rec, ok := doc.Patches[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// RemovePatch deletes the record for a patch file.
func (r *Registry) RemovePatch(key string) error {
	return r.update(func(doc *document) error {
		delete(doc.Patches, key)
		return nil
	})
}

// ListPatches returns every patch record keyed by filename.
func (r *Registry) ListPatches() (map[string]models.PatchInstallRecord, error) {
	doc, err := r.read()
	if err != nil {
		return nil, err
	}
	return doc.Patches, nil
}

// Keys returns the registered keys of kind in no particular order.
func (r *Registry) Keys(kind models.Kind) ([]string, error) {
	doc, err := r.read()
	if err != nil {
		return nil, err
	}
	var keys []string
	switch kind {
	case models.KindPlugin:
		for k := range doc.Plugins {
			keys = append(keys, k)
		}
	case models.KindPatch:
		for k := range doc.Patches {
			keys = append(keys, k)
		}
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
	return keys, nil
}

// Remove deletes key from the namespace of kind.
func (r *Registry) Remove(kind models.Kind, key string) error {
	switch kind {
	case models.KindPlugin:
		return r.RemovePlugin(key)
	case models.KindPatch:
		return r.RemovePatch(key)
	}
	return fmt.Errorf("unknown kind %q", kind)
}
