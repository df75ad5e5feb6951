package plugin

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/tannerhall/godeck/pkg/deck"
)

// Registry is a live index of installed descriptor files, keyed by USB
// identifiers. Safe for concurrent use.
type Registry struct {
	log *slog.Logger

	mu     sync.RWMutex
	byID   map[deck.DeviceID]*deck.Descriptor
	byPath map[string]deck.DeviceID
}

// NewRegistry returns an empty registry. A nil logger falls back to
// slog.Default.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:    log,
		byID:   make(map[deck.DeviceID]*deck.Descriptor),
		byPath: make(map[string]deck.DeviceID),
	}
}

// LoadDir loads every .toml file in dir. Files that fail to load are
// skipped with a warning; a missing directory is an error.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !isDescriptorFile(entry.Name()) {
			continue
		}
		r.add(filepath.Join(dir, entry.Name()))
	}
	return nil
}

// Lookup returns the descriptor registered for the given USB identifiers.
func (r *Registry) Lookup(vendorID, productID uint16) (*deck.Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.byID[deck.DeviceID{VendorID: vendorID, ProductID: productID}]
	return desc, ok
}

// IDs returns the identifiers of every registered model, in no particular
// order. The result is ready to pass to Manager.Discover.
func (r *Registry) IDs() []deck.DeviceID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]deck.DeviceID, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, id)
	}
	return out
}

// Watch keeps the registry in sync with dir until ctx is cancelled.
// Descriptor files created or rewritten are (re)loaded, removed files are
// dropped from the index.
func (r *Registry) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isDescriptorFile(ev.Name) {
					continue
				}
				switch {
				case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
					r.add(ev.Name)
				case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
					r.remove(ev.Name)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.log.Warn("descriptor watch failed", slog.Any("error", err))
			}
		}
	}()
	return nil
}

func (r *Registry) add(path string) {
	desc, err := Load(path)
	if err != nil {
		r.log.Warn("skipping descriptor file",
			slog.String("path", path), slog.Any("error", err))
		return
	}
	id := deck.DeviceID{VendorID: desc.VendorID, ProductID: desc.ProductID}

	r.mu.Lock()
	r.byID[id] = desc
	r.byPath[path] = id
	r.mu.Unlock()

	r.log.Info("descriptor registered",
		slog.String("model", desc.Name), slog.String("path", path))
}

func (r *Registry) remove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPath[path]
	if !ok {
		return
	}
	delete(r.byPath, path)
	delete(r.byID, id)
}

func isDescriptorFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".toml")
}
