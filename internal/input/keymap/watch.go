package keymap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// reloadDelay coalesces the burst of events an atomic rename produces.
const reloadDelay = 100 * time.Millisecond

// Watcher reloads the registry when the bindings file is changed by
// another process. Writes made through the same FileStore are ignored.
type Watcher struct {
	store    *FileStore
	reg      *Registry
	log      zerolog.Logger
	fsw      *fsnotify.Watcher
	debounce func(func())
	onReload func(n int)
}

// NewWatcher watches the directory holding the store's file. The
// directory is created if it does not exist.
func NewWatcher(store *FileStore, reg *Registry, log zerolog.Logger) (*Watcher, error) {
	dir := filepath.Dir(store.Path())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	return &Watcher{
		store:    store,
		reg:      reg,
		log:      log.With().Str("component", "watcher").Logger(),
		fsw:      fsw,
		debounce: debounce.New(reloadDelay),
	}, nil
}

// OnReload sets a callback invoked after an external change is applied.
// Must be called before Run.
func (w *Watcher) OnReload(fn func(n int)) {
	w.onReload = fn
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	target := filepath.Clean(w.store.Path())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.debounce(func() {
				if err := w.Reload(); err != nil {
					w.log.Warn().Err(err).Msg("reload bindings")
				}
			})

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

// Reload reads the file and replaces the registry contents when they
// differ from what is loaded.
func (w *Watcher) Reload() error {
	data, err := os.ReadFile(w.store.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if w.store.IsOwnWrite(data) {
		return nil
	}

	loaded, err := Decode(data)
	if err != nil {
		return err
	}
	if Equal(loaded, w.reg.Bindings()) {
		return nil
	}
	if err := w.reg.Replace(loaded); err != nil {
		return err
	}

	w.log.Info().Int("bindings", len(loaded)).Msg("bindings reloaded from disk")
	if w.onReload != nil {
		w.onReload(len(loaded))
	}
	return nil
}

// Close stops the underlying file watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Equal reports whether two binding lists have the same IDs, names,
// steps and actions in the same order.
func Equal(a, b []Binding) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Name != b[i].Name || a[i].Action != b[i].Action {
			return false
		}
		if !a[i].Steps.Equal(b[i].Steps) {
			return false
		}
	}
	return true
}
