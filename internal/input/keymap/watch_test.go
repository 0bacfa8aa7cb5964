package keymap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestWatcherReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bindings.json")
	store := NewFileStore(path)
	r, _ := NewRegistry()

	w, err := NewWatcher(store, r, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	reloads := 0
	w.OnReload(func(int) { reloads++ })

	// Missing file is not an error.
	if err := w.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	// Another process writes the file.
	external := []Binding{newTestBinding("ext", "Cmd+E")}
	data, _ := Encode(external)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := w.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if !Equal(r.Bindings(), external) {
		t.Errorf("registry = %+v, want %+v", r.Bindings(), external)
	}
	if reloads != 1 {
		t.Errorf("reloads = %d, want 1", reloads)
	}

	// Same content again is a no-op.
	w.Reload()
	if reloads != 1 {
		t.Errorf("reloads = %d after unchanged reload, want 1", reloads)
	}

	// Our own write is ignored even if the registry differs.
	own := []Binding{newTestBinding("own", "Cmd+O")}
	if err := store.Save(own); err != nil {
		t.Fatal(err)
	}
	w.Reload()
	if !Equal(r.Bindings(), external) {
		t.Error("own write should not be reloaded")
	}
}

func TestWatcherReloadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bindings.json")
	r, _ := NewRegistry(newTestBinding("keep", "K"))
	w, err := NewWatcher(NewFileStore(path), r, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	os.WriteFile(path, []byte("{bad"), 0o644)
	if err := w.Reload(); err == nil {
		t.Error("Reload() should fail on corrupt file")
	}
	if r.Len() != 1 {
		t.Error("registry changed after failed reload")
	}
}

func TestWatcherRunStopsOnCancel(t *testing.T) {
	r, _ := NewRegistry()
	w, err := NewWatcher(NewFileStore(filepath.Join(t.TempDir(), "b.json")), r, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx); err != context.Canceled {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}
