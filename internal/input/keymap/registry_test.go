package keymap

import (
	"errors"
	"sync"
	"testing"

	"github.com/dshills/chordinate/internal/input/key"
	"github.com/google/uuid"
)

func newTestBinding(name, keys string) Binding {
	var steps key.Sequence
	if keys != "" {
		steps = key.MustParseSequence(keys)
	}
	return NewBinding(name, steps, ShellCommand("echo "+name))
}

func TestRegistryAddGetRemove(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	b, err := r.Add(newTestBinding("a", "Cmd+K"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if got, ok := r.Get(b.ID); !ok || got.Name != "a" {
		t.Errorf("Get() = %+v, %v", got, ok)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	if _, err := r.Add(b); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Add(duplicate) error = %v, want ErrDuplicateID", err)
	}

	if err := r.Remove(b.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := r.Remove(b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Remove(missing) error = %v, want ErrNotFound", err)
	}
	if _, ok := r.Get(b.ID); ok {
		t.Error("binding still present after Remove")
	}
}

func TestRegistryAddAssignsID(t *testing.T) {
	r, _ := NewRegistry()
	b := newTestBinding("a", "A")
	b.ID = uuid.Nil

	stored, err := r.Add(b)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if stored.ID == uuid.Nil {
		t.Error("Add should assign an ID")
	}
}

func TestRegistryAddRejectsInvalid(t *testing.T) {
	r, _ := NewRegistry()
	var ve *ValidationError
	if _, err := r.Add(newTestBinding("", "A")); !errors.As(err, &ve) {
		t.Errorf("Add(blank name) error = %v, want ValidationError", err)
	}
	if r.Len() != 0 {
		t.Error("invalid binding was stored")
	}
}

func TestRegistryUpdateKeepsPosition(t *testing.T) {
	a := newTestBinding("a", "A")
	b := newTestBinding("b", "B")
	c := newTestBinding("c", "C")
	r, err := NewRegistry(a, b, c)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	if err := r.Update(b.WithName("bee").WithSteps(key.MustParseSequence("B B B"))); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got := r.Bindings()
	if got[1].Name != "bee" {
		t.Errorf("bindings[1].Name = %q, want bee", got[1].Name)
	}
	if r.MaxSequenceLength() != 3 {
		t.Errorf("MaxSequenceLength() = %d, want 3", r.MaxSequenceLength())
	}

	if err := r.Update(newTestBinding("x", "X")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRegistryReplace(t *testing.T) {
	r, _ := NewRegistry(newTestBinding("a", "A"))

	dup := newTestBinding("b", "B")
	if err := r.Replace([]Binding{dup, dup}); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Replace(duplicates) error = %v, want ErrDuplicateID", err)
	}
	if r.Len() != 1 {
		t.Error("failed Replace must not change contents")
	}

	if err := r.Replace(nil); err != nil {
		t.Fatalf("Replace(nil) error = %v", err)
	}
	if r.Len() != 0 || r.MaxSequenceLength() != 0 {
		t.Errorf("after Replace(nil): Len=%d Max=%d", r.Len(), r.MaxSequenceLength())
	}
}

func TestRegistrySnapshotIsolation(t *testing.T) {
	r, _ := NewRegistry(newTestBinding("a", "A B"))

	snap := r.Bindings()
	snap[0].Name = "mutated"
	snap[0].Steps[0] = key.NewKeystroke("Z", key.ModNone)

	got := r.Bindings()
	if got[0].Name != "a" {
		t.Error("Bindings() snapshot aliases registry state")
	}
	if got[0].Steps[0].Key != "A" {
		t.Error("stored steps were modified through a snapshot")
	}
}

func TestRegistryOnChange(t *testing.T) {
	r, _ := NewRegistry()

	var (
		mu    sync.Mutex
		sizes []int
	)
	sub := r.OnChange(func(bs []Binding) {
		mu.Lock()
		sizes = append(sizes, len(bs))
		mu.Unlock()
	})

	a, _ := r.Add(newTestBinding("a", "A"))
	r.Add(newTestBinding("b", "B"))
	r.Remove(a.ID)
	r.Remove(a.ID) // fails, no notification

	sub.Cancel()
	sub.Cancel()
	r.Add(newTestBinding("c", "C"))

	mu.Lock()
	defer mu.Unlock()
	want := []int{1, 2, 1}
	if len(sizes) != len(want) {
		t.Fatalf("notifications = %v, want %v", sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("notification %d = %d, want %d", i, sizes[i], want[i])
		}
	}
}

func TestRegistryMaxSequenceLength(t *testing.T) {
	r, _ := NewRegistry()
	if r.MaxSequenceLength() != 0 {
		t.Errorf("empty registry max = %d, want 0", r.MaxSequenceLength())
	}

	r.Add(newTestBinding("one", "A"))
	long, _ := r.Add(newTestBinding("three", "A B C"))
	r.Add(newTestBinding("empty", ""))
	if r.MaxSequenceLength() != 3 {
		t.Errorf("max = %d, want 3", r.MaxSequenceLength())
	}

	r.Remove(long.ID)
	if r.MaxSequenceLength() != 1 {
		t.Errorf("max after remove = %d, want 1", r.MaxSequenceLength())
	}
}

func TestRegistryLookupFirstMatchWins(t *testing.T) {
	short := newTestBinding("short", "A")
	long := newTestBinding("long", "A B")
	r, _ := NewRegistry(short, long)

	if b, ok := r.Lookup(key.MustParseSequence("A")); !ok || b.ID != short.ID {
		t.Errorf("Lookup(A) = %v, %v; want short", b.Name, ok)
	}
	// [A B] ends with B; only "long" matches its tail.
	if b, ok := r.Lookup(key.MustParseSequence("A B")); !ok || b.ID != long.ID {
		t.Errorf("Lookup(A B) = %v, %v; want long", b.Name, ok)
	}
	if _, ok := r.Lookup(key.MustParseSequence("C")); ok {
		t.Error("Lookup(C) should not match")
	}
}

func TestFirstMatchRegistryOrder(t *testing.T) {
	first := newTestBinding("first", "B")
	second := newTestBinding("second", "A B")
	b, ok := FirstMatch([]Binding{first, second}, key.MustParseSequence("A B"))
	if !ok || b.ID != first.ID {
		t.Errorf("FirstMatch = %v, want first", b.Name)
	}
}
