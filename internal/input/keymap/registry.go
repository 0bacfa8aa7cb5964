package keymap

import (
	"fmt"
	"slices"
	"sync"

	"github.com/dshills/chordinate/internal/input/key"
	"github.com/google/uuid"
)

// Registry holds the ordered list of bindings.
//
// The list is copy-on-write: every mutation builds a new slice and
// publishes it whole, so a snapshot handed out is never modified. Order is
// significant; when several bindings match, the earliest wins.
type Registry struct {
	mu       sync.RWMutex
	bindings []Binding
	maxLen   int

	// notifyMu orders change notifications the same as mutations.
	notifyMu sync.Mutex

	subMu   sync.Mutex
	subs    map[uint64]func([]Binding)
	nextSub uint64
}

// Subscription is a handle returned by OnChange.
type Subscription struct {
	r    *Registry
	id   uint64
	once sync.Once
}

// Cancel stops further notifications. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.r.subMu.Lock()
		delete(s.r.subs, s.id)
		s.r.subMu.Unlock()
	})
}

// NewRegistry creates a registry holding the given bindings.
func NewRegistry(bindings ...Binding) (*Registry, error) {
	r := &Registry{
		subs: make(map[uint64]func([]Binding)),
	}
	if len(bindings) > 0 {
		next, err := prepare(bindings)
		if err != nil {
			return nil, err
		}
		r.bindings = next
		r.maxLen = maxSteps(next)
	}
	return r, nil
}

// Bindings returns a copy of the current bindings in order.
func (r *Registry) Bindings() []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Binding, len(r.bindings))
	for i, b := range r.bindings {
		out[i] = b.Clone()
	}
	return out
}

// Len returns the number of bindings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}

// MaxSequenceLength returns the longest step count of any binding, or 0
// when there are none.
func (r *Registry) MaxSequenceLength() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxLen
}

// Get returns the binding with the given ID.
func (r *Registry) Get(id uuid.UUID) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := indexOf(r.bindings, id); i >= 0 {
		return r.bindings[i].Clone(), true
	}
	return Binding{}, false
}

// Add appends a binding. A binding with no ID is assigned one.
// Returns the stored binding.
func (r *Registry) Add(b Binding) (Binding, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b = b.Clone()
	if err := b.Validate(); err != nil {
		return Binding{}, err
	}

	err := r.mutate(func(cur []Binding) ([]Binding, error) {
		if indexOf(cur, b.ID) >= 0 {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, b.ID)
		}
		next := make([]Binding, len(cur), len(cur)+1)
		copy(next, cur)
		return append(next, b), nil
	})
	if err != nil {
		return Binding{}, err
	}
	return b, nil
}

// Update replaces the binding with the same ID, keeping its position.
func (r *Registry) Update(b Binding) error {
	b = b.Clone()
	if err := b.Validate(); err != nil {
		return err
	}

	return r.mutate(func(cur []Binding) ([]Binding, error) {
		i := indexOf(cur, b.ID)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, b.ID)
		}
		next := make([]Binding, len(cur))
		copy(next, cur)
		next[i] = b
		return next, nil
	})
}

// Remove deletes the binding with the given ID.
func (r *Registry) Remove(id uuid.UUID) error {
	return r.mutate(func(cur []Binding) ([]Binding, error) {
		i := indexOf(cur, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		next := make([]Binding, 0, len(cur)-1)
		next = append(next, cur[:i]...)
		return append(next, cur[i+1:]...), nil
	})
}

// Replace swaps the whole list. Bindings without an ID are assigned one.
func (r *Registry) Replace(bindings []Binding) error {
	next, err := prepare(bindings)
	if err != nil {
		return err
	}
	return r.mutate(func([]Binding) ([]Binding, error) {
		return next, nil
	})
}

// OnChange registers fn to receive every new snapshot. Notifications are
// delivered synchronously, in mutation order, on the mutating goroutine.
// fn must not mutate the registry or the slice it receives.
func (r *Registry) OnChange(fn func([]Binding)) *Subscription {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	r.nextSub++
	id := r.nextSub
	r.subs[id] = fn
	return &Subscription{r: r, id: id}
}

// Lookup returns the first binding, in registry order, whose steps match
// the tail of window.
func (r *Registry) Lookup(window key.Sequence) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return FirstMatch(r.bindings, window)
}

// FirstMatch returns the first binding whose full steps equal the trailing
// steps of window.
func FirstMatch(bindings []Binding, window key.Sequence) (Binding, bool) {
	for _, b := range bindings {
		if b.MatchesTail(window) {
			return b, true
		}
	}
	return Binding{}, false
}

// mutate applies fn to the current list and publishes the result.
func (r *Registry) mutate(fn func(cur []Binding) ([]Binding, error)) error {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	next, err := fn(r.bindings)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.bindings = next
	r.maxLen = maxSteps(next)
	r.mu.Unlock()

	r.notify(next)
	return nil
}

func (r *Registry) notify(snapshot []Binding) {
	r.subMu.Lock()
	ids := make([]uint64, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	fns := make([]func([]Binding), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, r.subs[id])
	}
	r.subMu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

// prepare validates a full list and assigns missing IDs.
func prepare(bindings []Binding) ([]Binding, error) {
	next := make([]Binding, len(bindings))
	seen := make(map[uuid.UUID]struct{}, len(bindings))
	for i, b := range bindings {
		if b.ID == uuid.Nil {
			b.ID = uuid.New()
		}
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("binding %d: %w", i, err)
		}
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, b.ID)
		}
		seen[b.ID] = struct{}{}
		next[i] = b.Clone()
	}
	return next, nil
}

func indexOf(bindings []Binding, id uuid.UUID) int {
	for i, b := range bindings {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func maxSteps(bindings []Binding) int {
	n := 0
	for _, b := range bindings {
		if len(b.Steps) > n {
			n = len(b.Steps)
		}
	}
	return n
}
