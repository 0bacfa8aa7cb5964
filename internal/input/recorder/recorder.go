// Package recorder captures a keystroke sequence for a new binding.
//
// While recording, the recorder consumes every key event so the chord
// engine never sees them. An unmodified Escape cancels and discards the
// recording; Stop keeps the steps for the caller.
package recorder

import (
	"sync"

	"github.com/dshills/chordinate/internal/input/key"
)

// Update describes a recorder state change.
type Update struct {
	Recording bool
	Steps     key.Sequence

	// Canceled is set when the recording ended through Cancel or Escape.
	Canceled bool
}

// Recorder records keystrokes while active.
type Recorder struct {
	mu        sync.Mutex
	recording bool
	steps     key.Sequence
	listeners []func(Update)
}

// New creates an idle recorder.
func New() *Recorder {
	return &Recorder{}
}

// OnUpdate registers fn to be called after every state change.
func (r *Recorder) OnUpdate(fn func(Update)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Start begins a new recording, discarding previous steps.
// Does nothing if already recording.
func (r *Recorder) Start() {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return
	}
	r.recording = true
	r.steps = nil
	u := r.updateLocked(false)
	r.mu.Unlock()

	r.emit(u)
}

// Stop ends the recording and returns the captured steps. The steps stay
// available through Steps. Does nothing if not recording.
func (r *Recorder) Stop() key.Sequence {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil
	}
	r.recording = false
	u := r.updateLocked(false)
	r.mu.Unlock()

	r.emit(u)
	return u.Steps
}

// Cancel ends the recording and discards the steps.
// Does nothing if not recording.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return
	}
	r.recording = false
	r.steps = nil
	u := r.updateLocked(true)
	r.mu.Unlock()

	r.emit(u)
}

// IsRecording returns true if currently recording.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Steps returns a copy of the recorded steps.
func (r *Recorder) Steps() key.Sequence {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.steps.Clone()
}

// Intercept offers a raw event to the recorder. It returns true when the
// event was consumed, which is always the case while recording.
// Auto-repeat and unrepresentable events are swallowed without effect.
func (r *Recorder) Intercept(ev key.RawEvent) bool {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return false
	}

	k, ok := key.Normalize(ev)
	if !ok {
		r.mu.Unlock()
		return true
	}

	var u Update
	if k.IsEscape() {
		r.recording = false
		r.steps = nil
		u = r.updateLocked(true)
	} else {
		r.steps = append(r.steps, k)
		u = r.updateLocked(false)
	}
	r.mu.Unlock()

	r.emit(u)
	return true
}

func (r *Recorder) updateLocked(canceled bool) Update {
	return Update{
		Recording: r.recording,
		Steps:     r.steps.Clone(),
		Canceled:  canceled,
	}
}

func (r *Recorder) emit(u Update) {
	r.mu.Lock()
	listeners := make([]func(Update), len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(u)
	}
}
