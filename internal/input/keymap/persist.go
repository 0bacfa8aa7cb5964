package keymap

import (
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/rs/zerolog"
)

// DefaultSaveDelay is how long the persister waits for edits to settle.
const DefaultSaveDelay = 400 * time.Millisecond

// Saver writes a full binding list.
type Saver interface {
	Save(bindings []Binding) error
}

// Persister saves registry snapshots after changes have settled.
type Persister struct {
	saver    Saver
	log      zerolog.Logger
	debounce func(func())
	sub      *Subscription

	// saveMu keeps writes in snapshot order.
	saveMu sync.Mutex

	mu      sync.Mutex
	pending []Binding
	dirty   bool
	onError func(error)
}

// NewPersister subscribes to reg and saves through saver once no change
// has arrived for delay. A zero delay uses DefaultSaveDelay.
func NewPersister(reg *Registry, saver Saver, delay time.Duration, log zerolog.Logger) *Persister {
	if delay <= 0 {
		delay = DefaultSaveDelay
	}
	p := &Persister{
		saver:    saver,
		log:      log.With().Str("component", "persister").Logger(),
		debounce: debounce.New(delay),
	}
	p.sub = reg.OnChange(p.changed)
	return p
}

// OnError sets a callback for failed saves.
func (p *Persister) OnError(fn func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onError = fn
}

func (p *Persister) changed(snapshot []Binding) {
	p.mu.Lock()
	p.pending = snapshot
	p.dirty = true
	p.mu.Unlock()

	p.debounce(func() {
		_ = p.Flush()
	})
}

// Flush writes any pending snapshot immediately.
func (p *Persister) Flush() error {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return nil
	}
	snapshot := p.pending
	p.dirty = false
	onError := p.onError
	p.mu.Unlock()

	if err := p.saver.Save(snapshot); err != nil {
		p.log.Error().Err(err).Msg("save bindings")
		if onError != nil {
			onError(err)
		}
		return err
	}
	p.log.Debug().Int("bindings", len(snapshot)).Msg("bindings saved")
	return nil
}

// Close stops listening for changes and writes anything pending.
func (p *Persister) Close() error {
	p.sub.Cancel()
	return p.Flush()
}
