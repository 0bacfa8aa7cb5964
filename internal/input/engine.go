package input

import (
	"fmt"
	"sync"
	"time"

	"github.com/dshills/chordinate/internal/input/key"
	"github.com/dshills/chordinate/internal/input/keymap"
	"github.com/rs/zerolog"
)

// DefaultTimeout is the inactivity gap after which the window is cleared.
const DefaultTimeout = 1250 * time.Millisecond

// BindingSource provides binding snapshots and change notifications.
type BindingSource interface {
	Bindings() []keymap.Binding
	OnChange(fn func([]keymap.Binding)) *keymap.Subscription
}

// Dispatcher receives the action of a triggered binding. Dispatch must
// not block; execution happens elsewhere.
type Dispatcher interface {
	Dispatch(action keymap.Action)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(action keymap.Action)

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(action keymap.Action) {
	f(action)
}

// Options configures an Engine.
type Options struct {
	// Timeout is the inactivity gap that clears the window.
	// Default: 1250ms
	Timeout time.Duration

	// DetectionEnabled is the initial detection state.
	// Default: true
	DetectionEnabled bool

	// Clock returns the current time. Default: time.Now
	Clock func() time.Time

	// Logger receives engine logs. Default: disabled.
	Logger zerolog.Logger

	// Metrics collects counters. Default: a fresh tracker.
	Metrics *Metrics

	// Dispatcher receives triggered actions. May be nil.
	Dispatcher Dispatcher
}

// Option configures Options.
type Option func(*Options)

// WithTimeout sets the inactivity timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Clock = now }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *Options) { o.Logger = log }
}

// WithMetrics sets the metrics tracker.
func WithMetrics(m *Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithDispatcher sets the action dispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(o *Options) { o.Dispatcher = d }
}

// WithDetectionEnabled sets the initial detection state.
func WithDetectionEnabled(enabled bool) Option {
	return func(o *Options) { o.DetectionEnabled = enabled }
}

// DefaultOptions returns the default engine options.
func DefaultOptions() Options {
	return Options{
		Timeout:          DefaultTimeout,
		DetectionEnabled: true,
		Clock:            time.Now,
		Logger:           zerolog.Nop(),
	}
}

// Engine matches a live keystroke stream against the current bindings.
//
// Each keystroke runs the timeout check, append, trim, match and clear
// steps as one unit. Trigger observers are called after the window has
// been cleared, in keystroke order, and before the action is dispatched.
// Observers must not call Feed or HandleKeystroke.
type Engine struct {
	// feedMu serializes whole keystrokes so observers see them in order.
	feedMu sync.Mutex

	mu            sync.Mutex
	bindings      []keymap.Binding
	maxLen        int
	window        key.Sequence
	lastEvent     time.Time
	enabled       bool
	lastTriggered *keymap.Binding
	// notified is set once OnChange has delivered a snapshot.
	notified bool

	timeout    time.Duration
	clock      func() time.Time
	log        zerolog.Logger
	metrics    *Metrics
	dispatcher Dispatcher

	interceptors interceptorChain
	sub          *keymap.Subscription

	obsMu       sync.RWMutex
	nextObsID   uint64
	triggerObs  map[uint64]func(keymap.Binding)
	detectObs   map[uint64]func(bool)
	triggerList []uint64
	detectList  []uint64
}

// NewEngine creates an engine reading bindings from src.
func NewEngine(src BindingSource, opts ...Option) *Engine {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Metrics == nil {
		o.Metrics = NewMetrics()
	}

	e := &Engine{
		enabled:    o.DetectionEnabled,
		timeout:    o.Timeout,
		clock:      o.Clock,
		log:        o.Logger.With().Str("component", "engine").Logger(),
		metrics:    o.Metrics,
		dispatcher: o.Dispatcher,
		triggerObs: make(map[uint64]func(keymap.Binding)),
		detectObs:  make(map[uint64]func(bool)),
	}
	// Subscribe before reading the snapshot so no change is missed.
	e.sub = src.OnChange(e.setBindings)
	e.loadBindings(src.Bindings())
	return e
}

// Close stops following binding changes.
func (e *Engine) Close() {
	e.sub.Cancel()
}

// Metrics returns the engine's metrics tracker.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Timeout returns the inactivity timeout.
func (e *Engine) Timeout() time.Duration {
	return e.timeout
}

// AddInterceptor registers an interceptor that sees raw events before
// normalization.
func (e *Engine) AddInterceptor(name string, priority InterceptorPriority, ic Interceptor) InterceptorID {
	return e.interceptors.add(name, priority, ic)
}

// RemoveInterceptor unregisters an interceptor.
func (e *Engine) RemoveInterceptor(id InterceptorID) bool {
	return e.interceptors.remove(id)
}

// Feed processes one raw key-down event. Events consumed by an
// interceptor, auto-repeats and keys without a keystroke form are
// dropped. Feed reports whether a binding was triggered.
func (e *Engine) Feed(ev key.RawEvent) bool {
	e.feedMu.Lock()
	defer e.feedMu.Unlock()

	if name, consumed := e.interceptors.run(ev); consumed {
		e.metrics.RecordIntercepted()
		e.log.Trace().Str("interceptor", name).Msg("event consumed")
		return false
	}
	if ev.Repeat {
		e.metrics.RecordRepeat()
		return false
	}
	k, ok := key.Normalize(ev)
	if !ok {
		e.metrics.RecordUnrepresentable()
		e.log.Trace().Stringer("code", ev.Code).Msg("unrepresentable key dropped")
		return false
	}
	return e.handle(k)
}

// HandleKeystroke processes an already normalized keystroke and reports
// whether a binding was triggered.
func (e *Engine) HandleKeystroke(k key.Keystroke) bool {
	e.feedMu.Lock()
	defer e.feedMu.Unlock()
	return e.handle(k)
}

// handle runs one keystroke. feedMu must be held.
func (e *Engine) handle(k key.Keystroke) bool {
	start := time.Now()

	e.mu.Lock()
	if !e.enabled {
		e.mu.Unlock()
		e.metrics.RecordIgnored()
		return false
	}

	now := e.clock()
	if len(e.window) > 0 && now.Sub(e.lastEvent) > e.timeout {
		e.window = e.window[:0]
		e.metrics.RecordTimeout()
		e.log.Debug().Msg("window expired")
	}
	e.lastEvent = now
	e.window = append(e.window, k)
	if over := len(e.window) - e.maxLen; over > 0 {
		e.window = append(e.window[:0], e.window[over:]...)
		e.metrics.RecordOverflow(over)
	}

	matched, ok := keymap.FirstMatch(e.bindings, e.window)
	if ok {
		triggered := matched.Clone()
		e.lastTriggered = &triggered
		e.window = e.window[:0]
	}
	e.mu.Unlock()

	e.metrics.RecordKeystroke(time.Since(start))
	if !ok {
		return false
	}

	e.metrics.RecordTrigger()
	e.log.Info().
		Str("binding", matched.Name).
		Str("sequence", matched.DisplaySequence()).
		Str("action", string(matched.Action.Type)).
		Msg("binding triggered")

	for _, fn := range e.triggerObservers() {
		fn(matched.Clone())
	}
	if e.dispatcher != nil {
		e.dispatcher.Dispatch(matched.Action)
	}
	return true
}

// setBindings installs a new snapshot and recomputes the window bound.
// The window itself is trimmed lazily on the next append.
func (e *Engine) setBindings(snapshot []keymap.Binding) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notified = true
	e.applyBindingsLocked(snapshot)
}

// loadBindings applies the initial snapshot unless a change notification
// already delivered a newer one.
func (e *Engine) loadBindings(snapshot []keymap.Binding) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.notified {
		e.applyBindingsLocked(snapshot)
	}
}

func (e *Engine) applyBindingsLocked(snapshot []keymap.Binding) {
	bound := 0
	for _, b := range snapshot {
		if n := len(b.Steps); n > bound {
			bound = n
		}
	}
	e.bindings = snapshot
	e.setBoundLocked(bound)
}

func (e *Engine) setBoundLocked(n int) {
	if n < 0 {
		panic(fmt.Sprintf("input: negative window bound %d", n))
	}
	e.maxLen = n
}

// SetDetectionEnabled turns matching on or off. Disabling clears the
// window. Observers are notified only when the state changes.
func (e *Engine) SetDetectionEnabled(enabled bool) {
	e.mu.Lock()
	changed := e.enabled != enabled
	e.enabled = enabled
	if !enabled {
		e.window = e.window[:0]
	}
	e.mu.Unlock()

	if !changed {
		return
	}
	e.log.Info().Bool("enabled", enabled).Msg("detection changed")
	for _, fn := range e.detectionObservers() {
		fn(enabled)
	}
}

// DetectionEnabled reports whether matching is on.
func (e *Engine) DetectionEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// LastTriggered returns the most recently triggered binding.
func (e *Engine) LastTriggered() (keymap.Binding, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastTriggered == nil {
		return keymap.Binding{}, false
	}
	return e.lastTriggered.Clone(), true
}

// Window returns a copy of the buffered keystrokes, oldest first.
func (e *Engine) Window() key.Sequence {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.window.Clone()
}

// MaxSequenceLength returns the current window bound.
func (e *Engine) MaxSequenceLength() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxLen
}

// OnTrigger registers fn to be called with every triggered binding.
// The returned function unregisters it.
func (e *Engine) OnTrigger(fn func(keymap.Binding)) (cancel func()) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.nextObsID++
	id := e.nextObsID
	e.triggerObs[id] = fn
	e.triggerList = append(e.triggerList, id)
	return func() {
		e.obsMu.Lock()
		defer e.obsMu.Unlock()
		delete(e.triggerObs, id)
		e.triggerList = removeID(e.triggerList, id)
	}
}

// OnDetectionChange registers fn to be called when detection is toggled.
// The returned function unregisters it.
func (e *Engine) OnDetectionChange(fn func(bool)) (cancel func()) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.nextObsID++
	id := e.nextObsID
	e.detectObs[id] = fn
	e.detectList = append(e.detectList, id)
	return func() {
		e.obsMu.Lock()
		defer e.obsMu.Unlock()
		delete(e.detectObs, id)
		e.detectList = removeID(e.detectList, id)
	}
}

func (e *Engine) triggerObservers() []func(keymap.Binding) {
	e.obsMu.RLock()
	defer e.obsMu.RUnlock()
	out := make([]func(keymap.Binding), 0, len(e.triggerList))
	for _, id := range e.triggerList {
		out = append(out, e.triggerObs[id])
	}
	return out
}

func (e *Engine) detectionObservers() []func(bool) {
	e.obsMu.RLock()
	defer e.obsMu.RUnlock()
	out := make([]func(bool), 0, len(e.detectList))
	for _, id := range e.detectList {
		out = append(out, e.detectObs[id])
	}
	return out
}

func removeID(ids []uint64, id uint64) []uint64 {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
