package input

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/chordinate/internal/input/key"
	"github.com/dshills/chordinate/internal/input/keymap"
	"github.com/dshills/chordinate/internal/input/recorder"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingDispatcher collects dispatched actions.
type recordingDispatcher struct {
	mu      sync.Mutex
	actions []keymap.Action
}

func (d *recordingDispatcher) Dispatch(a keymap.Action) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions = append(d.actions, a)
}

func (d *recordingDispatcher) Actions() []keymap.Action {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]keymap.Action(nil), d.actions...)
}

func binding(name, keys string) keymap.Binding {
	var steps key.Sequence
	if keys != "" {
		steps = key.MustParseSequence(keys)
	}
	return keymap.NewBinding(name, steps, keymap.ShellCommand("echo "+name))
}

func newTestEngine(t *testing.T, bindings ...keymap.Binding) (*Engine, *keymap.Registry, *fakeClock, *recordingDispatcher) {
	t.Helper()
	reg, err := keymap.NewRegistry(bindings...)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	clock := newFakeClock()
	d := &recordingDispatcher{}
	e := NewEngine(reg, WithClock(clock.Now), WithDispatcher(d))
	t.Cleanup(e.Close)
	return e, reg, clock, d
}

// raw builds the raw event a keyboard would deliver for spec.
func raw(spec string) key.RawEvent {
	k := key.MustParse(spec)
	ev := key.RawEvent{Flags: key.FlagsFor(k.Modifiers)}
	if code, ok := key.CodeForName(k.Key); ok {
		ev.Code = code
	} else {
		ev.Characters = strings.ToLower(k.Key)
	}
	return ev
}

func TestEngineCmdKCmdC(t *testing.T) {
	e, _, clock, d := newTestEngine(t, binding("copy", "Cmd+K Cmd+C"))

	var triggered []string
	e.OnTrigger(func(b keymap.Binding) {
		triggered = append(triggered, b.Name)
		if n := e.Window().Len(); n != 0 {
			t.Errorf("window during trigger = %d, want 0", n)
		}
	})

	if e.Feed(raw("Cmd+K")) {
		t.Fatal("first step should not trigger")
	}
	clock.Advance(300 * time.Millisecond)
	if !e.Feed(raw("Cmd+C")) {
		t.Fatal("second step should trigger")
	}

	if len(triggered) != 1 || triggered[0] != "copy" {
		t.Errorf("triggered = %v, want [copy]", triggered)
	}
	if acts := d.Actions(); len(acts) != 1 || acts[0].Payload != "echo copy" {
		t.Errorf("dispatched = %v", acts)
	}
	if last, ok := e.LastTriggered(); !ok || last.Name != "copy" {
		t.Errorf("LastTriggered() = %v, %v", last.Name, ok)
	}
	if n := e.Window().Len(); n != 0 {
		t.Errorf("window after trigger = %d, want 0", n)
	}
}

func TestEngineTimeoutClearsBeforeAppend(t *testing.T) {
	e, _, clock, d := newTestEngine(t, binding("copy", "Cmd+K Cmd+C"))

	e.Feed(raw("Cmd+K"))
	clock.Advance(2 * time.Second)
	if e.Feed(raw("Cmd+C")) {
		t.Fatal("step after timeout should not trigger")
	}
	if len(d.Actions()) != 0 {
		t.Errorf("dispatched = %v, want none", d.Actions())
	}

	w := e.Window()
	if w.Len() != 1 || w[0].Key != "C" {
		t.Errorf("window = %v, want [Cmd+C]", w)
	}
	if got := e.Metrics().Snapshot().WindowTimeouts; got != 1 {
		t.Errorf("WindowTimeouts = %d, want 1", got)
	}
}

func TestEngineTimeoutIsStrict(t *testing.T) {
	e, _, clock, _ := newTestEngine(t, binding("copy", "Cmd+K Cmd+C"))

	e.Feed(raw("Cmd+K"))
	clock.Advance(DefaultTimeout)
	if !e.Feed(raw("Cmd+C")) {
		t.Error("a gap equal to the timeout should keep the window")
	}
}

func TestEngineFirstMatchWins(t *testing.T) {
	e, _, _, d := newTestEngine(t,
		binding("short", "A"),
		binding("long", "A B"),
	)

	if !e.Feed(raw("a")) {
		t.Fatal("A should trigger the shorter binding")
	}
	if e.Feed(raw("b")) {
		t.Error("B alone should not trigger after the window was cleared")
	}

	acts := d.Actions()
	if len(acts) != 1 || acts[0].Payload != "echo short" {
		t.Errorf("dispatched = %v, want [echo short]", acts)
	}
}

func TestEngineRegistryOrderTieBreak(t *testing.T) {
	e, _, _, _ := newTestEngine(t,
		binding("first", "X Y"),
		binding("second", "Y"),
	)

	e.Feed(raw("x"))
	e.Feed(raw("y"))
	last, _ := e.LastTriggered()
	if last.Name != "first" {
		t.Errorf("LastTriggered() = %q, want first", last.Name)
	}
}

func TestEngineWindowBound(t *testing.T) {
	e, _, _, _ := newTestEngine(t, binding("abc", "A B C"))

	for _, k := range []string{"x", "y", "z", "w", "v"} {
		e.Feed(raw(k))
		if n := e.Window().Len(); n > 3 {
			t.Fatalf("window length %d exceeds bound 3", n)
		}
	}

	w := e.Window()
	want := []string{"Z", "W", "V"}
	if w.Len() != len(want) {
		t.Fatalf("window = %v", w)
	}
	for i, k := range want {
		if w[i].Key != k {
			t.Errorf("window[%d] = %q, want %q", i, w[i].Key, k)
		}
	}
	if got := e.Metrics().Snapshot().WindowOverflows; got != 2 {
		t.Errorf("WindowOverflows = %d, want 2", got)
	}
}

func TestEngineNoBindingsKeepsWindowEmpty(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	e.Feed(raw("a"))
	e.Feed(raw("b"))
	if n := e.Window().Len(); n != 0 {
		t.Errorf("window length = %d, want 0", n)
	}
	if e.MaxSequenceLength() != 0 {
		t.Errorf("MaxSequenceLength() = %d, want 0", e.MaxSequenceLength())
	}
}

func TestEngineBoundRecomputedLazily(t *testing.T) {
	e, reg, _, _ := newTestEngine(t, binding("long", "A B C D"))

	for _, k := range []string{"w", "x", "y"} {
		e.Feed(raw(k))
	}

	short := binding("short", "Q")
	if err := reg.Replace([]keymap.Binding{short}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if e.MaxSequenceLength() != 1 {
		t.Fatalf("MaxSequenceLength() = %d, want 1", e.MaxSequenceLength())
	}
	if n := e.Window().Len(); n != 3 {
		t.Errorf("window length after rebind = %d, want 3", n)
	}

	e.Feed(raw("z"))
	w := e.Window()
	if w.Len() != 1 || w[0].Key != "Z" {
		t.Errorf("window = %v, want [Z]", w)
	}
}

func TestEngineSeesAddedBindings(t *testing.T) {
	e, reg, _, _ := newTestEngine(t)

	if _, err := reg.Add(binding("late", "Ctrl+L")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if !e.Feed(raw("Ctrl+L")) {
		t.Error("binding added after creation should trigger")
	}
}

// changingSource mutates the registry right after handing out a snapshot,
// so the snapshot is stale by the time the engine applies it.
type changingSource struct {
	*keymap.Registry
	add  keymap.Binding
	once sync.Once
}

func (s *changingSource) Bindings() []keymap.Binding {
	snap := s.Registry.Bindings()
	s.once.Do(func() { _, _ = s.Registry.Add(s.add) })
	return snap
}

func TestEngineSeesChangeDuringCreation(t *testing.T) {
	reg, err := keymap.NewRegistry(binding("first", "Ctrl+F"))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	src := &changingSource{Registry: reg, add: binding("late", "Ctrl+L")}
	e := NewEngine(src, WithDispatcher(&recordingDispatcher{}))
	t.Cleanup(e.Close)

	if !e.Feed(raw("Ctrl+L")) {
		t.Error("binding added while the engine was created should trigger")
	}
	if !e.Feed(raw("Ctrl+F")) {
		t.Error("initial binding should trigger")
	}
}

func TestEngineDisableClearsAndSuppresses(t *testing.T) {
	e, _, _, d := newTestEngine(t, binding("copy", "Cmd+K Cmd+C"))

	var changes []bool
	e.OnDetectionChange(func(v bool) { changes = append(changes, v) })

	e.Feed(raw("Cmd+K"))
	e.SetDetectionEnabled(false)
	if n := e.Window().Len(); n != 0 {
		t.Errorf("window after disable = %d, want 0", n)
	}
	if e.DetectionEnabled() {
		t.Error("DetectionEnabled() = true after disable")
	}

	e.Feed(raw("Cmd+K"))
	e.Feed(raw("Cmd+C"))
	if len(d.Actions()) != 0 {
		t.Errorf("dispatched while disabled: %v", d.Actions())
	}
	if n := e.Window().Len(); n != 0 {
		t.Errorf("window while disabled = %d, want 0", n)
	}

	e.SetDetectionEnabled(false)
	e.SetDetectionEnabled(true)
	e.Feed(raw("Cmd+K"))
	if !e.Feed(raw("Cmd+C")) {
		t.Error("should trigger after re-enabling")
	}

	if len(changes) != 2 || changes[0] != false || changes[1] != true {
		t.Errorf("detection changes = %v, want [false true]", changes)
	}
}

func TestEngineDropsRepeatsAndUnrepresentable(t *testing.T) {
	e, _, _, _ := newTestEngine(t, binding("a", "A B"))

	ev := raw("a")
	ev.Repeat = true
	e.Feed(ev)
	e.Feed(key.RawEvent{Code: 0x3B})
	e.Feed(key.RawEvent{Characters: "\x01"})

	if n := e.Window().Len(); n != 0 {
		t.Errorf("window length = %d, want 0", n)
	}
	snap := e.Metrics().Snapshot()
	if snap.DroppedRepeats != 1 {
		t.Errorf("DroppedRepeats = %d, want 1", snap.DroppedRepeats)
	}
	if snap.DroppedUnmapped != 2 {
		t.Errorf("DroppedUnmapped = %d, want 2", snap.DroppedUnmapped)
	}
}

func TestEngineIgnoresExtraFlags(t *testing.T) {
	e, _, _, _ := newTestEngine(t, binding("copy", "Cmd+K"))

	ev := raw("Cmd+K")
	ev.Flags |= key.FlagCapsLock | key.FlagNumericPad | key.FlagFunction
	if !e.Feed(ev) {
		t.Error("untracked flag bits should not prevent a match")
	}
}

func TestEngineEscapeAndRecorder(t *testing.T) {
	e, _, _, d := newTestEngine(t, binding("esc", "Escape"))

	rec := recorder.New()
	e.AddInterceptor("recorder", PriorityHighest, rec)

	rec.Start()
	if e.Feed(raw("Escape")) {
		t.Error("Escape while recording should not trigger")
	}
	if rec.IsRecording() {
		t.Error("Escape should cancel the recording")
	}
	if len(d.Actions()) != 0 {
		t.Errorf("dispatched = %v, want none", d.Actions())
	}

	if !e.Feed(raw("Escape")) {
		t.Error("Escape outside recording should trigger")
	}
}

func TestEngineRecorderConsumesEvents(t *testing.T) {
	e, _, _, d := newTestEngine(t, binding("copy", "Cmd+K Cmd+C"))

	rec := recorder.New()
	e.AddInterceptor("recorder", PriorityHighest, rec)

	rec.Start()
	e.Feed(raw("Cmd+K"))
	e.Feed(raw("Cmd+C"))
	steps := rec.Stop()

	if steps.Len() != 2 {
		t.Errorf("recorded %d steps, want 2", steps.Len())
	}
	if len(d.Actions()) != 0 {
		t.Errorf("recorded keys triggered %v", d.Actions())
	}
	if n := e.Window().Len(); n != 0 {
		t.Errorf("window = %d, want 0", n)
	}
	if got := e.Metrics().Snapshot().InterceptedEvents; got != 2 {
		t.Errorf("InterceptedEvents = %d, want 2", got)
	}
}

func TestEngineInterceptorOrder(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	var order []string
	e.AddInterceptor("low", PriorityLow, InterceptorFunc(func(key.RawEvent) bool {
		order = append(order, "low")
		return false
	}))
	id := e.AddInterceptor("high", PriorityHigh, InterceptorFunc(func(key.RawEvent) bool {
		order = append(order, "high")
		return false
	}))

	e.Feed(raw("a"))
	if strings.Join(order, ",") != "high,low" {
		t.Errorf("order = %v, want [high low]", order)
	}

	if !e.RemoveInterceptor(id) {
		t.Error("RemoveInterceptor() = false")
	}
	if e.RemoveInterceptor(id) {
		t.Error("second RemoveInterceptor() = true")
	}
}

func TestEngineObserverCancel(t *testing.T) {
	e, _, _, _ := newTestEngine(t, binding("a", "A"))

	calls := 0
	cancel := e.OnTrigger(func(keymap.Binding) { calls++ })
	e.Feed(raw("a"))
	cancel()
	e.Feed(raw("a"))

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestEngineEmptyStepsNeverMatch(t *testing.T) {
	e, _, _, d := newTestEngine(t, binding("empty", ""), binding("a", "A"))

	e.Feed(raw("a"))
	acts := d.Actions()
	if len(acts) != 1 || acts[0].Payload != "echo a" {
		t.Errorf("dispatched = %v, want [echo a]", acts)
	}
}

func TestEngineNegativeBoundPanics(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	defer func() {
		if recover() == nil {
			t.Error("expected panic for negative bound")
		}
	}()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setBoundLocked(-1)
}

func TestEngineConcurrentFeed(t *testing.T) {
	e, reg, _, _ := newTestEngine(t, binding("ab", "A B"))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				e.Feed(raw("a"))
				e.Feed(raw("b"))
				if n := e.Window().Len(); n > 2 {
					t.Errorf("window length %d exceeds bound", n)
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 20; j++ {
			_, _ = reg.Add(binding("extra", "C"))
			e.SetDetectionEnabled(j%2 == 0)
		}
	}()
	wg.Wait()
}
