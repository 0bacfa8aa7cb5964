package terminal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dshills/chordinate/internal/input/key"
	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name string
		ev   *tcell.EventKey
		want string
	}{
		{"letter", tcell.NewEventKey(tcell.KeyRune, 'k', tcell.ModNone), "K"},
		{"uppercase implies shift", tcell.NewEventKey(tcell.KeyRune, 'K', tcell.ModNone), "Shift+K"},
		{"meta is command", tcell.NewEventKey(tcell.KeyRune, 'k', tcell.ModMeta), "Cmd+K"},
		{"alt is option", tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModAlt), "Opt+X"},
		{"space", tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone), "Space"},
		{"ctrl letter", tcell.NewEventKey(tcell.KeyCtrlK, 0, tcell.ModCtrl), "Ctrl+K"},
		{"ctrl space", tcell.NewEventKey(tcell.KeyCtrlSpace, 0, tcell.ModCtrl), "Ctrl+Space"},
		{"enter", tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), "Return"},
		{"tab", tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone), "Tab"},
		{"backtab", tcell.NewEventKey(tcell.KeyBacktab, 0, tcell.ModNone), "Shift+Tab"},
		{"escape", tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), "Escape"},
		{"shift arrow", tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModShift), "Shift+UpArrow"},
		{"backspace", tcell.NewEventKey(tcell.KeyBackspace2, 0, tcell.ModNone), "Delete"},
		{"function key", tcell.NewEventKey(tcell.KeyF5, 0, tcell.ModNone), "F5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, ok := Convert(tt.ev)
			if !ok {
				t.Fatal("Convert() returned false")
			}
			k, ok := key.Normalize(raw)
			if !ok {
				t.Fatalf("Normalize(%+v) returned false", raw)
			}
			if got := k.String(); got != tt.want {
				t.Errorf("keystroke = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConvertUnmapped(t *testing.T) {
	if _, ok := Convert(tcell.NewEventKey(tcell.KeyInsert, 0, tcell.ModNone)); ok {
		t.Error("Insert has no virtual key code and should not convert")
	}
}

type collector struct {
	mu   sync.Mutex
	keys []string
}

func (c *collector) Feed(ev key.RawEvent) bool {
	k, ok := key.Normalize(ev)
	if !ok {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, k.String())
	return false
}

func newSimSource(t *testing.T) (*Source, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	src := New(screen, zerolog.Nop())
	if err := src.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(src.Fini)
	return src, screen
}

func TestRunStopsOnCtrlC(t *testing.T) {
	src, screen := newSimSource(t)

	screen.InjectKey(tcell.KeyRune, 'k', tcell.ModMeta)
	screen.InjectKey(tcell.KeyRune, 'c', tcell.ModMeta)
	screen.InjectKey(tcell.KeyCtrlC, 0, tcell.ModCtrl)

	c := &collector{}
	err := src.Run(context.Background(), c)
	if !errors.Is(err, ErrQuit) {
		t.Fatalf("Run() error = %v, want ErrQuit", err)
	}
	if len(c.keys) != 2 || c.keys[0] != "Cmd+K" || c.keys[1] != "Cmd+C" {
		t.Errorf("fed = %v, want [Cmd+K Cmd+C]", c.keys)
	}
}

func TestRunStopsOnContext(t *testing.T) {
	src, _ := newSimSource(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, &collector{}) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestSetStatus(t *testing.T) {
	src, screen := newSimSource(t)
	screen.SetSize(20, 2)

	src.SetStatus("⌘K  ›  ⌘C", "listening")

	cells, width, _ := screen.GetContents()
	if width != 20 {
		t.Fatalf("width = %d, want 20", width)
	}
	if got := cells[0].Runes; len(got) == 0 || got[0] != '⌘' {
		t.Errorf("first cell = %v, want ⌘", got)
	}
	if got := cells[width].Runes; len(got) == 0 || got[0] != 'l' {
		t.Errorf("second line first cell = %v, want l", got)
	}
}
