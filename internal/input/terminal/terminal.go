// Package terminal reads key presses from a terminal and feeds them to the
// chord engine.
//
// A terminal cannot report the Command key or auto-repeat. Meta is mapped
// to Command and Alt to Option; an uppercase letter implies Shift.
package terminal

import (
	"context"
	"errors"
	"sync"
	"unicode"

	"github.com/dshills/chordinate/internal/input/key"
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog"
)

// ErrQuit is returned by Run when the user pressed Ctrl+C.
var ErrQuit = errors.New("terminal: quit requested")

// Sink receives converted key events.
type Sink interface {
	Feed(ev key.RawEvent) bool
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev key.RawEvent) bool

// Feed implements Sink.
func (f SinkFunc) Feed(ev key.RawEvent) bool {
	return f(ev)
}

// Source polls a tcell screen for key events.
type Source struct {
	screen tcell.Screen
	log    zerolog.Logger

	mu     sync.Mutex
	status []string
}

// New creates a source reading from screen. The screen is initialized by
// Init, not here.
func New(screen tcell.Screen, log zerolog.Logger) *Source {
	return &Source{
		screen: screen,
		log:    log.With().Str("component", "terminal").Logger(),
	}
}

// NewScreen creates a source on the controlling terminal.
func NewScreen(log zerolog.Logger) (*Source, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return New(screen, log), nil
}

// Init prepares the screen for input.
func (s *Source) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screen.Init()
}

// Fini restores the terminal.
func (s *Source) Fini() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screen.Fini()
}

// SetStatus replaces the lines shown on screen.
func (s *Source) SetStatus(lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = append(s.status[:0], lines...)
	s.drawLocked()
}

func (s *Source) drawLocked() {
	s.screen.Clear()
	width, height := s.screen.Size()
	for y, line := range s.status {
		if y >= height {
			break
		}
		x := 0
		for _, r := range line {
			w := runewidth.RuneWidth(r)
			if w == 0 {
				continue
			}
			if x+w > width {
				break
			}
			s.screen.SetContent(x, y, r, nil, tcell.StyleDefault)
			x += w
		}
	}
	s.screen.Show()
}

// Run converts key events and passes them to sink until ctx ends or the
// user presses Ctrl+C. It returns ctx.Err() or ErrQuit.
func (s *Source) Run(ctx context.Context, sink Sink) error {
	stop := context.AfterFunc(ctx, func() {
		_ = s.screen.PostEvent(tcell.NewEventInterrupt(nil))
	})
	defer stop()

	for {
		ev := s.screen.PollEvent()
		switch e := ev.(type) {
		case nil:
			return ctx.Err()
		case *tcell.EventInterrupt:
			if err := ctx.Err(); err != nil {
				return err
			}
		case *tcell.EventResize:
			s.mu.Lock()
			s.screen.Sync()
			s.drawLocked()
			s.mu.Unlock()
		case *tcell.EventKey:
			if isQuit(e) {
				return ErrQuit
			}
			raw, ok := Convert(e)
			if !ok {
				s.log.Debug().Str("key", e.Name()).Msg("key has no mapping")
				continue
			}
			sink.Feed(raw)
		}
	}
}

// isQuit reports whether ev is Ctrl+C.
func isQuit(ev *tcell.EventKey) bool {
	if ev.Key() == tcell.KeyCtrlC {
		return true
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == 'c' && ev.Modifiers()&tcell.ModCtrl != 0
}

// namedKeys maps tcell keys to virtual key codes.
var namedKeys = map[tcell.Key]key.Code{
	tcell.KeyEnter:      key.CodeReturn,
	tcell.KeyTab:        key.CodeTab,
	tcell.KeyBackspace:  key.CodeDelete,
	tcell.KeyBackspace2: key.CodeDelete,
	tcell.KeyDelete:     key.CodeForwardDelete,
	tcell.KeyEscape:     key.CodeEscape,
	tcell.KeyHome:       key.CodeHome,
	tcell.KeyEnd:        key.CodeEnd,
	tcell.KeyPgUp:       key.CodePageUp,
	tcell.KeyPgDn:       key.CodePageDown,
	tcell.KeyLeft:       key.CodeLeftArrow,
	tcell.KeyRight:      key.CodeRightArrow,
	tcell.KeyUp:         key.CodeUpArrow,
	tcell.KeyDown:       key.CodeDownArrow,
	tcell.KeyHelp:       key.CodeHelp,
	tcell.KeyClear:      key.CodeKeypadClear,
	tcell.KeyF1:         key.CodeF1,
	tcell.KeyF2:         key.CodeF2,
	tcell.KeyF3:         key.CodeF3,
	tcell.KeyF4:         key.CodeF4,
	tcell.KeyF5:         key.CodeF5,
	tcell.KeyF6:         key.CodeF6,
	tcell.KeyF7:         key.CodeF7,
	tcell.KeyF8:         key.CodeF8,
	tcell.KeyF9:         key.CodeF9,
	tcell.KeyF10:        key.CodeF10,
	tcell.KeyF11:        key.CodeF11,
	tcell.KeyF12:        key.CodeF12,
	tcell.KeyF13:        key.CodeF13,
	tcell.KeyF14:        key.CodeF14,
	tcell.KeyF15:        key.CodeF15,
	tcell.KeyF16:        key.CodeF16,
	tcell.KeyF17:        key.CodeF17,
	tcell.KeyF18:        key.CodeF18,
	tcell.KeyF19:        key.CodeF19,
	tcell.KeyF20:        key.CodeF20,
}

// Convert maps a tcell key event to a raw event. It returns false for
// keys with no equivalent.
func Convert(ev *tcell.EventKey) (key.RawEvent, bool) {
	flags := convertMod(ev.Modifiers())

	switch k := ev.Key(); {
	case k == tcell.KeyRune:
		r := ev.Rune()
		if r == ' ' {
			return key.RawEvent{Code: key.CodeSpace, Characters: " ", Flags: flags}, true
		}
		if unicode.IsUpper(r) {
			flags |= key.FlagShift
			r = unicode.ToLower(r)
		}
		return key.RawEvent{Characters: string(r), Flags: flags}, true

	case k == tcell.KeyBacktab:
		return key.RawEvent{Code: key.CodeTab, Flags: flags | key.FlagShift}, true

	case k == tcell.KeyCtrlSpace:
		return key.RawEvent{Code: key.CodeSpace, Characters: " ", Flags: flags | key.FlagControl}, true

	default:
		if code, ok := namedKeys[k]; ok {
			return key.RawEvent{Code: code, Flags: flags}, true
		}
		if k >= tcell.KeyCtrlA && k <= tcell.KeyCtrlZ {
			r := rune('a' + int(k-tcell.KeyCtrlA))
			return key.RawEvent{Characters: string(r), Flags: flags | key.FlagControl}, true
		}
	}
	return key.RawEvent{}, false
}

// convertMod converts tcell modifiers to raw device flags.
func convertMod(m tcell.ModMask) key.Flags {
	var f key.Flags
	if m&tcell.ModShift != 0 {
		f |= key.FlagShift
	}
	if m&tcell.ModCtrl != 0 {
		f |= key.FlagControl
	}
	if m&tcell.ModAlt != 0 {
		f |= key.FlagOption
	}
	if m&tcell.ModMeta != 0 {
		f |= key.FlagCommand
	}
	return f
}
