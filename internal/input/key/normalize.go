package key

import (
	"unicode"

	"github.com/rivo/uniseg"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Flags is the raw device modifier mask delivered with a key event. Bit
// positions follow the host's device-independent flag layout; only the
// four tracked modifiers survive normalization.
type Flags uint64

// Raw modifier flag bits.
const (
	FlagCapsLock   Flags = 1 << 16
	FlagShift      Flags = 1 << 17
	FlagControl    Flags = 1 << 18
	FlagOption     Flags = 1 << 19
	FlagCommand    Flags = 1 << 20
	FlagNumericPad Flags = 1 << 21
	FlagHelp       Flags = 1 << 22
	FlagFunction   Flags = 1 << 23
)

// RawEvent is a key-down event as delivered by an input source.
type RawEvent struct {
	// Code is the virtual key code of the physical key.
	Code Code

	// Characters is the text produced by the key ignoring modifiers.
	Characters string

	// Flags holds the raw modifier bits.
	Flags Flags

	// Repeat is true when the event was generated by holding the key.
	Repeat bool
}

// Modifiers extracts the tracked modifiers from raw flags.
func (f Flags) Modifiers() Modifier {
	var m Modifier
	if f&FlagCommand != 0 {
		m |= ModCommand
	}
	if f&FlagOption != 0 {
		m |= ModOption
	}
	if f&FlagControl != 0 {
		m |= ModControl
	}
	if f&FlagShift != 0 {
		m |= ModShift
	}
	return m
}

// FlagsFor returns the raw flags for a modifier set.
func FlagsFor(m Modifier) Flags {
	var f Flags
	if m.HasCommand() {
		f |= FlagCommand
	}
	if m.HasOption() {
		f |= FlagOption
	}
	if m.HasControl() {
		f |= FlagControl
	}
	if m.HasShift() {
		f |= FlagShift
	}
	return f
}

var upper = cases.Upper(language.Und)

// CanonicalKey uppercases a single-grapheme identifier so stored keys
// compare equal to normalized ones. Longer identifiers are unchanged.
func CanonicalKey(id string) string {
	if uniseg.GraphemeClusterCount(id) == 1 {
		return upper.String(id)
	}
	return id
}

// Normalize converts a raw event into a keystroke. It returns false for
// auto-repeat events and for keys with no representation.
func Normalize(ev RawEvent) (Keystroke, bool) {
	if ev.Repeat {
		return Keystroke{}, false
	}
	id, ok := keyIdentifier(ev)
	if !ok {
		return Keystroke{}, false
	}
	return NewKeystroke(id, ev.Flags.Modifiers()), true
}

// keyIdentifier resolves the canonical identifier for a raw event.
func keyIdentifier(ev RawEvent) (string, bool) {
	if name, ok := specialKeys[ev.Code]; ok {
		return name, true
	}
	if ev.Characters == "" {
		return "", false
	}
	if uniseg.GraphemeClusterCount(ev.Characters) == 1 {
		if !isPrintable(ev.Characters) {
			return "", false
		}
	}
	return CanonicalKey(ev.Characters), true
}

// isPrintable reports whether the grapheme starts with a printable rune.
func isPrintable(s string) bool {
	for _, r := range s {
		return unicode.IsPrint(r) || unicode.IsGraphic(r)
	}
	return false
}
