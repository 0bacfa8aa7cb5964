package key

import (
	"fmt"

	"github.com/google/uuid"
)

// Keystroke is one normalized key press: a canonical key identifier plus
// the modifiers held while it was pressed.
//
// ID identifies an instance for list rendering only. It takes no part in
// equality; use Equal or Chord for comparisons.
type Keystroke struct {
	ID        uuid.UUID
	Key       string
	Modifiers Modifier
}

// Chord is the comparable identity of a keystroke, suitable for use as a
// map key.
type Chord struct {
	Key       string
	Modifiers Modifier
}

// NewKeystroke creates a keystroke with a fresh instance ID.
func NewKeystroke(key string, mods Modifier) Keystroke {
	return Keystroke{
		ID:        uuid.New(),
		Key:       key,
		Modifiers: mods & modMask,
	}
}

// Chord returns the identity of the keystroke without its instance ID.
func (k Keystroke) Chord() Chord {
	return Chord{Key: k.Key, Modifiers: k.Modifiers}
}

// Equal reports whether two keystrokes have the same key and modifiers.
func (k Keystroke) Equal(other Keystroke) bool {
	return k.Key == other.Key && k.Modifiers == other.Modifiers
}

// IsZero reports whether the keystroke has no key.
func (k Keystroke) IsZero() bool {
	return k.Key == ""
}

// IsEscape returns true for the Escape key with no modifiers.
func (k Keystroke) IsEscape() bool {
	return k.Key == KeyEscape && k.Modifiers.IsEmpty()
}

// DisplayText returns the modifier glyphs followed by the key glyph,
// e.g. "⌘K" or "⌃⇧↩︎".
func (k Keystroke) DisplayText() string {
	return k.Modifiers.Symbols() + DisplayName(k.Key)
}

// String returns a parseable specification like "Cmd+K".
func (k Keystroke) String() string {
	if k.Modifiers.IsEmpty() {
		return k.Key
	}
	return k.Modifiers.String() + "+" + k.Key
}

// GoString implements fmt.GoStringer for debugging.
func (k Keystroke) GoString() string {
	return fmt.Sprintf("Keystroke{Key: %q, Modifiers: %s}", k.Key, k.Modifiers.String())
}
