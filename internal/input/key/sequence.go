package key

import (
	"strings"
)

// StepSeparator joins step glyphs when a sequence is displayed.
const StepSeparator = "  ›  "

// Sequence is an ordered list of keystrokes forming a chord.
// Examples: "⌘K  ›  ⌘C", "⌃⇧↩︎"
type Sequence []Keystroke

// Len returns the number of steps in the sequence.
func (s Sequence) Len() int {
	return len(s)
}

// IsEmpty returns true if the sequence has no steps.
func (s Sequence) IsEmpty() bool {
	return len(s) == 0
}

// Last returns the last step and true, or false if empty.
func (s Sequence) Last() (Keystroke, bool) {
	if len(s) == 0 {
		return Keystroke{}, false
	}
	return s[len(s)-1], true
}

// Equal returns true if two sequences have equal steps in the same order.
// Instance IDs are ignored.
func (s Sequence) Equal(other Sequence) bool {
	if len(s) != len(other) {
		return false
	}
	for i, k := range s {
		if !k.Equal(other[i]) {
			return false
		}
	}
	return true
}

// HasPrefix returns true if s starts with prefix.
func (s Sequence) HasPrefix(prefix Sequence) bool {
	if len(prefix) > len(s) {
		return false
	}
	return s[:len(prefix)].Equal(prefix)
}

// HasSuffix returns true if s ends with suffix. An empty suffix never
// matches, so a sequence with no steps cannot be triggered.
func (s Sequence) HasSuffix(suffix Sequence) bool {
	if len(suffix) == 0 || len(suffix) > len(s) {
		return false
	}
	return s[len(s)-len(suffix):].Equal(suffix)
}

// Clone returns a copy of the sequence.
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	out := make(Sequence, len(s))
	copy(out, s)
	return out
}

// Tail returns the last n steps, or the whole sequence if shorter.
func (s Sequence) Tail(n int) Sequence {
	if n <= 0 {
		return Sequence{}
	}
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// DisplayText renders each step as glyphs joined by StepSeparator.
func (s Sequence) DisplayText() string {
	if len(s) == 0 {
		return ""
	}
	parts := make([]string, len(s))
	for i, k := range s {
		parts[i] = k.DisplayText()
	}
	return strings.Join(parts, StepSeparator)
}

// String returns a space-separated form accepted by ParseSequence.
func (s Sequence) String() string {
	parts := make([]string, len(s))
	for i, k := range s {
		parts[i] = k.String()
	}
	return strings.Join(parts, " ")
}
