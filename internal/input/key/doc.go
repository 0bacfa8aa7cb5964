// Package key provides keystroke types, normalization and parsing.
//
// This package defines the fundamental types for representing keyboard input:
//
//   - Code: a virtual key code reported by the host
//   - Modifier: the set of held modifiers (Command, Option, Control, Shift)
//   - Keystroke: a canonical key identifier plus modifiers
//   - Sequence: an ordered list of keystrokes forming a chord
//
// # Normalization
//
// Normalize turns a RawEvent into a Keystroke. Auto-repeat events are
// dropped. Named keys are resolved by code before characters are looked
// at, so Return stays "Return" whatever text it produced. A single
// grapheme is uppercased; longer strings are kept as-is. CanonicalKey
// applies the same rule to stored identifiers.
//
// # Key Specifications
//
// Keystrokes can be written in several formats:
//
//   - Simple keys: "a", "K", "1", "Return", "Escape"
//   - With modifiers: "Cmd+K", "Opt+F4", "Ctrl+Shift+Return"
//   - Glyphs: "⌘K", "⌃⇧↩︎"
//   - Vim-style: "<D-k>", "<C-S-CR>", "<Esc>"
//
// Sequences are written as space-separated steps: "Cmd+K Cmd+C".
package key
