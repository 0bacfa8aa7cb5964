package key

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Modifier is the set of modifier keys held during a keystroke.
// Only the four tracked modifiers exist; the zero value is the empty set.
type Modifier uint8

const (
	// ModNone indicates no modifiers.
	ModNone Modifier = 0

	// ModCommand indicates the Command (⌘) key.
	ModCommand Modifier = 1 << 0

	// ModOption indicates the Option (⌥) key, Alt elsewhere.
	ModOption Modifier = 1 << 1

	// ModControl indicates the Control (⌃) key.
	ModControl Modifier = 1 << 2

	// ModShift indicates the Shift (⇧) key.
	ModShift Modifier = 1 << 3

	modMask = ModCommand | ModOption | ModControl | ModShift
)

// Has returns true if m contains the specified modifier.
func (m Modifier) Has(mod Modifier) bool {
	return m&mod != 0
}

// HasCommand returns true if Command is held.
func (m Modifier) HasCommand() bool {
	return m.Has(ModCommand)
}

// HasOption returns true if Option is held.
func (m Modifier) HasOption() bool {
	return m.Has(ModOption)
}

// HasControl returns true if Control is held.
func (m Modifier) HasControl() bool {
	return m.Has(ModControl)
}

// HasShift returns true if Shift is held.
func (m Modifier) HasShift() bool {
	return m.Has(ModShift)
}

// With returns a new Modifier with the specified modifier added.
func (m Modifier) With(mod Modifier) Modifier {
	return (m | mod) & modMask
}

// Without returns a new Modifier with the specified modifier removed.
func (m Modifier) Without(mod Modifier) Modifier {
	return m &^ mod
}

// IsEmpty returns true if no modifiers are set.
func (m Modifier) IsEmpty() bool {
	return m&modMask == ModNone
}

// Symbols returns the modifier glyphs in display order: ⌃ ⌥ ⇧ ⌘.
func (m Modifier) Symbols() string {
	var sb strings.Builder
	if m.HasControl() {
		sb.WriteString("⌃")
	}
	if m.HasOption() {
		sb.WriteString("⌥")
	}
	if m.HasShift() {
		sb.WriteString("⇧")
	}
	if m.HasCommand() {
		sb.WriteString("⌘")
	}
	return sb.String()
}

// String returns a readable form like "Ctrl+Opt+Shift+Cmd".
func (m Modifier) String() string {
	if m.IsEmpty() {
		return ""
	}

	var parts []string
	if m.HasControl() {
		parts = append(parts, "Ctrl")
	}
	if m.HasOption() {
		parts = append(parts, "Opt")
	}
	if m.HasShift() {
		parts = append(parts, "Shift")
	}
	if m.HasCommand() {
		parts = append(parts, "Cmd")
	}
	return strings.Join(parts, "+")
}

// modifierNameMap maps modifier names (lowercase) to Modifier values.
var modifierNameMap = map[string]Modifier{
	"cmd":     ModCommand,
	"command": ModCommand,
	"meta":    ModCommand,
	"super":   ModCommand,
	"⌘":       ModCommand,
	"opt":     ModOption,
	"option":  ModOption,
	"alt":     ModOption,
	"⌥":       ModOption,
	"ctrl":    ModControl,
	"control": ModControl,
	"⌃":       ModControl,
	"shift":   ModShift,
	"⇧":       ModShift,
}

// ModifierFromName returns the Modifier for a given name (case-insensitive).
// Returns ModNone if the name is not recognized.
func ModifierFromName(name string) Modifier {
	if m, ok := modifierNameMap[strings.ToLower(strings.TrimSpace(name))]; ok {
		return m
	}
	return ModNone
}

// modifierJSON is the persisted form: four named booleans.
type modifierJSON struct {
	Command bool `json:"command"`
	Option  bool `json:"option"`
	Control bool `json:"control"`
	Shift   bool `json:"shift"`
}

// MarshalJSON encodes the set as four named booleans.
func (m Modifier) MarshalJSON() ([]byte, error) {
	return json.Marshal(modifierJSON{
		Command: m.HasCommand(),
		Option:  m.HasOption(),
		Control: m.HasControl(),
		Shift:   m.HasShift(),
	})
}

// UnmarshalJSON accepts either the named-boolean object or the raw bit
// pattern written by older versions.
func (m *Modifier) UnmarshalJSON(data []byte) error {
	var bits uint8
	if err := json.Unmarshal(data, &bits); err == nil {
		if Modifier(bits)&^modMask != 0 {
			return fmt.Errorf("modifier bits out of range: %d", bits)
		}
		*m = Modifier(bits)
		return nil
	}

	var obj modifierJSON
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decoding modifiers: %w", err)
	}

	var out Modifier
	if obj.Command {
		out |= ModCommand
	}
	if obj.Option {
		out |= ModOption
	}
	if obj.Control {
		out |= ModControl
	}
	if obj.Shift {
		out |= ModShift
	}
	*m = out
	return nil
}
