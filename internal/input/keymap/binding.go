package keymap

import (
	"fmt"
	"strings"

	"github.com/dshills/chordinate/internal/input/key"
	"github.com/google/uuid"
)

// ActionType identifies what a binding does when triggered.
type ActionType string

const (
	// ActionShellCommand runs the payload through the user's shell.
	ActionShellCommand ActionType = "shellCommand"

	// ActionOpenURL opens the payload with the system URL handler.
	ActionOpenURL ActionType = "openURL"
)

// ActionTypes lists every supported action type in display order.
var ActionTypes = []ActionType{ActionShellCommand, ActionOpenURL}

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	switch t {
	case ActionShellCommand, ActionOpenURL:
		return true
	}
	return false
}

// Title returns a human-readable label.
func (t ActionType) Title() string {
	switch t {
	case ActionShellCommand:
		return "Run Shell Command"
	case ActionOpenURL:
		return "Open URL"
	}
	return string(t)
}

// ParseActionType resolves a type name or a short alias ("shell", "url").
func ParseActionType(s string) (ActionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shellcommand", "shell", "sh", "cmd":
		return ActionShellCommand, nil
	case "openurl", "url", "open":
		return ActionOpenURL, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// Action is what a binding does when its sequence is typed.
type Action struct {
	Type    ActionType `json:"type" yaml:"type"`
	Payload string     `json:"payload" yaml:"payload"`
}

// ShellCommand creates an action that runs cmd.
func ShellCommand(cmd string) Action {
	return Action{Type: ActionShellCommand, Payload: cmd}
}

// OpenURL creates an action that opens u.
func OpenURL(u string) Action {
	return Action{Type: ActionOpenURL, Payload: u}
}

// String returns "type: payload".
func (a Action) String() string {
	return string(a.Type) + ": " + a.Payload
}

// Binding maps a keystroke sequence to an action.
// Identity is by ID; two bindings with equal steps are still distinct.
type Binding struct {
	// ID uniquely identifies the binding.
	ID uuid.UUID

	// Name is a user-facing label.
	Name string

	// Steps is the sequence that triggers this binding.
	// A binding with no steps never triggers.
	Steps key.Sequence

	// Action runs when the binding triggers.
	Action Action
}

// NewBinding creates a binding with a fresh ID.
func NewBinding(name string, steps key.Sequence, action Action) Binding {
	return Binding{
		ID:     uuid.New(),
		Name:   name,
		Steps:  steps,
		Action: action,
	}
}

// WithName returns a copy with the name replaced.
func (b Binding) WithName(name string) Binding {
	b.Name = name
	return b
}

// WithSteps returns a copy with the steps replaced.
func (b Binding) WithSteps(steps key.Sequence) Binding {
	b.Steps = steps
	return b
}

// WithAction returns a copy with the action replaced.
func (b Binding) WithAction(action Action) Binding {
	b.Action = action
	return b
}

// Clone returns a deep copy of the binding.
func (b Binding) Clone() Binding {
	b.Steps = b.Steps.Clone()
	return b
}

// DisplaySequence renders the steps as glyphs, e.g. "⌘K  ›  ⌘C".
func (b Binding) DisplaySequence() string {
	return b.Steps.DisplayText()
}

// MatchesTail reports whether the binding's full steps equal the trailing
// steps of window. Empty bindings never match.
func (b Binding) MatchesTail(window key.Sequence) bool {
	return window.HasSuffix(b.Steps)
}

// Validate checks that the binding can be stored.
func (b Binding) Validate() error {
	if b.ID == uuid.Nil {
		return &ValidationError{ID: b.ID, Field: "id", Message: "must not be empty"}
	}
	if strings.TrimSpace(b.Name) == "" {
		return &ValidationError{ID: b.ID, Field: "name", Message: "must not be empty"}
	}
	if !b.Action.Type.Valid() {
		return &ValidationError{ID: b.ID, Field: "action.type", Message: fmt.Sprintf("unknown action type %q", b.Action.Type)}
	}
	for i, s := range b.Steps {
		if s.IsZero() {
			return &ValidationError{ID: b.ID, Field: fmt.Sprintf("steps[%d]", i), Message: "empty key"}
		}
	}
	return nil
}
