package keymap

import (
	"encoding/json"
	"fmt"

	"github.com/dshills/chordinate/internal/input/key"
	"github.com/google/uuid"
)

// wireBinding is the persisted form of a Binding.
type wireBinding struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Steps  []wireStep `json:"steps"`
	Action Action     `json:"action"`
}

type wireStep struct {
	ID        string       `json:"id,omitempty"`
	Key       string       `json:"key"`
	Modifiers key.Modifier `json:"modifiers"`
}

// Encode writes bindings as an indented JSON array.
func Encode(bindings []Binding) ([]byte, error) {
	out := make([]wireBinding, 0, len(bindings))
	for _, b := range bindings {
		out = append(out, toWire(b))
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding bindings: %w", err)
	}
	return data, nil
}

// Decode parses a JSON array of bindings. Documents using the older
// numeric modifier encoding are migrated first.
func Decode(data []byte) ([]Binding, error) {
	migrated, _, err := MigrateLegacy(data)
	if err != nil {
		return nil, err
	}

	var wire []wireBinding
	if err := json.Unmarshal(migrated, &wire); err != nil {
		return nil, fmt.Errorf("decoding bindings: %w", err)
	}

	out := make([]Binding, 0, len(wire))
	for i, w := range wire {
		b, err := fromWire(w)
		if err != nil {
			return nil, fmt.Errorf("binding %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// MarshalJSON encodes a single binding in the persisted layout.
func (b Binding) MarshalJSON() ([]byte, error) {
	return json.Marshal(toWire(b))
}

// UnmarshalJSON decodes a single binding from the persisted layout.
func (b *Binding) UnmarshalJSON(data []byte) error {
	var w wireBinding
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	decoded, err := fromWire(w)
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}

func toWire(b Binding) wireBinding {
	w := wireBinding{
		ID:     b.ID.String(),
		Name:   b.Name,
		Steps:  make([]wireStep, 0, len(b.Steps)),
		Action: b.Action,
	}
	for _, s := range b.Steps {
		ws := wireStep{Key: s.Key, Modifiers: s.Modifiers}
		if s.ID != uuid.Nil {
			ws.ID = s.ID.String()
		}
		w.Steps = append(w.Steps, ws)
	}
	return w
}

func fromWire(w wireBinding) (Binding, error) {
	b := Binding{
		Name:   w.Name,
		Steps:  make(key.Sequence, 0, len(w.Steps)),
		Action: w.Action,
	}
	if w.ID != "" {
		id, err := uuid.Parse(w.ID)
		if err != nil {
			return Binding{}, fmt.Errorf("parsing id %q: %w", w.ID, err)
		}
		b.ID = id
	} else {
		b.ID = uuid.New()
	}

	for _, ws := range w.Steps {
		k := key.NewKeystroke(key.CanonicalKey(ws.Key), ws.Modifiers)
		if ws.ID != "" {
			if id, err := uuid.Parse(ws.ID); err == nil {
				k.ID = id
			}
		}
		b.Steps = append(b.Steps, k)
	}
	return b, nil
}
