package key

import (
	"encoding/json"
	"testing"
)

func TestModifierHas(t *testing.T) {
	tests := []struct {
		mod    Modifier
		check  Modifier
		expect bool
	}{
		{ModNone, ModControl, false},
		{ModControl, ModControl, true},
		{ModControl | ModOption, ModControl, true},
		{ModControl | ModOption, ModOption, true},
		{ModControl | ModOption, ModShift, false},
		{ModControl | ModOption | ModShift | ModCommand, ModCommand, true},
	}

	for _, tt := range tests {
		if got := tt.mod.Has(tt.check); got != tt.expect {
			t.Errorf("Modifier(%d).Has(%d) = %v, want %v", tt.mod, tt.check, got, tt.expect)
		}
	}
}

func TestModifierWith(t *testing.T) {
	mod := ModNone
	mod = mod.With(ModControl)
	if !mod.HasControl() {
		t.Error("With(ModControl) should set Control")
	}

	mod = mod.With(ModOption)
	if !mod.HasControl() || !mod.HasOption() {
		t.Error("With(ModOption) should keep Control and add Option")
	}

	if got := ModNone.With(Modifier(0xF0)); got != ModNone {
		t.Errorf("With(untracked bits) = %v, want none", got)
	}
}

func TestModifierWithout(t *testing.T) {
	mod := ModCommand | ModShift
	mod = mod.Without(ModShift)
	if mod != ModCommand {
		t.Errorf("Without(ModShift) = %v, want ModCommand", mod)
	}
}

func TestModifierSymbolsOrder(t *testing.T) {
	tests := []struct {
		mod  Modifier
		want string
	}{
		{ModNone, ""},
		{ModCommand, "⌘"},
		{ModCommand | ModControl, "⌃⌘"},
		{ModShift | ModOption, "⌥⇧"},
		{ModCommand | ModOption | ModControl | ModShift, "⌃⌥⇧⌘"},
	}

	for _, tt := range tests {
		if got := tt.mod.Symbols(); got != tt.want {
			t.Errorf("Modifier(%d).Symbols() = %q, want %q", tt.mod, got, tt.want)
		}
	}
}

func TestModifierString(t *testing.T) {
	tests := []struct {
		mod  Modifier
		want string
	}{
		{ModNone, ""},
		{ModCommand, "Cmd"},
		{ModControl | ModShift, "Ctrl+Shift"},
		{ModCommand | ModOption | ModControl | ModShift, "Ctrl+Opt+Shift+Cmd"},
	}

	for _, tt := range tests {
		if got := tt.mod.String(); got != tt.want {
			t.Errorf("Modifier(%d).String() = %q, want %q", tt.mod, got, tt.want)
		}
	}
}

func TestModifierFromName(t *testing.T) {
	tests := []struct {
		name string
		want Modifier
	}{
		{"cmd", ModCommand},
		{"Command", ModCommand},
		{"meta", ModCommand},
		{"⌘", ModCommand},
		{"alt", ModOption},
		{"Opt", ModOption},
		{"CTRL", ModControl},
		{"control", ModControl},
		{"shift", ModShift},
		{"hyper", ModNone},
	}

	for _, tt := range tests {
		if got := ModifierFromName(tt.name); got != tt.want {
			t.Errorf("ModifierFromName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestModifierJSON(t *testing.T) {
	data, err := json.Marshal(ModCommand | ModShift)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"command":true,"option":false,"control":false,"shift":true}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}

	var m Modifier
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m != ModCommand|ModShift {
		t.Errorf("Unmarshal = %v, want Cmd+Shift", m)
	}
}

func TestModifierUnmarshalLegacyBits(t *testing.T) {
	var m Modifier
	if err := json.Unmarshal([]byte("5"), &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m != ModCommand|ModControl {
		t.Errorf("Unmarshal(5) = %v, want Cmd+Ctrl", m)
	}

	if err := json.Unmarshal([]byte("16"), &m); err == nil {
		t.Error("expected error for out-of-range bits")
	}
	if err := json.Unmarshal([]byte(`"cmd"`), &m); err == nil {
		t.Error("expected error for string input")
	}
}
