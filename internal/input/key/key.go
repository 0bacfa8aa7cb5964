package key

import (
	"fmt"
	"strings"
)

// Code is a hardware-independent virtual key code as reported by the host
// (the macOS kVK_* numbering).
type Code uint16

// Virtual key codes for the named keys the normalizer recognizes.
const (
	CodeReturn        Code = 0x24
	CodeTab           Code = 0x30
	CodeSpace         Code = 0x31
	CodeDelete        Code = 0x33
	CodeEscape        Code = 0x35
	CodeF17           Code = 0x40
	CodeKeypadClear   Code = 0x47
	CodeKeypadEnter   Code = 0x4C
	CodeF18           Code = 0x4F
	CodeF19           Code = 0x50
	CodeF20           Code = 0x5A
	CodeF5            Code = 0x60
	CodeF6            Code = 0x61
	CodeF7            Code = 0x62
	CodeF3            Code = 0x63
	CodeF8            Code = 0x64
	CodeF9            Code = 0x65
	CodeF11           Code = 0x67
	CodeF13           Code = 0x69
	CodeF16           Code = 0x6A
	CodeF14           Code = 0x6B
	CodeF10           Code = 0x6D
	CodeF12           Code = 0x6F
	CodeF15           Code = 0x71
	CodeHelp          Code = 0x72
	CodeHome          Code = 0x73
	CodePageUp        Code = 0x74
	CodeForwardDelete Code = 0x75
	CodeF4            Code = 0x76
	CodeEnd           Code = 0x77
	CodeF2            Code = 0x78
	CodePageDown      Code = 0x79
	CodeF1            Code = 0x7A
	CodeLeftArrow     Code = 0x7B
	CodeRightArrow    Code = 0x7C
	CodeDownArrow     Code = 0x7D
	CodeUpArrow       Code = 0x7E
)

// Canonical identifiers for named keys.
const (
	KeyReturn        = "Return"
	KeyEnter         = "Enter"
	KeyTab           = "Tab"
	KeySpace         = "Space"
	KeyDelete        = "Delete"
	KeyForwardDelete = "ForwardDelete"
	KeyEscape        = "Escape"
	KeyHome          = "Home"
	KeyEnd           = "End"
	KeyPageUp        = "PageUp"
	KeyPageDown      = "PageDown"
	KeyLeftArrow     = "LeftArrow"
	KeyRightArrow    = "RightArrow"
	KeyUpArrow       = "UpArrow"
	KeyDownArrow     = "DownArrow"
	KeyHelp          = "Help"
	KeyClear         = "Clear"
)

// specialKeys maps virtual key codes to canonical identifiers.
// This table takes priority over character decoding.
var specialKeys = map[Code]string{
	CodeReturn:        KeyReturn,
	CodeKeypadEnter:   KeyEnter,
	CodeTab:           KeyTab,
	CodeSpace:         KeySpace,
	CodeDelete:        KeyDelete,
	CodeForwardDelete: KeyForwardDelete,
	CodeEscape:        KeyEscape,
	CodeHome:          KeyHome,
	CodeEnd:           KeyEnd,
	CodePageUp:        KeyPageUp,
	CodePageDown:      KeyPageDown,
	CodeLeftArrow:     KeyLeftArrow,
	CodeRightArrow:    KeyRightArrow,
	CodeUpArrow:       KeyUpArrow,
	CodeDownArrow:     KeyDownArrow,
	CodeHelp:          KeyHelp,
	CodeKeypadClear:   KeyClear,
	CodeF1:            "F1",
	CodeF2:            "F2",
	CodeF3:            "F3",
	CodeF4:            "F4",
	CodeF5:            "F5",
	CodeF6:            "F6",
	CodeF7:            "F7",
	CodeF8:            "F8",
	CodeF9:            "F9",
	CodeF10:           "F10",
	CodeF11:           "F11",
	CodeF12:           "F12",
	CodeF13:           "F13",
	CodeF14:           "F14",
	CodeF15:           "F15",
	CodeF16:           "F16",
	CodeF17:           "F17",
	CodeF18:           "F18",
	CodeF19:           "F19",
	CodeF20:           "F20",
}

// displayOverrides replaces some identifiers with a glyph for display.
var displayOverrides = map[string]string{
	KeyReturn:        "↩︎",
	KeyEnter:         "⌅",
	KeyTab:           "⇥",
	KeySpace:         "␣",
	KeyDelete:        "⌫",
	KeyForwardDelete: "⌦",
	KeyEscape:        "⎋",
	KeyLeftArrow:     "←",
	KeyRightArrow:    "→",
	KeyUpArrow:       "↑",
	KeyDownArrow:     "↓",
	KeyHome:          "↖",
	KeyEnd:           "↘",
	KeyPageUp:        "⇞",
	KeyPageDown:      "⇟",
}

// keyNameMap maps lowercase names and aliases to canonical identifiers.
var keyNameMap map[string]string

func init() {
	keyNameMap = make(map[string]string, len(specialKeys)+16)
	for _, name := range specialKeys {
		keyNameMap[strings.ToLower(name)] = name
	}
	for alias, name := range map[string]string{
		"cr":        KeyReturn,
		"ret":       KeyReturn,
		"esc":       KeyEscape,
		"bs":        KeyDelete,
		"backspace": KeyDelete,
		"del":       KeyDelete,
		"fwddel":    KeyForwardDelete,
		"pgup":      KeyPageUp,
		"pgdn":      KeyPageDown,
		"left":      KeyLeftArrow,
		"right":     KeyRightArrow,
		"up":        KeyUpArrow,
		"down":      KeyDownArrow,
	} {
		keyNameMap[alias] = name
	}
}

// NameForCode returns the canonical identifier for a named virtual key code.
func NameForCode(code Code) (string, bool) {
	name, ok := specialKeys[code]
	return name, ok
}

// CodeForName returns the virtual key code of a canonical named key.
func CodeForName(name string) (Code, bool) {
	for code, n := range specialKeys {
		if n == name {
			return code, true
		}
	}
	return 0, false
}

// KeyFromName returns the canonical identifier for a key name or alias
// (case-insensitive). Returns "" if the name is not a named key.
func KeyFromName(name string) string {
	return keyNameMap[strings.ToLower(strings.TrimSpace(name))]
}

// IsNamedKey reports whether id is one of the canonical named keys.
func IsNamedKey(id string) bool {
	n, ok := keyNameMap[strings.ToLower(id)]
	return ok && n == id
}

// DisplayName returns the glyph for a key identifier, or the identifier
// itself when it has no override.
func DisplayName(id string) string {
	if glyph, ok := displayOverrides[id]; ok {
		return glyph
	}
	return id
}

// String implements fmt.Stringer.
func (c Code) String() string {
	if name, ok := specialKeys[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(0x%02X)", uint16(c))
}
