package key

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rivo/uniseg"
)

// Parse errors
var (
	ErrEmptySpec        = errors.New("empty key specification")
	ErrInvalidSpec      = errors.New("invalid key specification")
	ErrUnmatchedBracket = errors.New("unmatched bracket in key specification")
)

// glyphModifiers maps modifier glyphs to modifiers for "⌘⇧K" notation.
var glyphModifiers = map[rune]Modifier{
	'⌘': ModCommand,
	'⌥': ModOption,
	'⌃': ModControl,
	'⇧': ModShift,
}

// Parse parses a key specification string into a Keystroke.
//
// Supported formats:
//   - Single character: "a", "K", "1", "@" (letters are uppercased)
//   - Named keys: "Return", "Escape", "Tab", "Space", "F5", "LeftArrow"
//   - With modifiers: "Cmd+K", "Opt+F4", "Ctrl+Shift+Return"
//   - Glyphs: "⌘K", "⌃⇧↩︎"
//   - Vim-style: "<D-k>", "<C-S-CR>", "<Esc>"
func Parse(spec string) (Keystroke, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Keystroke{}, ErrEmptySpec
	}

	if strings.HasPrefix(spec, "<") && len(spec) > 1 {
		if !strings.HasSuffix(spec, ">") {
			return Keystroke{}, ErrUnmatchedBracket
		}
		return parseVimStyle(spec[1 : len(spec)-1])
	}

	if _, ok := glyphModifiers[[]rune(spec)[0]]; ok {
		return parseGlyphStyle(spec)
	}

	if len(spec) > 1 && strings.Contains(spec, "+") {
		return parseModifierStyle(spec)
	}

	return parseKeyWithModifiers(spec, ModNone)
}

// parseVimStyle parses Vim-style notation like "D-k", "C-S-CR", "Esc".
func parseVimStyle(inner string) (Keystroke, error) {
	inner = strings.TrimSpace(inner)
	if inner == "" {
		return Keystroke{}, ErrInvalidSpec
	}

	parts := strings.Split(inner, "-")
	keyPart := parts[len(parts)-1]
	if keyPart == "" && len(parts) > 1 {
		// "<C-->" names the minus key.
		keyPart = "-"
		parts = parts[:len(parts)-1]
	}

	var mods Modifier
	for _, p := range parts[:len(parts)-1] {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "c":
			mods = mods.With(ModControl)
		case "a", "m":
			mods = mods.With(ModOption)
		case "s":
			mods = mods.With(ModShift)
		case "d":
			mods = mods.With(ModCommand)
		default:
			return Keystroke{}, fmt.Errorf("%w: unknown modifier %q", ErrInvalidSpec, p)
		}
	}

	return parseKeyWithModifiers(keyPart, mods)
}

// parseModifierStyle parses "Cmd+K" style notation.
func parseModifierStyle(spec string) (Keystroke, error) {
	var keyPart, modPart string
	if strings.HasSuffix(spec, "++") {
		// "Cmd++" names the plus key.
		keyPart = "+"
		modPart = strings.TrimSuffix(spec, "++")
	} else {
		i := strings.LastIndex(spec, "+")
		modPart, keyPart = spec[:i], spec[i+1:]
	}

	var mods Modifier
	for _, p := range strings.Split(modPart, "+") {
		mod := ModifierFromName(p)
		if mod == ModNone {
			return Keystroke{}, fmt.Errorf("%w: unknown modifier %q", ErrInvalidSpec, strings.TrimSpace(p))
		}
		mods = mods.With(mod)
	}

	return parseKeyWithModifiers(keyPart, mods)
}

// parseGlyphStyle parses leading modifier glyphs followed by a key.
func parseGlyphStyle(spec string) (Keystroke, error) {
	var mods Modifier
	rest := spec
	for rest != "" {
		r := []rune(rest)[0]
		mod, ok := glyphModifiers[r]
		if !ok {
			break
		}
		mods = mods.With(mod)
		rest = rest[len(string(r)):]
	}
	if rest == "" {
		return Keystroke{}, fmt.Errorf("%w: no key in %q", ErrInvalidSpec, spec)
	}
	return parseKeyWithModifiers(rest, mods)
}

// parseKeyWithModifiers resolves a key part with already-known modifiers.
func parseKeyWithModifiers(keyPart string, mods Modifier) (Keystroke, error) {
	if strings.TrimSpace(keyPart) != "" {
		keyPart = strings.TrimSpace(keyPart)
	}
	if keyPart == "" {
		return Keystroke{}, ErrInvalidSpec
	}

	if name := KeyFromName(keyPart); name != "" {
		return NewKeystroke(name, mods), nil
	}
	if name := keyFromGlyph(keyPart); name != "" {
		return NewKeystroke(name, mods), nil
	}

	if uniseg.GraphemeClusterCount(keyPart) == 1 {
		return NewKeystroke(CanonicalKey(keyPart), mods), nil
	}

	return Keystroke{}, fmt.Errorf("%w: unknown key %q", ErrInvalidSpec, keyPart)
}

// keyFromGlyph maps a display glyph back to its key identifier.
func keyFromGlyph(glyph string) string {
	for id, g := range displayOverrides {
		if g == glyph || strings.TrimSuffix(g, "\ufe0e") == glyph {
			return id
		}
	}
	return ""
}

// MustParse parses a key specification and panics on error.
// Use only for known-valid specs in initialization code.
func MustParse(spec string) Keystroke {
	k, err := Parse(spec)
	if err != nil {
		panic("invalid key specification: " + spec + ": " + err.Error())
	}
	return k
}

// ParseSequence parses whitespace-separated keystroke specifications,
// e.g. "Cmd+K Cmd+C".
func ParseSequence(spec string) (Sequence, error) {
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return nil, ErrEmptySpec
	}

	seq := make(Sequence, 0, len(fields))
	for _, f := range fields {
		k, err := Parse(f)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", len(seq)+1, err)
		}
		seq = append(seq, k)
	}
	return seq, nil
}

// MustParseSequence is like ParseSequence but panics on error.
func MustParseSequence(spec string) Sequence {
	seq, err := ParseSequence(spec)
	if err != nil {
		panic("invalid key sequence: " + spec + ": " + err.Error())
	}
	return seq
}

// NormalizeSpec parses and re-formats a key specification to its canonical form.
func NormalizeSpec(spec string) (string, error) {
	k, err := Parse(spec)
	if err != nil {
		return "", err
	}
	return k.String(), nil
}
