package keymap

import (
	"encoding/json"
	"fmt"

	"github.com/dshills/chordinate/internal/input/key"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// MigrateLegacy rewrites older binding documents into the current layout
// and reports how many fields changed.
//
// Older documents stored modifiers as a raw bit pattern ("modifiers": 9)
// and could omit the action type, which then defaulted to a shell command.
func MigrateLegacy(data []byte) ([]byte, int, error) {
	if !gjson.ValidBytes(data) {
		return nil, 0, fmt.Errorf("decoding bindings: invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, 0, ErrNotArray
	}

	changed := 0
	var err error
	out := data

	root.ForEach(func(bi, binding gjson.Result) bool {
		if binding.Get("action").Exists() && !binding.Get("action.type").Exists() {
			path := fmt.Sprintf("%d.action.type", bi.Int())
			if out, err = sjson.SetBytes(out, path, string(ActionShellCommand)); err != nil {
				return false
			}
			changed++
		}

		binding.Get("steps").ForEach(func(si, step gjson.Result) bool {
			mods := step.Get("modifiers")
			if mods.Type != gjson.Number {
				return true
			}
			raw, mErr := legacyModifiers(mods)
			if mErr != nil {
				err = fmt.Errorf("binding %d step %d: %w", bi.Int(), si.Int(), mErr)
				return false
			}
			path := fmt.Sprintf("%d.steps.%d.modifiers", bi.Int(), si.Int())
			if out, err = sjson.SetRawBytes(out, path, raw); err != nil {
				return false
			}
			changed++
			return true
		})
		return err == nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("migrating bindings: %w", err)
	}

	return out, changed, nil
}

// legacyModifiers converts a numeric modifier field to its object form.
func legacyModifiers(v gjson.Result) ([]byte, error) {
	var m key.Modifier
	if err := json.Unmarshal([]byte(v.Raw), &m); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}
