// Package keymap holds chord bindings and their persistence.
//
// A Binding maps an ordered keystroke sequence to an Action (run a shell
// command or open a URL). The Registry keeps bindings in a significant
// order: when several bindings match the keys just typed, the earliest
// one wins.
//
// # Persistence
//
// Bindings are stored as a JSON array:
//
//	[{"id": "...", "name": "Open docs",
//	  "steps": [{"key": "K", "modifiers": {"command": true, ...}}],
//	  "action": {"type": "openURL", "payload": "https://..."}}]
//
// Decode migrates documents that stored modifiers as a raw bit pattern.
// FileStore writes atomically; Persister saves registry changes after a
// short quiet period; Watcher reloads the registry when another process
// rewrites the file.
//
// # Usage
//
//	reg, _ := keymap.NewRegistry()
//	reg.Add(keymap.NewBinding("Open docs",
//	    key.MustParseSequence("Cmd+K Cmd+D"),
//	    keymap.OpenURL("https://example.com")))
//
//	if b, ok := reg.Lookup(window); ok {
//	    // b.Action
//	}
package keymap
