// Package input detects chord sequences in a live keystroke stream.
//
// The Engine keeps a rolling window of recent keystrokes. The window is
// bounded by the longest binding's step count and cleared after an
// inactivity timeout. After every keystroke the engine checks whether the
// trailing keystrokes equal the full steps of a binding; the first such
// binding in registry order triggers, the window is cleared, observers are
// notified and the action is handed to the dispatcher.
//
// # Input Flow
//
//	RawEvent -> interceptors -> key.Normalize -> window -> keymap.FirstMatch -> Dispatcher
//
// Interceptors see raw events first and may consume them. The binding
// recorder is installed this way so recorded keys never trigger bindings.
//
// # Usage
//
//	reg, _ := keymap.NewRegistry(bindings...)
//	engine := input.NewEngine(reg, input.WithDispatcher(d))
//	engine.OnTrigger(func(b keymap.Binding) { ... })
//	engine.Feed(ev)
//
// # Subpackages
//
//   - key: keystrokes, modifiers, sequences and normalization
//   - keymap: bindings, the registry and persistence
//   - recorder: captures a sequence for a new binding
//   - terminal: a terminal input source
package input
