// Package dispatch executes the actions of triggered bindings.
//
// Shell actions run as `<shell> -lc <command>` with output discarded.
// URL actions are validated and handed to the system browser. Every
// action runs in its own goroutine, is never retried and has no timeout;
// the outcome is logged and reported to result listeners.
package dispatch
