package dispatch

import "errors"

// Sentinel errors for the dispatch package.
var (
	// ErrEmptyCommand is returned for a shell action with a blank command.
	ErrEmptyCommand = errors.New("empty shell command")

	// ErrInvalidURL is returned for an open-URL action that does not parse
	// to an absolute URL.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrUnknownAction is returned for an unrecognized action type.
	ErrUnknownAction = errors.New("unknown action type")

	// ErrClosed is logged for actions dispatched after Close.
	ErrClosed = errors.New("dispatcher is closed")

	// ErrSupervisorClosed is returned when starting a process after Close.
	ErrSupervisorClosed = errors.New("supervisor is closed")

	// ErrProcessLimit is returned when too many processes are running.
	ErrProcessLimit = errors.New("process limit reached")

	// ErrProcessAlreadyStarted is returned when starting a process twice.
	ErrProcessAlreadyStarted = errors.New("process already started")
)
