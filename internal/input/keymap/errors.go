package keymap

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Registry and codec errors.
var (
	ErrNotFound      = errors.New("binding not found")
	ErrDuplicateID   = errors.New("duplicate binding id")
	ErrInvalidAction = errors.New("invalid action type")
	ErrNotArray      = errors.New("expected a JSON array of bindings")
)

// ValidationError describes a binding that cannot be stored.
type ValidationError struct {
	ID      uuid.UUID
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.ID == uuid.Nil {
		return fmt.Sprintf("binding: %s %s", e.Field, e.Message)
	}
	return fmt.Sprintf("binding %s: %s %s", e.ID, e.Field, e.Message)
}
