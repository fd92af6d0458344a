package query

import (
	"errors"
	"fmt"
)

// ErrInvalidQuery is the sentinel all validation failures wrap.
var ErrInvalidQuery = errors.New("invalid query")

// ValidationError describes a malformed or incomplete query field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid query: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidQuery
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
