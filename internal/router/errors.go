package router

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrRouteNotFound means no venue, tier or hop combination produced a positive quote.
	ErrRouteNotFound = errors.New("route not found")
)

// ValidationError reports a rejected input before any side effect. Err optionally carries a
// more specific sentinel such as a deadline error.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Invalid builds a *ValidationError wrapping err.
func Invalid(field, reason string, err error) error {
	return &ValidationError{Field: field, Reason: reason, Err: err}
}
