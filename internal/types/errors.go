package types

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a record does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a uniqueness key is already taken.
	ErrConflict = errors.New("already exists")
	// ErrStoreUnavailable marks a transient backend failure that may be retried.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// FieldError is a single field violation.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError carries every violation found in one input.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+" "+fe.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError returns nil when there are no violations.
func NewValidationError(violations []FieldError) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Errors: violations}
}

// Violations extracts the field errors from err, or nil if err is not a validation error.
func Violations(err error) []FieldError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Errors
	}
	return nil
}
