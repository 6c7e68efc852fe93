package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrScopeViolation = errors.New("acting owner does not own the target")
	ErrConflict       = errors.New("conflicts with existing state")
	ErrConsistency    = errors.New("consistency violation")
)

// ValidationError describes malformed input on a single field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewValidationError creates a ValidationError for the given field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ConflictError reports a uniqueness clash with existing state
type ConflictError struct {
	Message string
}

// NewConflictError creates a ConflictError
func NewConflictError(message string) error {
	return &ConflictError{Message: message}
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ConsistencyError reports a derived-state disagreement. Observing one is a bug.
type ConsistencyError struct {
	Entity string
	Detail string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Entity, e.Detail)
}

func (e *ConsistencyError) Is(target error) bool {
	return target == ErrConsistency
}
