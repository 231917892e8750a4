package service

import (
	"errors"
	"fmt"

	"ainews/internal/storage"
)

var (
	// ErrInvalidInput is returned when argument validation fails.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnavailable is returned when the record store cannot be reached.
	// It matches storage.ErrStoreUnavailable through errors.Is.
	ErrStoreUnavailable = storage.ErrStoreUnavailable
)

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Is makes every ValidationError match ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
