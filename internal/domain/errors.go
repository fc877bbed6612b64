package domain

import (
	"errors"
)

var (
	// ErrInvalidArgument is returned when a required field is missing or blank.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is returned when a chat or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by stores when a uniqueness constraint rejects a write.
	ErrConflict = errors.New("conflict")
	// ErrGenerationFailed is returned when the completion provider produced no usable reply.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrStoreFailure wraps any failure of the durable store.
	ErrStoreFailure = errors.New("store failure")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

// Required returns a ValidationError for a missing or blank field.
func Required(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "es requerido"}
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

// Is makes errors.Is(err, ErrInvalidArgument) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found"
}

// Is makes errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// GenerationError carries a bounded diagnostic for a failed provider call.
type GenerationError struct {
	Detail string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Detail == "" {
		return ErrGenerationFailed.Error()
	}
	return ErrGenerationFailed.Error() + ": " + e.Detail
}

func (e *GenerationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrGenerationFailed}
	}
	return []error{ErrGenerationFailed, e.Err}
}
