package application

import (
	"errors"
	"time"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrInvalidTransition is returned when a lifecycle change is not allowed from the current status.
	ErrInvalidTransition = errors.New("application: invalid status transition")
	// ErrConflict is returned when a requested instant collides with an existing booking.
	ErrConflict = errors.New("application: time slot already occupied")
)

// ConflictError reports a booking collision together with the closest free instant
// found by the next-available search, if any.
type ConflictError struct {
	NextAvailable *time.Time
	ConflictingID string
}

// Error implements the error interface.
func (c *ConflictError) Error() string {
	return ErrConflict.Error()
}

// Is lets errors.Is match ErrConflict.
func (c *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	Message     string
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if v.Message != "" {
		return v.Message
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && (len(v.FieldErrors) > 0 || v.Message != "")
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

func newValidationError(message, field, fieldMessage string) *ValidationError {
	vErr := &ValidationError{Message: message}
	if field != "" {
		vErr.add(field, fieldMessage)
	}
	return vErr
}
