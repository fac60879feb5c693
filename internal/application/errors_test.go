package application

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withMessage := &ValidationError{Message: "No clinic available for appointment"}
	if got := withMessage.Error(); got != "No clinic available for appointment" {
		t.Fatalf("expected explicit message, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if (&ValidationError{}).HasErrors() {
		t.Fatalf("expected HasErrors to report false for empty error")
	}
	if !(&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors() {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
	if !(&ValidationError{Message: "bad request"}).HasErrors() {
		t.Fatalf("expected HasErrors to report true when a message is present")
	}
}

func TestValidationError_Add(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected add to populate map, got %q", got)
	}

	built := newValidationError("message", "field", "detail")
	if built.Message != "message" || built.FieldErrors["field"] != "detail" {
		t.Fatalf("unexpected validation error %+v", built)
	}
	if bare := newValidationError("message", "", ""); len(bare.FieldErrors) != 0 {
		t.Fatalf("expected no field errors, got %v", bare.FieldErrors)
	}
}

func TestConflictError_MatchesSentinel(t *testing.T) {
	t.Parallel()

	next := time.Date(2025, 6, 2, 11, 30, 0, 0, time.UTC)
	err := fmt.Errorf("book: %w", &ConflictError{NextAvailable: &next})

	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ConflictError to match ErrConflict")
	}
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected errors.As to find ConflictError")
	}
	if !conflict.NextAvailable.Equal(next) {
		t.Fatalf("expected next available %s, got %s", next, conflict.NextAvailable)
	}
	if conflict.Error() != ErrConflict.Error() {
		t.Fatalf("unexpected message %q", conflict.Error())
	}
}
