package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrImmutableField      = errors.New("immutable field")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrIntegrity           = errors.New("integrity failure")
	ErrValidation          = errors.New("validation failed")

	// ErrConflict reports a lost optimistic-concurrency race or a busy store.
	// Units of work that fail with it are retried and it does not reach callers
	// unless the retry budget runs out.
	ErrConflict = errors.New("concurrent modification")
)

// FieldError is a single field-level violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violation found for one input.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Has reports whether field has at least one violation.
func (e *ValidationError) Has(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Messages returns the messages recorded for field.
func (e *ValidationError) Messages(field string) []string {
	var out []string
	for _, fe := range e.Errors {
		if fe.Field == field {
			out = append(out, fe.Message)
		}
	}
	return out
}

// NotFoundError reports a missing ledger, transaction or user, or one that
// does not belong to the requested owner.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type ImmutableFieldError struct {
	Field string
}

func (e *ImmutableFieldError) Error() string {
	return fmt.Sprintf("field %q cannot be changed", e.Field)
}

func (e *ImmutableFieldError) Is(target error) bool { return target == ErrImmutableField }

// ConstraintViolationError is a store-level uniqueness violation.
type ConstraintViolationError struct {
	Constraint string
	Err        error
}

func (e *ConstraintViolationError) Error() string {
	if e.Constraint == "" {
		return "unique constraint violated"
	}
	return fmt.Sprintf("unique constraint %q violated", e.Constraint)
}

func (e *ConstraintViolationError) Is(target error) bool { return target == ErrConstraintViolation }
func (e *ConstraintViolationError) Unwrap() error { return e.Err }

// IntegrityError is a failed unit of work. Nothing it touched was committed.
type IntegrityError struct {
	Op  string
	Err error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: integrity failure: %v", e.Op, e.Err)
}

func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }
func (e *IntegrityError) Unwrap() error { return e.Err }

// IsDomainError reports whether err belongs to the caller-facing taxonomy
// and should propagate as is.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrImmutableField) ||
		errors.Is(err, ErrConstraintViolation) ||
		errors.Is(err, ErrIntegrity)
}
