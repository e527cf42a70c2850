package types

import (
	"errors"
	"fmt"
)

// NotFoundError indicates that no live row exists for the named element at
// the event's occurred time
type NotFoundError struct {
	Element EventKind
	ID      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Element, e.ID)
}

// ConflictError indicates a duplicate event id, a duplicate live element,
// or a retrograde occurred time
type ConflictError struct {
	Element EventKind
	ID      string
	Reason  string
}

func (e *ConflictError) Error() string {
	if e.Element != "" {
		return fmt.Sprintf("conflict on %s %q: %s", e.Element, e.ID, e.Reason)
	}
	return fmt.Sprintf("conflict: %s", e.Reason)
}

// ValidationError indicates a malformed event, URL, or configuration value
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransientError wraps a retryable failure such as a deadlock or a network
// timeout. The persister and router retry these up to their configured
// budget.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// UnavailableError indicates the trip-switch is set and writes are
// refused until an operator resets it
type UnavailableError struct {
	Reason string
}

func (e *UnavailableError) Error() string {
	if e.Reason == "" {
		return "service unavailable: trip switch is set"
	}
	return fmt.Sprintf("service unavailable: %s", e.Reason)
}

// FatalError indicates an invariant violation in the store, such as a
// remove cascade leaving a dangling live relation. The service crashes
// after logging rather than continue corrupt.
type FatalError struct {
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal invariant violation: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("fatal invariant violation: %s", e.Reason)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is or wraps a NotFoundError
func IsNotFound(err error) bool {
	var t *NotFoundError
	return errors.As(err, &t)
}

// IsConflict reports whether err is or wraps a ConflictError
func IsConflict(err error) bool {
	var t *ConflictError
	return errors.As(err, &t)
}

// IsValidation reports whether err is or wraps a ValidationError
func IsValidation(err error) bool {
	var t *ValidationError
	return errors.As(err, &t)
}

// IsTransient reports whether err is or wraps a TransientError
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsUnavailable reports whether err is or wraps an UnavailableError
func IsUnavailable(err error) bool {
	var t *UnavailableError
	return errors.As(err, &t)
}

// IsFatal reports whether err is or wraps a FatalError
func IsFatal(err error) bool {
	var t *FatalError
	return errors.As(err, &t)
}
