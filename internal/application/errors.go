package application

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission
	// for an operation. The message is deliberately generic; which roles would
	// have succeeded is never disclosed.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist or is
	// not visible to the caller.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a create collides with an existing record.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned for any login failure.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountDisabled is returned when a disabled account authenticates.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrSessionExpired is returned when a session token has lapsed.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned when a session token was revoked.
	ErrSessionRevoked = errors.New("application: session revoked")
)

// ConflictError reports that an operation's precondition about the actor's
// current open/active timer state does not hold. It is always surfaced to the
// caller verbatim and never auto-resolved.
type ConflictError struct {
	Message string
	// ActiveWorkOrderID identifies the work order already being timed, when
	// that is what blocks the operation.
	ActiveWorkOrderID string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e == nil {
		return ""
	}
	if e.ActiveWorkOrderID != "" {
		return fmt.Sprintf("%s (work order %s)", e.Message, e.ActiveWorkOrderID)
	}
	return e.Message
}

// InvalidTransitionError reports a lifecycle transition not present in the
// transition table. The state machine never silently no-ops.
type InvalidTransitionError struct {
	From   Status
	Action Action
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("cannot %s a work order in status %s", e.Action, e.From)
}

// DataIntegrityError reports an invariant found violated on read, indicating
// a prior bug or bypassed store constraint. It is fatal to the operation and
// logged distinctly from ordinary client errors.
type DataIntegrityError struct {
	Message string
}

// Error implements the error interface.
func (e *DataIntegrityError) Error() string {
	if e == nil {
		return ""
	}
	return "data integrity violation: " + e.Message
}

// ValidationError captures field level validation issues that callers can
// surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
