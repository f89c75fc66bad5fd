package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to react to it (HTTP status, retry).
type Kind string

const (
	KindInternal          Kind = "internal"
	KindConnectivity      Kind = "connectivity"
	KindRefresh           Kind = "refresh"
	KindExecution         Kind = "execution"
	KindValidation        Kind = "validation"
	KindConflict          Kind = "conflict"
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
)

// Error is a typed orchestrator error that carries a Kind.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches sentinel errors by kind and message so wrapped copies still compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the kind of the outermost typed error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if typed, ok := As(err); ok {
		return typed.Kind
	}
	return KindInternal
}

var (
	// ErrNotConnected is returned when an operation needs a connected identity.
	ErrNotConnected = New(KindConnectivity, "identity not connected")
	// ErrSessionClosed is returned when the session was torn down mid-operation.
	ErrSessionClosed = New(KindConnectivity, "session closed")
	// ErrIntentInProgress is returned when an intent is already pending or executing.
	ErrIntentInProgress = New(KindConflict, "an intent is already in progress")
	// ErrIntentNotFound is returned when the id does not name the current intent.
	ErrIntentNotFound = New(KindNotFound, "intent not found")
	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = New(KindInvalidTransition, "invalid intent status transition")
	// ErrArchiveUnavailable is returned when no intent journal is configured.
	ErrArchiveUnavailable = New(KindConnectivity, "intent archive unavailable")
)
