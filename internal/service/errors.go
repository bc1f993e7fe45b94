package service

import (
	"errors"
	"fmt"
)

// Kind is the stable, client-visible category of a domain error
type Kind string

// Error kinds
const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindAuthorization     Kind = "authorization"
	KindInvalidTransition Kind = "invalid_transition"
)

// Error is a domain error with a stable kind and a human-readable message
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ValidationError reports malformed or out-of-range input
func ValidationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a referenced id that does not exist
func NotFoundError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// AuthorizationError reports an actor not permitted to perform the action
func AuthorizationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError reports a status change the state machine rejects from the current status
func InvalidTransitionError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a domain error, or "" for any other error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
