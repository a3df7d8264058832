package service

import (
	"errors"
	"fmt"

	"hokenhub/internal/repository"
)

// Kind classifies a domain failure; handlers map it to an HTTP status
type Kind string

const (
	KindValidation         Kind = "ValidationError"
	KindAuth               Kind = "AuthError"
	KindUnauthenticated    Kind = "Unauthenticated"
	KindTokenInvalid       Kind = "TokenInvalid"
	KindTokenExpired       Kind = "TokenExpired"
	KindApprovalPending    Kind = "ApprovalPending"
	KindFacilityDenied     Kind = "FacilityAccessDenied"
	KindForbidden          Kind = "Forbidden"
	KindNotFound           Kind = "NotFound"
	KindConflict           Kind = "Conflict"
	KindInternal           Kind = "InternalError"
	KindInvariantViolation Kind = "InvariantViolation"
)

const internalMessage = "Internal server error"

// Error is a domain failure with a client-safe message. Err keeps the cause
// for logging and is never rendered.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func internalError(err error) *Error {
	return &Error{Kind: KindInternal, Message: internalMessage, Err: err}
}

// KindOf returns the Kind carried by err, or KindInternal for foreign errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message for err
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return internalMessage
}

// storeError maps a repository failure to a domain error
func storeError(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return newError(KindNotFound, notFound)
	case errors.Is(err, repository.ErrConflict):
		return &Error{Kind: KindConflict, Message: "Resource already exists", Err: err}
	default:
		return internalError(err)
	}
}
