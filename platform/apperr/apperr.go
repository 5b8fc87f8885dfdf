// Package apperr provides typed application errors. Services return these and
// the HTTP layer maps them to status codes, so no handler switches on error
// strings.
package apperr

import (
	"fmt"
	"net/http"
)

// Kind categorizes an error for transport mapping.
type Kind int

const (
	// KindUnknown is the default when no kind was assigned.
	KindUnknown Kind = iota
	// KindNotFound marks a missing resource.
	KindNotFound
	// KindValidation marks invalid input data.
	KindValidation
	// KindConflict marks a clash with existing state, e.g. an invalid
	// status transition or a duplicate row.
	KindConflict
	// KindForbidden marks an action the caller may not perform.
	KindForbidden
	// KindUnauthorized marks missing or failed authentication.
	KindUnauthorized
	// KindBadRequest marks a malformed request.
	KindBadRequest
	// KindInternal marks an unexpected internal failure.
	KindInternal
	// KindGone marks a resource that existed but is no longer usable,
	// e.g. an expired invite link.
	KindGone
)

// Error is a kinded application error.
type Error struct {
	Kind    Kind
	Message string
	Op      string      // operation that failed (optional)
	Err     error       // underlying cause (optional)
	Details interface{} // extra payload for the response body (optional)
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying cause so errors.Is/As see through the wrapper.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to an HTTP status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInternal:
		return http.StatusInternalServerError
	case KindGone:
		return http.StatusGone
	default:
		return http.StatusBadRequest
	}
}

// New creates an error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error with the given kind and message around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp attaches the failing operation name.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails attaches a details payload for the response body.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// Convenience constructors for the common kinds.

func NotFound(message string) *Error     { return New(KindNotFound, message) }
func Validation(message string) *Error   { return New(KindValidation, message) }
func Conflict(message string) *Error     { return New(KindConflict, message) }
func Forbidden(message string) *Error    { return New(KindForbidden, message) }
func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }
func BadRequest(message string) *Error   { return New(KindBadRequest, message) }
func Internal(message string) *Error     { return New(KindInternal, message) }
func Gone(message string) *Error         { return New(KindGone, message) }

// GetKind extracts the kind from an error, KindUnknown when it is not an *Error.
func GetKind(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
