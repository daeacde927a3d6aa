// Package apperr classifies errors by semantic kind so the read-API boundary
// can map them to HTTP status without every caller constructing a typed
// error by hand.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind names the taxonomy from the error handling design: each value maps to
// exactly one HTTP status at the read-API boundary.
type Kind string

const (
	KindInternal     Kind = "Internal"
	KindDatabase     Kind = "DatabaseError"
	KindValidation   Kind = "ValidationError"
	KindNotFound     Kind = "NotFound"
	KindUnauthorized Kind = "Unauthorized"
	KindForbidden    Kind = "Forbidden"
	KindBadRequest   Kind = "BadRequest"
)

// Error is an application error carrying an explicit Kind so the HTTP layer
// never has to guess.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// StatusCode returns the HTTP status for e.Kind.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindDatabase, KindInternal:
		return http.StatusInternalServerError
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NotFound is a dedicated constructor for the "BlockNotFound(hash)"-style
// repository error named in the error handling design; it always maps to
// 404.
func NotFound(resource, id string) *Error {
	return New(KindNotFound, fmt.Sprintf("%s not found: %s", resource, id))
}

// Classify maps an arbitrary error to a Kind by keyword, mirroring the
// read-API's "simple keyword-based classifier on the error message": it is
// the fallback for errors that did not originate as an *Error (e.g. bubbled
// up from a third-party driver).
func Classify(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "database") || strings.Contains(msg, "sql"):
		return KindDatabase
	case strings.Contains(msg, "validation"):
		return KindValidation
	case strings.Contains(msg, "not found"):
		return KindNotFound
	case strings.Contains(msg, "authentication") || strings.Contains(msg, "unauthorized"):
		return KindUnauthorized
	default:
		return KindInternal
	}
}

// StatusCode maps an arbitrary error straight to an HTTP status, applying
// Classify first when it is not already an *Error.
func StatusCode(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.StatusCode()
	}
	return (&Error{Kind: Classify(err)}).StatusCode()
}

// Body is the {success:false, error:{message, code}} envelope the read-API
// writes for every non-2xx response.
type Body struct {
	Success bool      `json:"success"`
	Error   BodyError `json:"error"`
}

// BodyError is the nested error object in Body.
type BodyError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ToBody renders err as the wire body, using Classify to pick Code when err
// is not already an *Error.
func ToBody(err error) Body {
	var appErr *Error
	var kind Kind
	if errors.As(err, &appErr) {
		kind = appErr.Kind
	} else {
		kind = Classify(err)
	}
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return Body{Success: false, Error: BodyError{Message: msg, Code: string(kind)}}
}
