// Package apperr defines the domain error taxonomy. Every error a
// service returns to a handler carries a stable Kind so the HTTP layer
// can map it to a status code without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindPreconditionFailed Kind = "precondition_failed"
	KindForbidden          Kind = "forbidden"
	KindConflict           Kind = "conflict"
	KindUnauthorized       Kind = "unauthorized"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func PreconditionFailed(format string, args ...any) *Error {
	return New(KindPreconditionFailed, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return New(KindUnauthorized, format, args...)
}

// KindOf extracts the Kind from err, or "" if err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps a domain error to its response status. Unknown errors
// map to 500.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
