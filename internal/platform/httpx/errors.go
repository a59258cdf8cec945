// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the domain layer.
var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("resource not found")
	ErrConflict        = errors.New("conflict")
	ErrUpstream        = errors.New("upstream failure")
	ErrConfiguration   = errors.New("configuration error")
	ErrStorage         = errors.New("storage failure")
)

// Error pairs a taxonomy sentinel with the exact message shown to the caller.
type Error struct {
	Kind    error
	Message string
}

// NewError builds an Error of the given kind.
func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// StatusFor maps an error onto the HTTP status of its taxonomy class.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err as {"error": message} with the mapped status.
// Messages of *Error values are passed through verbatim; storage failures
// without an explicit message are reported generically.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	var typed *Error
	switch {
	case errors.As(err, &typed):
		ErrorJSON(w, status, typed.Error())
	case errors.Is(err, ErrStorage):
		ErrorJSON(w, status, http.StatusText(status))
	default:
		ErrorJSON(w, status, err.Error())
	}
}
