// Package apperr defines the error kinds surfaced by the API and how they map
// onto HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	Internal Kind = iota
	InvalidCredentials
	InvalidToken
	Forbidden
	NotFound
	Conflict
	Validation
	Upstream
)

// Error carries a user facing message and an optional cause
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NewNotFound(message string) *Error   { return New(NotFound, message) }
func NewConflict(message string) *Error   { return New(Conflict, message) }
func NewValidation(message string) *Error { return New(Validation, message) }
func NewForbidden(message string) *Error  { return New(Forbidden, message) }

func NewUpstream(message string, err error) *Error {
	return Wrap(Upstream, message, err)
}

// KindOf returns Internal for errors that are not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func Status(kind Kind) int {
	switch kind {
	case InvalidCredentials, InvalidToken:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Validation:
		return http.StatusBadRequest
	case Upstream:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Message returns the user facing message; internal errors are not exposed
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "An internal error occurred."
}
