// Package apperror classifies failures into the kinds the HTTP layer maps to
// status codes.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of a failure.
type Kind int

const (
	Internal Kind = iota
	Validation
	Unauthorized
	Forbidden
	NotFound
	Conflict
	Upstream
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Upstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case Validation:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Upstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure with a client-facing message.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetails attaches structured details rendered next to the message.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies err under kind, keeping it for errors.Is/As and logs.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NewValidation(message string) *Error   { return New(Validation, message) }
func NewUnauthorized(message string) *Error { return New(Unauthorized, message) }
func NewForbidden(message string) *Error    { return New(Forbidden, message) }
func NewNotFound(message string) *Error     { return New(NotFound, message) }
func NewConflict(message string) *Error     { return New(Conflict, message) }

// KindOf reports the kind of err; unclassified errors are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
