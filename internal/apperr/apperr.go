// Package apperr defines the error taxonomy shared by every component that
// sits behind the scheduling service.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the caller should react to it.
type Kind int

const (
	Internal Kind = iota
	// Validation means the input was malformed; fix it and resubmit.
	Validation
	NotFound
	// Conflict is a concurrent-state collision; reobserve and retry.
	Conflict
	Forbidden
	// Rejected is a business-rule refusal (too late, invalid state,
	// unavailable). Resubmitting the same request will not help.
	Rejected
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Forbidden:
		return "forbidden"
	case Rejected:
		return "rejected"
	default:
		return "internal"
	}
}

// Retryable reports whether the caller may retry after reobserving state.
func (k Kind) Retryable() bool {
	return k == Conflict
}

// Error is a coded application error. Two errors with the same code match
// under errors.Is regardless of their message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// ErrValidation matches every validation failure produced by Invalid.
var ErrValidation = New(Validation, "validation_error", "invalid input")

// Invalid builds a validation error with a specific message.
func Invalid(format string, args ...any) error {
	return &Error{
		Kind:    Validation,
		Code:    ErrValidation.Code,
		Message: fmt.Sprintf(format, args...),
	}
}

// With returns an error matching base but carrying a more specific message.
func With(base *Error, format string, args ...any) error {
	return &Error{
		Kind:    base.Kind,
		Code:    base.Code,
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf walks the chain and returns the kind of the first *Error found.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// CodeOf returns the code of the first *Error in the chain, or "internal_error".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal_error"
}
