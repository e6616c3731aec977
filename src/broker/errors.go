package broker

import (
	"errors"
	"fmt"
)

// ErrorKind classifies broker failures so the API boundary can return a
// structured kind alongside the human-readable message.
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindNotFound        ErrorKind = "not_found"
	KindAlreadyTerminal ErrorKind = "already_terminal"
	KindUpstream        ErrorKind = "upstream"
	KindDecode          ErrorKind = "decode"
	KindConfiguration   ErrorKind = "configuration"
	KindInternal        ErrorKind = "internal"
)

// Error is a classified broker error. It wraps an optional cause so
// errors.Is/As keep working through it.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified error without a cause.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds a classified error around a cause.
func WrapError(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf extracts the kind of a classified error, or KindInternal for
// anything else (including nil-safe use at call sites that checked err).
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindInternal
}
