// Package vibarrerr defines the closed set of error kinds described in
// spec §7. Callers classify failures by kind instead of matching strings or
// relying on sentinel values scattered across packages.
package vibarrerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the error kinds from spec §7.
type Kind string

const (
	ConfigMissing      Kind = "config_missing"
	ExternalUnavailable Kind = "external_unavailable"
	NotFound           Kind = "not_found"
	Conflict           Kind = "conflict"
	Forbidden          Kind = "forbidden"
	Invalid            Kind = "invalid"
	Fatal              Kind = "fatal"
)

// Error wraps a cause with a Kind and an operator/user-facing message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a Kind-tagged error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a Kind and message to an existing error, preserving it as
// the cause so errors.Is/errors.As reach it through Unwrap.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: errors.WithStack(cause)}
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind == kind
	}
	return false
}

// KindOf returns the Kind of err, or "" if err is not a *Error.
func KindOf(err error) Kind {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}
