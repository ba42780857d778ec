// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Structured error taxonomy for the correlation engine (spec.md §7).

package api

import (
	"errors"
	"fmt"
)

// ErrorCode enumerates the error taxonomy of spec.md §7.
type ErrorCode int

const (
	// ErrCodeTemplate: key template failed to evaluate. Local recovery:
	// skip correlation for that message.
	ErrCodeTemplate ErrorCode = iota
	// ErrCodeAllocFailure: context or timer insertion failed.
	ErrCodeAllocFailure
	// ErrCodePersist: persisted state was corrupt/unreadable at init.
	ErrCodePersist
	// ErrCodeConfig: missing timeout or invalid scope at init. Fatal.
	ErrCodeConfig
	// ErrCodeDownstream: the emitter reported failure on synthetic emission.
	ErrCodeDownstream
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeTemplate:
		return "TemplateError"
	case ErrCodeAllocFailure:
		return "AllocFailure"
	case ErrCodePersist:
		return "PersistError"
	case ErrCodeConfig:
		return "ConfigError"
	case ErrCodeDownstream:
		return "DownstreamError"
	default:
		return "UnknownError"
	}
}

// Error is a structured error carrying its taxonomy code plus diagnostic
// context, the way spec.md §7 requires (tags: context, utc,
// context_timeout, context_expiration, num_messages).
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	cause   error
}

// NewError creates a structured error of the given taxonomy code.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Context: make(map[string]any)}
}

// Wrap attaches an underlying cause, preserving Unwrap support.
func (e *Error) Wrap(cause error) *Error {
	e.cause = cause
	return e
}

// WithContext adds a diagnostic tag to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (context: %+v)", e.Code, e.Message, e.Context)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// ErrMessageReadOnly is returned when a caller tries to mutate a message
// that has already been write-protected after joining a context. It is a
// plain sentinel, not a taxonomy *Error: it signals a programming-contract
// violation on the message-source side, not an engine operational failure.
var ErrMessageReadOnly = errors.New("api: message is write-protected after joining a context")
