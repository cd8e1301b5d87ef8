// Package apperr defines the error kinds surfaced across the recursion
// runtime (spec.md §7). Kinds are not distinct Go types per kind; they are
// a single Error carrying a Kind, so callers can wrap with %w and the HTTP
// layer can unwrap to pick a status code without a large type switch.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConfig         Kind = "config"
	KindAuth           Kind = "auth"
	KindNotFound       Kind = "not_found"
	KindValidation     Kind = "validation"
	KindLLM            Kind = "llm"
	KindToolExecution  Kind = "tool_execution"
	KindParse          Kind = "parse"
	KindCancelled      Kind = "cancelled"
)

// Error is the single error type used across the runtime.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func Config(format string, args ...any) error {
	return New(KindConfig, fmt.Sprintf(format, args...))
}

func Auth(format string, args ...any) error {
	return New(KindAuth, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func Validation(format string, args ...any) error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func LLM(endpoint string, status int, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return New(KindLLM, fmt.Sprintf("endpoint=%s status=%d: %s", endpoint, status, msg))
}

func ToolExecution(tool string, err error) error {
	return Wrap(KindToolExecution, fmt.Sprintf("tool %q failed", tool), err)
}

func Parse(format string, args ...any) error {
	return New(KindParse, fmt.Sprintf(format, args...))
}

func Cancelled(taskID string) error {
	return New(KindCancelled, fmt.Sprintf("task %s cancelled", taskID))
}
