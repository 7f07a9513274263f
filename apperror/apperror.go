// Package apperror defines the error taxonomy shared by all repolex
// components. Every error carries a kind, a human-readable message and a
// list of suggested remediations so the CLI can render actionable output.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for propagation and exit-code mapping.
type Kind string

const (
	// KindValidation is malformed input, rejected at entry.
	KindValidation Kind = "validation"

	// KindSecurity is a path escape, an update form in a query, or
	// disallowed characters in an identifier. Non-recoverable.
	KindSecurity Kind = "security"

	// KindSource is a parser failure on a single file. Recoverable: the
	// file is skipped and the failure summarized at end of operation.
	KindSource Kind = "source"

	// KindGit is a failed history read, clone or checkout.
	KindGit Kind = "git"

	// KindStore is a failed store transaction or query.
	KindStore Kind = "store"

	// KindNetwork is a failed remote fetch.
	KindNetwork Kind = "network"

	// KindExport is a writer or disk failure during export.
	KindExport Kind = "export"

	// KindConfiguration is an invalid configuration value.
	KindConfiguration Kind = "configuration"
)

// Error is the taxonomy-tagged error type.
type Error struct {
	Kind        Kind
	Message     string
	Suggestions []string
	Err         error // wrapped cause, may be nil
}

// Error renders the message followed by suggestions, one per line.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	for _, s := range e.Suggestions {
		sb.WriteString("\n  - ")
		sb.WriteString(s)
	}
	return sb.String()
}

// Unwrap exposes the wrapped cause to errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind.
func New(kind Kind, message string, suggestions ...string) *Error {
	return &Error{Kind: kind, Message: message, Suggestions: suggestions}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, err error, message string, suggestions ...string) *Error {
	return &Error{Kind: kind, Message: message, Suggestions: suggestions, Err: err}
}

// Validationf formats a validation error.
func Validationf(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

// Securityf formats a security error.
func Securityf(format string, args ...any) *Error {
	return New(KindSecurity, fmt.Sprintf(format, args...))
}

// Storef formats a store error wrapping err.
func Storef(err error, format string, args ...any) *Error {
	return Wrap(KindStore, err, fmt.Sprintf(format, args...))
}

// Gitf formats a git error wrapping err.
func Gitf(err error, format string, args ...any) *Error {
	return Wrap(KindGit, err, fmt.Sprintf(format, args...))
}

// Exportf formats an export error wrapping err.
func Exportf(err error, format string, args ...any) *Error {
	return Wrap(KindExport, err, fmt.Sprintf(format, args...))
}

// WithSuggestions returns a copy of e with the suggestions replaced.
func (e *Error) WithSuggestions(suggestions ...string) *Error {
	clone := *e
	clone.Suggestions = suggestions
	return &clone
}

// KindOf returns the taxonomy kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Recoverable reports whether an error of this kind is handled locally
// (skip, retry) rather than aborting the operation.
func (k Kind) Recoverable() bool {
	switch k {
	case KindSource, KindNetwork:
		return true
	}
	return false
}

// Exit codes partition by kind so scripts can branch on failures.
const (
	exitOK            = 0
	exitValidation    = 2
	exitSecurity      = 3
	exitSource        = 4
	exitGit           = 5
	exitStore         = 6
	exitNetwork       = 7
	exitExport        = 8
	exitConfiguration = 9
	exitUnknown       = 1
)

// ExitCode maps an error to the CLI exit code for its kind.
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}
	switch KindOf(err) {
	case KindValidation:
		return exitValidation
	case KindSecurity:
		return exitSecurity
	case KindSource:
		return exitSource
	case KindGit:
		return exitGit
	case KindStore:
		return exitStore
	case KindNetwork:
		return exitNetwork
	case KindExport:
		return exitExport
	case KindConfiguration:
		return exitConfiguration
	}
	return exitUnknown
}
