// Package apperr provides standardized domain error types for the application.
// Sync jobs map error kinds to process exit codes, and the webhook HTTP layer
// maps them to response status codes.
package apperr

import (
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindConfig indicates bad CLI arguments or missing credentials.
	KindConfig
	// KindSourceFetch indicates a transport failure or non-2xx from the source CRM.
	KindSourceFetch
	// KindSourceParse indicates an unexpected source CRM response shape.
	KindSourceParse
	// KindResolution indicates a per-record contact/opportunity lookup failure.
	KindResolution
	// KindRemoteWrite indicates a failed update call against the engagement platform.
	KindRemoteWrite
	// KindLockBusy indicates another run already holds the tenant lock. Benign.
	KindLockBusy
	// KindValidation indicates invalid input data.
	KindValidation
	// KindBadRequest indicates a malformed or invalid request.
	KindBadRequest
	// KindUpstream indicates a failed call to a downstream collaborator.
	KindUpstream
	// KindInternal indicates an unexpected internal error.
	KindInternal
)

// Error is a domain error with a typed Kind.
type Error struct {
	Kind    Kind
	Message string
	Op      string      // Operation that failed (optional)
	Err     error       // Underlying error (optional)
	Details interface{} // Additional details for response (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code for this error kind. Fatal kinds
// (config, fetch, parse) exit 1; a busy lock is a benign no-op and exits 0.
func (e *Error) ExitCode() int {
	switch e.Kind {
	case KindLockBusy:
		return 0
	default:
		return 1
	}
}

// HTTPStatus returns the appropriate HTTP status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindBadRequest, KindConfig:
		return http.StatusBadRequest
	case KindUpstream, KindSourceFetch:
		return http.StatusBadGateway
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp returns a copy of the error with the operation set.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails returns a copy of the error with additional details.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// Convenience constructors for common error types.

// Config creates a configuration error.
func Config(message string) *Error {
	return New(KindConfig, message)
}

// SourceFetch creates a source CRM fetch error.
func SourceFetch(message string, err error) *Error {
	return Wrap(KindSourceFetch, message, err)
}

// SourceParse creates a source CRM parse error.
func SourceParse(message string, err error) *Error {
	return Wrap(KindSourceParse, message, err)
}

// Resolution creates a per-record resolution error.
func Resolution(message string) *Error {
	return New(KindResolution, message)
}

// RemoteWrite creates a remote write error.
func RemoteWrite(message string, err error) *Error {
	return Wrap(KindRemoteWrite, message, err)
}

// LockBusy creates a benign lock-busy marker error.
func LockBusy(message string) *Error {
	return New(KindLockBusy, message)
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// BadRequest creates a bad request error.
func BadRequest(message string) *Error {
	return New(KindBadRequest, message)
}

// Upstream creates an upstream collaborator error.
func Upstream(message string, err error) *Error {
	return Wrap(KindUpstream, message, err)
}

// Internal creates an internal server error.
func Internal(message string) *Error {
	return New(KindInternal, message)
}

// GetKind extracts the error kind from an error.
// Returns KindUnknown if the error is not an *Error.
func GetKind(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if err is an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}

// GetExitCode maps an error to a process exit code.
// Non-typed errors exit 1.
func GetExitCode(err error) int {
	if e, ok := err.(*Error); ok {
		return e.ExitCode()
	}
	return 1
}
