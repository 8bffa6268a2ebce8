// Package errors provides error handling for the automation engine.
//
// It re-exports github.com/cockroachdb/errors so that every error created in
// the engine carries a stack trace and can be decorated with details and hints:
//
//	if err := store.CreateExecution(ctx, exec); err != nil {
//	    err = errors.Wrap(err, "failed to create execution")
//	    return errors.WithDetail(err, fmt.Sprintf("Job: %s", exec.Name))
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	"fmt"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	// CombineErrors keeps the first error and attaches the second as secondary
	CombineErrors = crdb.CombineErrors
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenDetails = crdb.FlattenDetails
)

// GetStack returns the reportable stack trace attached to an error, if any.
var GetStack = crdb.GetReportableStackTrace

// Common sentinel errors. Wrap these with errors.Wrap() to add context while
// keeping errors.Is() checks working.
var (
	// ErrNotFound indicates the requested job, execution or record does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates a queue request or parameter set failed validation
	ErrInvalidRequest = New("invalid request")

	// ErrConflict indicates a conflicting write, e.g. a duplicate job definition name
	ErrConflict = New("resource conflict")

	// ErrServiceUnavailable indicates a required collaborator is not available
	ErrServiceUnavailable = New("service unavailable")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// IsConflictError checks if an error is or wraps ErrConflict
func IsConflictError(err error) bool {
	return err != nil && Is(err, ErrConflict)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, fmt.Sprintf(format, args...))
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// NewConflictError creates a conflict error with a formatted message
func NewConflictError(format string, args ...interface{}) error {
	return Wrap(ErrConflict, fmt.Sprintf(format, args...))
}

// SafeString renders any value recovered from a failed call as a string.
// Handles errors, strings, fmt.Stringer and arbitrary values (including nil).
func SafeString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case error:
		return val.Error()
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// StackString renders an error together with its stack trace, if one is attached.
func StackString(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%+v", err)
}
