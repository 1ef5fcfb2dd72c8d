// Package errors provides error handling for ABMX.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Classify into the pipeline taxonomy
//	return errors.MarkIntegration(err)
//
//	// Check errors
//	if errors.IsIntegration(err) {
//	    // degrade instead of aborting
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
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
	Join         = crdb.Join
)

// User-facing messages and details
var (
	WithHint        = crdb.WithHint
	WithHintf       = crdb.WithHintf
	WithDetail      = crdb.WithDetail
	WithDetailf     = crdb.WithDetailf
	WithSafeDetails = crdb.WithSafeDetails
)

// Error inspection
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapOnce    = crdb.UnwrapOnce
	UnwrapAll     = crdb.UnwrapAll
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// GetStack is an alias for GetReportableStackTrace for convenience.
var GetStack = crdb.GetReportableStackTrace

// The pipeline error taxonomy. Every failure surfaced by a node, the
// scheduler, or the persistence layer is classified as one of these four.
// Use errors.Is() (or the Is* helpers below) to branch on class, and the
// Mark* helpers to classify an underlying cause while preserving it.
var (
	// ErrValidation indicates malformed or missing required input.
	// Raised before a node runs, or at pipeline construction time.
	ErrValidation = New("validation failed")

	// ErrProcessing indicates a node's internal logic failed after its
	// inputs were accepted.
	ErrProcessing = New("processing failed")

	// ErrIntegration indicates a call to an external dependency failed.
	ErrIntegration = New("integration failed")

	// ErrPersistence indicates the final write to the document store failed.
	ErrPersistence = New("persistence failed")
)

// General sentinels shared across packages.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrConflict indicates a resource conflict (e.g., duplicate task id)
	ErrConflict = New("resource conflict")
)

// IsValidation checks if an error is or wraps ErrValidation
func IsValidation(err error) bool {
	return err != nil && Is(err, ErrValidation)
}

// IsProcessing checks if an error is or wraps ErrProcessing
func IsProcessing(err error) bool {
	return err != nil && Is(err, ErrProcessing)
}

// IsIntegration checks if an error is or wraps ErrIntegration
func IsIntegration(err error) bool {
	return err != nil && Is(err, ErrIntegration)
}

// IsPersistence checks if an error is or wraps ErrPersistence
func IsPersistence(err error) bool {
	return err != nil && Is(err, ErrPersistence)
}

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// MarkValidation classifies err as a validation failure, preserving the cause.
func MarkValidation(err error) error {
	if err == nil {
		return nil
	}
	return crdb.Mark(err, ErrValidation)
}

// MarkProcessing classifies err as a processing failure, preserving the cause.
func MarkProcessing(err error) error {
	if err == nil {
		return nil
	}
	return crdb.Mark(err, ErrProcessing)
}

// MarkIntegration classifies err as an integration failure, preserving the cause.
func MarkIntegration(err error) error {
	if err == nil {
		return nil
	}
	return crdb.Mark(err, ErrIntegration)
}

// MarkPersistence classifies err as a persistence failure, preserving the cause.
func MarkPersistence(err error) error {
	if err == nil {
		return nil
	}
	return crdb.Mark(err, ErrPersistence)
}

// NewValidationError creates a validation error with a formatted message
func NewValidationError(format string, args ...interface{}) error {
	return Wrap(ErrValidation, Newf(format, args...).Error())
}

// NewProcessingError creates a processing error with a formatted message
func NewProcessingError(format string, args ...interface{}) error {
	return Wrap(ErrProcessing, Newf(format, args...).Error())
}

// NewIntegrationError creates an integration error with a formatted message
func NewIntegrationError(format string, args ...interface{}) error {
	return Wrap(ErrIntegration, Newf(format, args...).Error())
}

// NewPersistenceError creates a persistence error with a formatted message
func NewPersistenceError(format string, args ...interface{}) error {
	return Wrap(ErrPersistence, Newf(format, args...).Error())
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// Class returns the taxonomy name for an error, or "unknown" when the
// error carries no classification. Used for structured log fields and
// API payloads.
func Class(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidation(err):
		return "validation"
	case IsProcessing(err):
		return "processing"
	case IsIntegration(err):
		return "integration"
	case IsPersistence(err):
		return "persistence"
	default:
		return "unknown"
	}
}
