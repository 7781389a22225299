// Package errors provides structured error types for pmux.
//
// Every failure that a caller may want to branch on carries a machine-readable
// [Code]. Detection never fails on malformed project data, so the codes below
// mostly describe pinned execution, command building and input validation.
//
// # Error Codes
//
// Codes follow a category-first naming convention:
//   - INVALID_*: Input validation failures
//   - NOT_*: Nothing to act on (no manager detected, no such package)
//   - *_FAILED / *_MISMATCH: Pinned execution failures
//   - UNSUPPORTED: Operation not available for a manager dialect
//
// # Usage
//
//	err := errors.New(errors.ErrCodeUnsupported, "%s does not support dlx", name)
//	if errors.Is(err, errors.ErrCodeUnsupported) {
//	    // Fall back or report
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeDownloadFailed, origErr, "download %s@%s", name, version)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidPackage  Code = "INVALID_PACKAGE"
	ErrCodeInvalidManifest Code = "INVALID_MANIFEST"
	ErrCodeInvalidPath     Code = "INVALID_PATH"
	ErrCodeInvalidConfig   Code = "INVALID_CONFIG"

	// Nothing to act on
	ErrCodeNotDetected Code = "NOT_DETECTED"
	ErrCodeNotFound    Code = "NOT_FOUND"

	// Pinned execution errors
	ErrCodeDownloadFailed    Code = "DOWNLOAD_FAILED"
	ErrCodeIntegrityMismatch Code = "INTEGRITY_MISMATCH"
	ErrCodeExtractionFailed  Code = "EXTRACTION_FAILED"

	// Operation not available for a manager dialect
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message and, when present, the innermost
// cause's message. For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + UserMessage(e.Cause)
}

// Unsupported is shorthand for an ErrCodeUnsupported error.
func Unsupported(format string, args ...any) *Error {
	return New(ErrCodeUnsupported, format, args...)
}
