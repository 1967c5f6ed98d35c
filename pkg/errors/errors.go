// Package errors provides structured error types for the packfold engine.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI, pipeline, and plugins
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - NOT_FOUND / NO_CONTENT / CACHE_MISS: Resource not found
//   - UNRESOLVED_* / CONFLICTING_*: Failed graph resolution
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend: %s", name)
//	if errors.Is(err, errors.ErrCodeInvalidConfig) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodePluginFailed, origErr, "transformer %s", name)
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
	ErrCodeInvalidConfig    Code = "INVALID_CONFIG"
	ErrCodeInvalidEntry     Code = "INVALID_ENTRY"
	ErrCodeInvalidBundle    Code = "INVALID_BUNDLE"
	ErrCodeInvalidSpecifier Code = "INVALID_SPECIFIER"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeNoContent    Code = "NO_CONTENT"
	ErrCodeCacheMiss    Code = "CACHE_MISS"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Graph resolution errors
	ErrCodeUnresolvedDependency Code = "UNRESOLVED_DEPENDENCY"
	ErrCodeConflictingReference Code = "CONFLICTING_REFERENCE"
	ErrCodeDuplicateBundle      Code = "DUPLICATE_BUNDLE"

	// Plugin errors
	ErrCodePluginFailed  Code = "PLUGIN_FAILED"
	ErrCodeNoTransformer Code = "NO_TRANSFORMER"
	ErrCodeNoPackager    Code = "NO_PACKAGER"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
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
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
