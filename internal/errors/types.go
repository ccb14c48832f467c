// Package errors provides the structured error types used across
// shaderwatch. Errors carry a category, a stable code, and optionally
// the shader file they relate to, so callers can react to a failed
// reload (log it, keep the last-good artifact) without string matching.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeFileWatch  ErrorType = "file_watch"
	ErrorTypeCompile    ErrorType = "compile"
	ErrorTypeReflect    ErrorType = "reflect"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeInternal   ErrorType = "internal"
)

// ShaderwatchError is a structured error type with context.
type ShaderwatchError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	FilePath    string
	Recoverable bool
}

// Error implements the error interface.
func (e *ShaderwatchError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *ShaderwatchError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *ShaderwatchError) Is(target error) bool {
	var t *ShaderwatchError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *ShaderwatchError) WithContext(key string, value interface{}) *ShaderwatchError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPath adds the shader file the error relates to.
func (e *ShaderwatchError) WithPath(filePath string) *ShaderwatchError {
	e.FilePath = filePath

	return e
}

// WithCause attaches the underlying error.
func (e *ShaderwatchError) WithCause(cause error) *ShaderwatchError {
	e.Cause = cause

	return e
}

// Error creation functions

// NewFileWatchError creates a file watch error. File watch errors are
// construction-time failures: no session exists after one is returned.
func NewFileWatchError(code, message string) *ShaderwatchError {
	return &ShaderwatchError{
		Type:        ErrorTypeFileWatch,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewCompileError creates a shader compilation error.
func NewCompileError(code, message string) *ShaderwatchError {
	return &ShaderwatchError{
		Type:        ErrorTypeCompile,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewReflectError creates an entry-point reflection error.
func NewReflectError(code, message string) *ShaderwatchError {
	return &ShaderwatchError{
		Type:        ErrorTypeReflect,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string) *ShaderwatchError {
	return &ShaderwatchError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *ShaderwatchError {
	return &ShaderwatchError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *ShaderwatchError {
	return &ShaderwatchError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string) *ShaderwatchError {
	return &ShaderwatchError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}
