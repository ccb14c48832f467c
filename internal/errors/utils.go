package errors

import "errors"

// GetErrorType extracts the error type from any error, returning
// ErrorTypeInternal for errors that are not ShaderwatchErrors.
func GetErrorType(err error) ErrorType {
	var swErr *ShaderwatchError
	if errors.As(err, &swErr) {
		return swErr.Type
	}

	return ErrorTypeInternal
}

// IsFileWatchError reports whether err is a file watch error.
func IsFileWatchError(err error) bool {
	return GetErrorType(err) == ErrorTypeFileWatch
}

// IsCompileError reports whether err is a shader compilation error.
func IsCompileError(err error) bool {
	return GetErrorType(err) == ErrorTypeCompile
}

// IsReflectError reports whether err is an entry-point reflection error.
func IsReflectError(err error) bool {
	return GetErrorType(err) == ErrorTypeReflect
}

// IsRecoverable reports whether the session can keep running after err.
// Reload-time errors (compile, reflect, io) are recoverable; the session
// keeps watching and retries on the next relevant filesystem event.
func IsRecoverable(err error) bool {
	var swErr *ShaderwatchError
	if errors.As(err, &swErr) {
		return swErr.Recoverable
	}

	return false
}
