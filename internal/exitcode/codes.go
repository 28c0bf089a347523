// Package exitcode defines structured exit codes for slip commands.
// These codes let scripts and shell integrations react to specific failure
// conditions without parsing error messages.
//
// # Exit Code Ranges
//
// Codes are grouped by category for easy identification:
//   - 0: Success
//   - 1-9: General errors (usage)
//   - 10-19: Resource not found (session, file)
//   - 30-39: Process errors
//   - 40-49: Timeout errors
//   - 50-59: Conflict/state errors
//
// # Usage
//
// Create errors with specific codes:
//
//	return exitcode.SessionNotFound("ttys001")     // Exit code 10
//	return exitcode.Newf(exitcode.ErrUsage, "invalid flag: %s", flag)
//
// Or let Code classify sentinel errors from the worker and ports packages:
//
//	code := exitcode.Code(err)  // ErrStartupTimeout for worker.ErrStartupTimeout
package exitcode

import (
	"errors"
	"fmt"
)

// Exit codes for slip commands.
const (
	// Success indicates the command completed successfully.
	Success = 0

	// General errors (1-9)
	ErrGeneral = 1 // General/unknown error
	ErrUsage   = 2 // Invalid arguments or usage

	// Resource not found (10-19)
	ErrSessionNotFound = 10 // No matching session
	ErrFileNotFound    = 13 // File or path not found

	// Process errors (30-39)
	ErrSpawnFailed = 31 // OS refused to launch the worker

	// Timeout errors (40-49)
	ErrTimeout = 40 // Worker never became healthy

	// Conflict/state errors (50-59)
	ErrNoPort = 50 // No free port in the scan range
)

// Error wraps an error with a specific exit code.
type Error struct {
	Code    int
	Message string
	Cause   error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new coded error.
func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrapf wraps an existing error with a code and printf-style message.
func Wrapf(code int, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Newf creates a new coded error with printf-style formatting.
func Newf(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// classifiers map sentinel errors from other packages to codes.
// Populated at init time via Register.
var classifiers []classifier

type classifier struct {
	target error
	code   int
}

// Register maps a sentinel error to an exit code. Code consults registrations
// (via errors.Is) after explicit *Error values.
func Register(target error, code int) {
	classifiers = append(classifiers, classifier{target: target, code: code})
}

// Code extracts the exit code from an error.
// Returns ErrGeneral (1) if the error doesn't have a code.
func Code(err error) int {
	if err == nil {
		return Success
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	for _, c := range classifiers {
		if errors.Is(err, c.target) {
			return c.code
		}
	}
	return ErrGeneral
}

// SessionNotFound returns an error for a missing session.
func SessionNotFound(id string) *Error {
	return Newf(ErrSessionNotFound, "session not found: %s", id)
}

// FileNotFound returns an error for a missing file.
func FileNotFound(path string) *Error {
	return Newf(ErrFileNotFound, "file not found: %s", path)
}

// Usage returns a usage error.
func Usage(msg string) *Error {
	return New(ErrUsage, msg)
}
