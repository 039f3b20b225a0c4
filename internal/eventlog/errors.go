package eventlog

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes event log errors.
type ErrorCode string

const (
	// ErrCodeIO indicates the file could not be read or written for OS reasons
	// (permissions, disk full, missing parent directory, lock timeout).
	ErrCodeIO ErrorCode = "IO"

	// ErrCodeCorruption indicates the file exists but does not parse as an event log.
	ErrCodeCorruption ErrorCode = "CORRUPTION"

	// ErrCodeRestoreFailed indicates both the primary and its backup are invalid.
	ErrCodeRestoreFailed ErrorCode = "RESTORE_FAILED"
)

// Error is returned by every operation that touches the log file.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the operation that failed ("publish", "get events", ...).
	Op string

	// Path is the file involved.
	Path string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s %s: %v", e.Code, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s %s", e.Code, e.Op, e.Path)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewIOError wraps an OS-level failure.
func NewIOError(op, path string, err error) *Error {
	return &Error{Code: ErrCodeIO, Op: op, Path: path, Err: err}
}

// NewCorruptionError reports a file that does not parse as an event log.
func NewCorruptionError(op, path string, err error) *Error {
	return &Error{Code: ErrCodeCorruption, Op: op, Path: path, Err: err}
}

// NewRestoreFailure reports that neither the primary nor the backup can be used.
func NewRestoreFailure(path string, err error) *Error {
	return &Error{Code: ErrCodeRestoreFailed, Op: "restore", Path: path, Err: err}
}

// IsIO returns true if the error is an I/O error.
// Uses errors.As to handle wrapped errors.
func IsIO(err error) bool {
	return hasCode(err, ErrCodeIO)
}

// IsCorruption returns true if the error is a corruption error.
func IsCorruption(err error) bool {
	return hasCode(err, ErrCodeCorruption)
}

// IsRestoreFailure returns true if the error is a restore failure.
func IsRestoreFailure(err error) bool {
	return hasCode(err, ErrCodeRestoreFailed)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
