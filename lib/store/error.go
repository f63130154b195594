package store

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// NewErrorf creates a new Error with the given code and a formatted message.
func NewErrorf(code RetCode, format string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// CodeOf extracts the RetCode from an error. Errors that are not of type
// *Error report RetCInternalError.
func CodeOf(err error) RetCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCInternalError
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Operation executed successfully.
	RetCInternalError                       // 1: Operation failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the underlying store.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCNotFound                            // 4: Named store or position does not exist.
	RetCDisposed                            // 5: Operation on a disposed database or store.
	RetCInvalidHandle                       // 6: Operation on a handle whose node no longer exists.
	RetCPinned                              // 7: Store is currently open (pinned) elsewhere.
	RetCApplyFailed                         // 8: Store rejected a queued mutation batch.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCNotFound:
		return "NotFound"
	case RetCDisposed:
		return "Disposed"
	case RetCInvalidHandle:
		return "InvalidHandle"
	case RetCPinned:
		return "Pinned"
	case RetCApplyFailed:
		return "ApplyFailed"
	default:
		return "Unknown"
	}
}
