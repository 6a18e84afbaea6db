package storage

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps a return code and a message. Backends return *Error for every
// failure so the code survives a trip over the rpc layer.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("storage error (%s): %s", e.Code, e.Msg)
}

// NewError creates a new *Error with the given code and message
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new *Error with a formatted message
func Errorf(code RetCode, format string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// IsCode reports whether err is (or wraps) an *Error with the given code
func IsCode(err error, code RetCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// CodeOf returns the code of err. Errors that are not an *Error are internal
// errors, nil is RetCSuccess.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
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
	RetCSuccess              RetCode = iota // 0: Operation succeeded.
	RetCInternalError                       // 1: Operation failed inside the backend.
	RetCUnsupportedOperation                // 2: The backend or host does not support the operation.
	RetCQuotaExceeded                       // 3: The write would exceed the storage quota.
	RetCClosed                              // 4: The backend was closed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCQuotaExceeded:
		return "QuotaExceeded"
	case RetCClosed:
		return "Closed"
	default:
		return fmt.Sprintf("Unknown(%d)", uint64(c))
	}
}
