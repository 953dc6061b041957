// File: api/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Common error types and error handling utilities for geomesh.

package api

import "fmt"

// Common errors used across the library.
var (
	ErrInvalidArgument   = fmt.Errorf("invalid argument")
	ErrCapacityExceeded  = fmt.Errorf("capacity exceeded")
	ErrAlreadyExists     = fmt.Errorf("resource already exists")
	ErrNotFound          = fmt.Errorf("resource not found")
	ErrNotSupported      = fmt.Errorf("operation not supported")
	ErrReadOnly          = fmt.Errorf("resource is read-only")
	ErrClosed            = fmt.Errorf("resource is closed")
	ErrInvalidTransition = fmt.Errorf("invalid state transition")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeCapacityExceeded
	ErrCodeAlreadyExists
	ErrCodeNotFound
	ErrCodeNotSupported
	ErrCodeReadOnly
	ErrCodeClosed
	ErrCodeInvalidTransition
	ErrCodeInternal
)

var codeSentinels = map[ErrorCode]error{
	ErrCodeInvalidArgument:   ErrInvalidArgument,
	ErrCodeCapacityExceeded:  ErrCapacityExceeded,
	ErrCodeAlreadyExists:     ErrAlreadyExists,
	ErrCodeNotFound:          ErrNotFound,
	ErrCodeNotSupported:      ErrNotSupported,
	ErrCodeReadOnly:          ErrReadOnly,
	ErrCodeClosed:            ErrClosed,
	ErrCodeInvalidTransition: ErrInvalidTransition,
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Is reports whether target is the sentinel matching this error's code,
// or another *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Code == e.Code
	}
	s, ok := codeSentinels[e.Code]
	return ok && s == target
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Invalid is shorthand for an ErrCodeInvalidArgument error.
func Invalid(format string, args ...any) *Error {
	return NewError(ErrCodeInvalidArgument, fmt.Sprintf(format, args...))
}

// Full is shorthand for an ErrCodeCapacityExceeded error.
func Full(format string, args ...any) *Error {
	return NewError(ErrCodeCapacityExceeded, fmt.Sprintf(format, args...))
}
