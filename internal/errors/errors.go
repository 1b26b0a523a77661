package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
)

// Error types for the pool's failure categories
type ErrorType string

const (
	ErrorTypeInvalidRequest    ErrorType = "invalid_request"
	ErrorTypeOutOfDeviceMemory ErrorType = "out_of_device_memory"
	ErrorTypeDevice            ErrorType = "device"
	ErrorTypeInternal          ErrorType = "internal"
)

// StructuredError provides rich error context
type StructuredError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Stack     []uintptr
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Operation, e.Message)
}

// Unwrap returns the underlying cause
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// New creates a new structured error
func New(errType ErrorType, operation, message string) *StructuredError {
	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, operation, message string) *StructuredError {
	if err == nil {
		return nil
	}

	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Cause:     err,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// WithContext adds context information to an error
func (e *StructuredError) WithContext(key string, value interface{}) *StructuredError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsType reports whether any error in err's chain is a StructuredError of type t.
func IsType(err error, t ErrorType) bool {
	for err != nil {
		var se *StructuredError
		if !stderrors.As(err, &se) {
			return false
		}
		if se.Type == t {
			return true
		}
		err = se.Cause
	}
	return false
}

// captureStack captures the current stack trace
func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:]) // Skip runtime.Callers, this function and the constructor
	return pcs[:n]
}

// NewInvalidRequestError creates an error for a caller bug: bad size, unknown id, bad range.
func NewInvalidRequestError(operation, message string) *StructuredError {
	return New(ErrorTypeInvalidRequest, operation, message)
}

// NewOutOfDeviceMemoryError creates an error for a refused device allocation
func NewOutOfDeviceMemoryError(operation, message string) *StructuredError {
	return New(ErrorTypeOutOfDeviceMemory, operation, message)
}

// NewDeviceError creates a device error
func NewDeviceError(operation, message string) *StructuredError {
	return New(ErrorTypeDevice, operation, message)
}

// NewInternalError creates an internal invariant error
func NewInternalError(operation, message string) *StructuredError {
	return New(ErrorTypeInternal, operation, message)
}

// WrapOutOfDeviceMemoryError wraps an error as an out-of-device-memory error
func WrapOutOfDeviceMemoryError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeOutOfDeviceMemory, operation, message)
}

// WrapDeviceError wraps an error as a device error
func WrapDeviceError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeDevice, operation, message)
}
