package record

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// ErrCodeCapacityExceeded indicates no free slot was found after a full
	// wraparound scan of the registry.
	ErrCodeCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"

	// ErrCodeInvalidArgument indicates a nil, double, or otherwise invalid
	// registration, or an entity missing a required precondition.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// ErrCodeInvalidOperation indicates the operation is not allowed in the
	// current history state (unbalanced groups, open groups, ...).
	ErrCodeInvalidOperation ErrorCode = "INVALID_OPERATION"
)

// Error is returned by the registry and history layers.
//
// A failed call leaves every structure valid and has no partial effect.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the operation that failed (e.g. "registry.Add", "history.Undo").
	Op string

	// ID is the record id involved, or NoID.
	ID int

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ID != NoID {
		return fmt.Sprintf("%s: %s: %s (id=%d)", e.Op, e.Code, e.Message, e.ID)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

// NewError creates an Error that does not refer to a particular id.
func NewError(code ErrorCode, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, ID: NoID, Message: fmt.Sprintf(format, args...)}
}

// NewIDError creates an Error for the given record id.
func NewIDError(code ErrorCode, op string, id int, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, ID: id, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsCapacityExceeded returns true if err is a capacity error.
func IsCapacityExceeded(err error) bool {
	return CodeOf(err) == ErrCodeCapacityExceeded
}

// IsInvalidArgument returns true if err is an invalid argument error.
func IsInvalidArgument(err error) bool {
	return CodeOf(err) == ErrCodeInvalidArgument
}

// IsInvalidOperation returns true if err is an invalid operation error.
func IsInvalidOperation(err error) bool {
	return CodeOf(err) == ErrCodeInvalidOperation
}
