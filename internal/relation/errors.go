package relation

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes operational failures of a relation mutation.
type ErrorCode string

const (
	// ErrCodeConflict indicates Add was attempted on an item owned by a
	// different container.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeCanceled indicates a guard denied the mutation.
	ErrCodeCanceled ErrorCode = "CANCELED"

	// ErrCodeAdapterFailure indicates the raw collection refused the
	// mutation (full, frozen, or otherwise rejecting storage).
	ErrCodeAdapterFailure ErrorCode = "ADAPTER_FAILURE"
)

// SyncError reports a mutation that did not commit.
//
// No state has changed when a SyncError is returned from Add or Remove.
// MoveTo may return one after its remove half committed; see MoveOutcome.
type SyncError struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Op is the primitive that failed.
	Op Op

	// Container and Item describe the participants.
	Container string
	Item      string

	// Message is a human-readable description.
	Message string

	// Err is the guard's denial for ErrCodeCanceled, otherwise nil.
	Err error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Op, e.Code, e.Message)
	if e.Container != "" || e.Item != "" {
		msg = fmt.Sprintf("%s (container=%s, item=%s)", msg, e.Container, e.Item)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying guard error, if any.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not a
// *SyncError. Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsConflict reports whether err is an ownership conflict.
func IsConflict(err error) bool {
	return CodeOf(err) == ErrCodeConflict
}

// IsCanceled reports whether err is a guard denial.
func IsCanceled(err error) bool {
	return CodeOf(err) == ErrCodeCanceled
}

// IsAdapterFailure reports whether err is a raw storage refusal.
func IsAdapterFailure(err error) bool {
	return CodeOf(err) == ErrCodeAdapterFailure
}
