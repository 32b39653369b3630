// Package errors provides custom error types for the offline report store and sync engine
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents the type of error that occurred
type ErrorCode string

const (
	ErrCodeNetworkFailure    ErrorCode = "NETWORK_FAILURE"
	ErrCodeStorageFailure    ErrorCode = "STORAGE_FAILURE"
	ErrCodeValidationFailure ErrorCode = "VALIDATION_FAILURE"
	ErrCodeRemoteRejected    ErrorCode = "REMOTE_REJECTED"
)

// Operation represents the operation during which an error occurred
type Operation string

const (
	OpSave          Operation = "save"
	OpList          Operation = "list"
	OpRemove        Operation = "remove"
	OpRecordAttempt Operation = "record_attempt"
	OpProbe         Operation = "probe"
	OpSubmit        Operation = "submit"
	OpSync          Operation = "sync"
	OpConfig        Operation = "config"
	OpClose         Operation = "close"
)

// Kind classifies an error independently of the operation that produced it
type Kind string

const (
	KindInvalid     Kind = "invalid"
	KindInternal    Kind = "internal"
	KindUnavailable Kind = "unavailable"
	KindRejected    Kind = "rejected"
)

// SyncError represents an error raised by the store, transport or sync engine
type SyncError struct {
	// Operation during which the error occurred
	Op Operation

	// Component that generated the error (e.g., "offline-store", "httpapi")
	Component string

	// Underlying error
	Err error

	// Whether the operation can be retried
	Retryable bool

	// Error code for the error type
	Code ErrorCode

	// Kind of error
	Kind Kind

	// Metadata for additional context
	Metadata map[string]interface{}
}

func (e *SyncError) Error() string {
	var msg string
	if e.Component != "" {
		msg = fmt.Sprintf("%s operation failed in %s component", e.Op, e.Component)
	} else {
		msg = fmt.Sprintf("%s operation failed", e.Op)
	}

	if e.Code != "" {
		msg += fmt.Sprintf(" [%s]", e.Code)
	}

	return msg + fmt.Sprintf(": %v", e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new storage-related SyncError.
// Storage errors are not retryable: the caller must tell the user the data
// could not be stored anywhere.
func NewStorageError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeStorageFailure,
		Kind:      KindInternal,
		Op:        op,
		Component: "store",
		Err:       cause,
	}
}

// NewValidationError creates a new validation-related SyncError
func NewValidationError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeValidationFailure,
		Kind:      KindInvalid,
		Op:        op,
		Err:       cause,
		Retryable: false,
	}
}

// NewNetworkError creates a new network-related SyncError
func NewNetworkError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeNetworkFailure,
		Kind:      KindUnavailable,
		Op:        op,
		Component: "transport",
		Err:       cause,
		Retryable: true,
	}
}

// NewRemoteError creates an error for a request the server answered but refused.
// Client errors (4xx) are flagged non-retryable; everything else is retryable.
func NewRemoteError(op Operation, status int, cause error) *SyncError {
	e := &SyncError{
		Op:        op,
		Component: "transport",
		Err:       cause,
		Metadata:  map[string]interface{}{"status": status},
	}
	if status >= 400 && status < 500 {
		e.Code = ErrCodeRemoteRejected
		e.Kind = KindRejected
		return e
	}
	e.Code = ErrCodeNetworkFailure
	e.Kind = KindUnavailable
	e.Retryable = true
	return e
}

// New creates a new SyncError
func New(op Operation, err error) *SyncError {
	return &SyncError{
		Op:  op,
		Err: err,
	}
}

// NewWithComponent creates a new SyncError with component information
func NewWithComponent(op Operation, component string, err error) *SyncError {
	return &SyncError{
		Op:        op,
		Component: component,
		Err:       err,
	}
}

// NewRetryable creates a new retryable SyncError
func NewRetryable(op Operation, err error) *SyncError {
	return &SyncError{
		Op:        op,
		Err:       err,
		Retryable: true,
	}
}

// IsRetryable checks if an error is a retryable SyncError
func IsRetryable(err error) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Retryable
	}
	return false
}

// IsStorageFailure reports whether err carries the STORAGE_FAILURE code.
func IsStorageFailure(err error) bool {
	return HasCode(err, ErrCodeStorageFailure)
}

// HasCode reports whether any SyncError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Code == code
	}
	return false
}
