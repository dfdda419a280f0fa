// Package errors provides the typed error taxonomy of the discovery service.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// ErrCodeValidationFailed marks a malformed or out-of-range query.
	// Surfaced to the caller with a specific message, never retried.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// ErrCodePropertyNotFound marks a single-entity lookup with no match.
	ErrCodePropertyNotFound ErrorCode = "PROPERTY_NOT_FOUND"

	// ErrCodeSearchUnavailable marks a catalog query failure. The caller
	// sees a generic message; detail stays server-side.
	ErrCodeSearchUnavailable ErrorCode = "SEARCH_UNAVAILABLE"

	// ErrCodeCacheDegraded marks a cache operation failure. It is never
	// surfaced; every cache failure is treated as a miss.
	ErrCodeCacheDegraded ErrorCode = "CACHE_DEGRADED"
)

// ServiceError represents a structured application error.
type ServiceError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("ServiceError[%s]: %s", e.Code, e.Message)
}

// NewValidationError creates a non-retryable validation error. The
// details name the violated invariant so the caller can fix the query.
func NewValidationError(details string) *ServiceError {
	return &ServiceError{
		Code:      ErrCodeValidationFailed,
		Message:   "Invalid search query",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable not-found error.
func NewNotFoundError(propertyID string) *ServiceError {
	return &ServiceError{
		Code:      ErrCodePropertyNotFound,
		Message:   "Property not found",
		Details:   fmt.Sprintf("propertyId: %s", propertyID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchUnavailableError creates a retryable upstream error. The
// underlying cause is kept in Details for server-side logging only; the
// Message is safe to expose.
func NewSearchUnavailableError(err error) *ServiceError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &ServiceError{
		Code:      ErrCodeSearchUnavailable,
		Message:   "Search temporarily unavailable",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheDegradedError creates the internal marker for a failed cache
// operation. Callers log it and proceed as if the cache were empty.
func NewCacheDegradedError(err error) *ServiceError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &ServiceError{
		Code:      ErrCodeCacheDegraded,
		Message:   "Cache operation failed",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// CodeOf extracts the ErrorCode from an error chain, or "" when the
// error is not a ServiceError.
func CodeOf(err error) ErrorCode {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidationFailed
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodePropertyNotFound
}
