package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ===============================
// ERROR TYPES
// ===============================

// Error type names returned to callers. Every public operation either
// returns a typed success value or a ServiceError carrying one of these.
const (
	ErrTypeValidation   = "VALIDATION_ERROR"
	ErrTypeNotFound     = "NOT_FOUND"
	ErrTypeConflict     = "CONFLICT"
	ErrTypeStorage      = "STORAGE_FAILURE"
	ErrTypeTransaction  = "TRANSACTION_FAILURE"
	ErrTypeUnauthorized = "UNAUTHORIZED"
	ErrTypeInternal     = "INTERNAL_ERROR"
)

// ServiceError represents a structured service error
type ServiceError struct {
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	StatusCode int                    `json:"-"`
	Cause      error                  `json:"-"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// GetStatusCode returns the HTTP status code for this error
func (e *ServiceError) GetStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// WithDetail attaches a key/value detail to the error.
func (e *ServiceError) WithDetail(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ===============================
// ERROR CONSTRUCTORS
// ===============================

// NewValidationError creates a validation error. Validation errors are
// surfaced to the caller verbatim and never retried.
func NewValidationError(message string, cause error) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(message string) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeConflict,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewStorageError creates an object-store failure
func NewStorageError(message string, cause error) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeStorage,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

// NewTransactionError marks a counter-engine transaction that exceeded its
// internal retry budget under contention.
func NewTransactionError(message string, cause error) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeTransaction,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeUnauthorized,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// ===============================
// ERROR UTILITIES
// ===============================

// GetServiceError extracts a ServiceError from an error, or wraps it in a
// generic internal one.
func GetServiceError(err error) *ServiceError {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}
	return &ServiceError{
		Type:       ErrTypeInternal,
		Message:    "an unexpected error occurred",
		StatusCode: http.StatusInternalServerError,
		Cause:      err,
	}
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType string) bool {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Type == errorType
	}
	return false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return IsErrorType(err, ErrTypeNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return IsErrorType(err, ErrTypeValidation)
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	return IsErrorType(err, ErrTypeConflict)
}

// IsStorageError checks if an error is an object-store failure
func IsStorageError(err error) bool {
	return IsErrorType(err, ErrTypeStorage)
}

// IsTransactionError checks if an error is a counter-engine retry failure
func IsTransactionError(err error) bool {
	return IsErrorType(err, ErrTypeTransaction)
}
