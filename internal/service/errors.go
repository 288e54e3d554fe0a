package service

import (
	"errors"
	"fmt"
)

// Common service errors - sentinel errors used across service implementations.
// These errors represent common conditions that callers may want to check for with errors.Is().
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Input problems are returned as domain validation errors
// 3. Storage and other unexpected failures are wrapped in ServiceError
// 4. The API layer maps service errors to appropriate HTTP status codes
var (
	// ErrTaskNotFound indicates the task token does not resolve to a live task.
	// API layer should map this to HTTP 404 Not Found.
	ErrTaskNotFound = errors.New("task not found")

	// ErrNotTaskCreator indicates someone other than the creator attempted a
	// creator-only action on a task.
	// API layer should map this to HTTP 403 Forbidden.
	ErrNotTaskCreator = errors.New("only the task creator may perform this action")

	// ErrInvalidCredentials indicates a login with an unknown email or a wrong password.
	// API layer should map this to HTTP 401 Unauthorized.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrOperationFailed is matched by every ServiceError. Its detail is for
	// logs only; callers receive a generic failure.
	// API layer should map this to HTTP 500 Internal Server Error.
	ErrOperationFailed = errors.New("operation failed")
)

// ServiceError wraps an unexpected failure with the service and operation it
// happened in.
type ServiceError struct {
	Service string
	Op      string
	Message string
	Err     error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("%s service %s operation failed", e.Service, e.Op)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is makes every ServiceError match ErrOperationFailed.
func (e *ServiceError) Is(target error) bool {
	return target == ErrOperationFailed
}

// NewServiceError creates a new ServiceError.
func NewServiceError(service, op, message string, err error) *ServiceError {
	return &ServiceError{
		Service: service,
		Op:      op,
		Message: message,
		Err:     err,
	}
}
