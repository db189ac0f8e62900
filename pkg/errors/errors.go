package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrValidation
	ErrSchedulingConflict
	ErrInvalidTransition
	ErrGeofence
	ErrDuplicateCheckIn
	ErrDependency
)

func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

// NewForbidden reports an action the caller's role does not permit.
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

// NewValidation reports a malformed request rejected before any
// conflict analysis ran.
func NewValidation(message string) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
	}
}

// NewInvalidTransition reports a state change that violates the
// appointment status graph.
func NewInvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("invalid status transition from %s to %s", from, to),
	}
}

// NewGeofence reports a check-in outside the allowed radius, carrying
// the measured distance for caller feedback.
func NewGeofence(distanceMeters, radiusMeters float64) *AppError {
	return &AppError{
		Code:    ErrGeofence,
		Message: fmt.Sprintf("check-in location is %.1fm from the clinic, allowed radius is %.1fm", distanceMeters, radiusMeters),
	}
}

// NewDuplicateCheckIn reports an idempotency violation: the
// appointment already has an active queue entry.
func NewDuplicateCheckIn(message string) *AppError {
	return &AppError{
		Code:    ErrDuplicateCheckIn,
		Message: message,
	}
}

// NewDependency wraps a collaborator failure (slot/rule lookup,
// persistence). The core fails closed on these, never assuming "no
// rules" or "no conflicts".
func NewDependency(op string, err error) *AppError {
	return &AppError{
		Code:    ErrDependency,
		Message: fmt.Sprintf("dependency failure during %s", op),
		Err:     err,
	}
}

// CodeOf extracts the ErrorCode from an error chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}
