package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application error with additional context
type AppError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	StatusCode int         `json:"-"`
	Internal   error       `json:"-"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap returns the internal error for errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Error codes. Transport, snapshot and lifecycle cover the three failure
// domains of the alert console; the HTTP codes back the simulator API.
const (
	ErrCodeTransport       = "TRANSPORT_ERROR"
	ErrCodeSnapshotFetch   = "SNAPSHOT_FETCH_ERROR"
	ErrCodeLifecycleAction = "LIFECYCLE_ACTION_ERROR"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeRateLimited     = "RATE_LIMITED"
)

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with an AppError
func Wrap(err error, code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Internal:   err,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// IsCode reports whether err is (or wraps) an AppError with the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Common error constructors

// Transport creates a push-channel error. These never reach the presentation
// layer; they feed the reconnect loop and logs.
func Transport(message string, err error) *AppError {
	return Wrap(err, ErrCodeTransport, message, 0)
}

// SnapshotFetch creates a poll failure error. The working set keeps its
// last-known-good contents when one of these occurs.
func SnapshotFetch(message string, err error) *AppError {
	return Wrap(err, ErrCodeSnapshotFetch, message, 0)
}

// LifecycleDetails identifies the action behind a lifecycle error.
type LifecycleDetails struct {
	Action  string `json:"action"`
	AlertID string `json:"alert_id"`
}

// LifecycleAction creates an acknowledge/resolve failure error. This is the
// one error class surfaced to the presentation layer.
func LifecycleAction(action, alertID string, err error) *AppError {
	return Wrap(err, ErrCodeLifecycleAction,
		fmt.Sprintf("failed to %s alert %s", action, alertID), 0).
		WithDetails(LifecycleDetails{Action: action, AlertID: alertID})
}

// IsTransport reports whether err is a transport error.
func IsTransport(err error) bool {
	return IsCode(err, ErrCodeTransport)
}

// IsSnapshotFetch reports whether err is a snapshot poll error.
func IsSnapshotFetch(err error) bool {
	return IsCode(err, ErrCodeSnapshotFetch)
}

// IsLifecycleAction reports whether err is a lifecycle action error.
func IsLifecycleAction(err error) bool {
	return IsCode(err, ErrCodeLifecycleAction)
}

// Internal creates an internal server error
func Internal(message string, err error) *AppError {
	return Wrap(err, ErrCodeInternal, message, http.StatusInternalServerError)
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return New(ErrCodeBadRequest, message, http.StatusBadRequest)
}

// NotFound creates a not found error
func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// Conflict creates a conflict error
func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message, http.StatusConflict)
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

// RateLimited creates a rate limit exceeded error
func RateLimited(message string) *AppError {
	return New(ErrCodeRateLimited, message, http.StatusTooManyRequests)
}

// ValidationError creates a validation error
func ValidationError(message string, details interface{}) *AppError {
	return New(ErrCodeValidation, message, http.StatusBadRequest).WithDetails(details)
}
