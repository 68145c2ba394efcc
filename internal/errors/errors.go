package errors

import (
	"net/http"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Authentication errors (401xx)
	ErrUnauthenticated ErrorCode = "40101"
	ErrTokenExpired    ErrorCode = "40102"

	// Authorization errors (403xx)
	ErrForbidden    ErrorCode = "40301"
	ErrNotTaskOwner ErrorCode = "40302"

	// Resource errors (404xx)
	ErrUserNotFound       ErrorCode = "40401"
	ErrTaskNotFound       ErrorCode = "40402"
	ErrSubmissionNotFound ErrorCode = "40403"
	ErrWithdrawalNotFound ErrorCode = "40404"

	// Request errors (400xx)
	ErrInvalidArgument  ErrorCode = "40001"
	ErrValidationFailed ErrorCode = "40002"

	// Ledger and lifecycle conflicts (409xx)
	ErrInsufficientFunds ErrorCode = "40901"
	ErrInvalidTransition ErrorCode = "40902"
	ErrTaskClosed        ErrorCode = "40903"

	// Rate limit errors (429xx)
	ErrRateLimited ErrorCode = "42901"

	// Server errors (500xx)
	ErrInternalServer      ErrorCode = "50001"
	ErrUpstreamUnavailable ErrorCode = "50301"
)

// APIError represents a standardized API error
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
	HTTPStatus int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// ErrorResponse represents the error response format
type ErrorResponse struct {
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id"`
}

// Common errors
var (
	ErrUnauthenticatedError = &APIError{
		Code:       ErrUnauthenticated,
		Message:    "Missing or invalid credentials",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenExpiredError = &APIError{
		Code:       ErrTokenExpired,
		Message:    "Token has expired",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrForbiddenError = &APIError{
		Code:       ErrForbidden,
		Message:    "Access denied",
		HTTPStatus: http.StatusForbidden,
	}

	ErrNotTaskOwnerError = &APIError{
		Code:       ErrNotTaskOwner,
		Message:    "Only the task owner may perform this action",
		HTTPStatus: http.StatusForbidden,
	}

	ErrUserNotFoundError = &APIError{
		Code:       ErrUserNotFound,
		Message:    "User not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrTaskNotFoundError = &APIError{
		Code:       ErrTaskNotFound,
		Message:    "Task not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrSubmissionNotFoundError = &APIError{
		Code:       ErrSubmissionNotFound,
		Message:    "Submission not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrWithdrawalNotFoundError = &APIError{
		Code:       ErrWithdrawalNotFound,
		Message:    "Withdrawal request not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrInsufficientFundsError = &APIError{
		Code:       ErrInsufficientFunds,
		Message:    "Insufficient coin balance",
		HTTPStatus: http.StatusConflict,
	}

	ErrInvalidTransitionError = &APIError{
		Code:       ErrInvalidTransition,
		Message:    "Operation not valid in the current state",
		HTTPStatus: http.StatusConflict,
	}

	ErrTaskClosedError = &APIError{
		Code:       ErrTaskClosed,
		Message:    "Task has no open slots",
		HTTPStatus: http.StatusConflict,
	}

	ErrRateLimitedError = &APIError{
		Code:       ErrRateLimited,
		Message:    "Rate limit exceeded",
		HTTPStatus: http.StatusTooManyRequests,
	}

	ErrInternalServerError = &APIError{
		Code:       ErrInternalServer,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrUpstreamUnavailableError = &APIError{
		Code:       ErrUpstreamUnavailable,
		Message:    "Upstream service unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)

// NewValidationError creates a validation error with details
func NewValidationError(details any) *APIError {
	return &APIError{
		Code:       ErrValidationFailed,
		Message:    "Validation failed",
		Details:    details,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidArgumentError creates an invalid argument error
func NewInvalidArgumentError(message string) *APIError {
	return &APIError{
		Code:       ErrInvalidArgument,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}
