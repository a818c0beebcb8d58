package domain

import (
	"fmt"
	"time"
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	CodeInvalidInput   = "INVALID_INPUT"
	CodeValidation     = "VALIDATION_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeUnknownFilter  = "UNKNOWN_FILTER"
	CodeDatabaseError  = "DATABASE_ERROR"
	CodeUnavailable    = "SOURCE_UNAVAILABLE"
	CodeHistoryOff     = "HISTORY_DISABLED"
	CodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	CodeTimeout        = "REQUEST_TIMEOUT"
	CodeInternalServer = "INTERNAL_SERVER_ERROR"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Unwrap lets callers match validation failures with errors.Is(err, ErrInvalidInput).
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
