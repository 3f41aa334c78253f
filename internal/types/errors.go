package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a stable, machine-readable identifier for an error condition.
// Codes are part of the API contract: clients branch on them, so existing
// values must never change meaning.
type ErrorCode string

const (
	// Validation (400)
	ErrCodeValidationMissingField      ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidField      ErrorCode = "validation_invalid_field"
	ErrCodeValidationInvalidMetricType ErrorCode = "validation_invalid_metric_type"
	ErrCodeValidationInvalidStat       ErrorCode = "validation_invalid_stat"
	ErrCodeValidationOutOfRange        ErrorCode = "validation_value_out_of_range"
	ErrCodeValidationInvalidTimeRange  ErrorCode = "validation_invalid_time_range"
	ErrCodeValidationInvalidTimestamp  ErrorCode = "validation_invalid_timestamp"
	ErrCodeValidationInvalidSensorID   ErrorCode = "validation_invalid_sensor_id"
	ErrCodeValidationInvalidSensorList ErrorCode = "validation_invalid_sensor_list"

	// Not Found (404)
	ErrCodeNotFoundSensor ErrorCode = "not_found_sensor"

	// Conflict (409)
	ErrCodeConflictSensorName ErrorCode = "conflict_sensor_name_exists"

	// Query (422)
	ErrCodeQueryEmptyResult ErrorCode = "query_empty_result"

	// Internal (500)
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// HTTPStatus maps an error code to its HTTP response status. Codes follow a
// prefix convention, with explicit cases for the codes that deviate from it.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case c == ErrCodeQueryEmptyResult:
		// An aggregation with no matched readings is a well-formed request
		// that cannot be fulfilled, not a malformed one.
		return http.StatusUnprocessableEntity
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the single error type surfaced by the domain, storage, and
// handler layers. It pairs a stable code with a human-readable message and
// an optional wrapped cause. The cause is never serialized; it exists for
// logs and errors.Is/As chains only.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface with the "code: message" format.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status for the error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the given details merged in.
// The receiver is not mutated, so shared sentinel-style errors stay safe.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates an AppError wrapping an optional underlying cause.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates an AppError carrying structured details
// that are serialized in API error responses.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
