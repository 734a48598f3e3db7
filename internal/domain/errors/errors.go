package errors

import (
	"errors"
	"fmt"
)

// Error types for the reconciliation pipeline
type ErrorType string

const (
	ErrorTypeParse      ErrorType = "parse"
	ErrorTypeLookup     ErrorType = "lookup"
	ErrorTypeCorrection ErrorType = "correction"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeExternal   ErrorType = "external"
)

// AppError represents a structured application error. Component failures
// cross boundaries as values of this type; nothing in the pipeline panics
// past its own package.
type AppError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Retryable bool                   `json:"retryable"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error constructors

// NewParseError reports a bad phone or timestamp value. Non-fatal: the
// affected item is treated as no-match and the raw value is logged.
func NewParseError(field, raw string) *AppError {
	return &AppError{
		Type:      ErrorTypeParse,
		Code:      "PARSE_FAILED",
		Message:   fmt.Sprintf("cannot parse %s value %q", field, raw),
		Retryable: false,
		Details:   map[string]interface{}{"field": field, "raw": raw},
	}
}

// NewLookupError reports a failed remote detail or call-log fetch. Fatal to
// the current item; the leg resolver aborts rather than guessing.
func NewLookupError(resource, id string, cause error) *AppError {
	return &AppError{
		Type:      ErrorTypeLookup,
		Code:      "LOOKUP_FAILED",
		Message:   fmt.Sprintf("failed to fetch %s %s", resource, id),
		Cause:     cause,
		Retryable: true,
		Details:   map[string]interface{}{"resource": resource, "id": id},
	}
}

// NewCorrectionError reports a failed payment override. Recorded per item,
// never aborts the batch.
func NewCorrectionError(legID string, cause error) *AppError {
	return &AppError{
		Type:      ErrorTypeCorrection,
		Code:      "CORRECTION_FAILED",
		Message:   fmt.Sprintf("payment correction failed for leg %s", legID),
		Cause:     cause,
		Retryable: true,
		Details:   map[string]interface{}{"leg_id": legID},
	}
}

// NewConflictError reports a would-be duplicate row. Absorbed internally by
// the store's skip-and-keep-original policy.
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeConflict,
		Code:      "CONFLICT",
		Message:   message,
		Retryable: false,
	}
}

func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:      ErrorTypeValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeInternal,
		Code:      "INTERNAL_ERROR",
		Message:   message,
		Retryable: true,
	}
}

func NewExternalError(service, message string) *AppError {
	return &AppError{
		Type:      ErrorTypeExternal,
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("%s service error: %s", service, message),
		Retryable: true,
		Details:   map[string]interface{}{"service": service},
	}
}

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}
