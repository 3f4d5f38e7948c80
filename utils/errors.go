package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError represents a service-level error with context
type ServiceError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
	Details    string `json:"details,omitempty"`
	Cause      error  `json:"-"` // Original error, not exposed in JSON
}

func (e ServiceError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceError creates a new service error
func NewServiceError(code, message string) error {
	return ServiceError{
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// NewServiceErrorWithStatus creates a service error with specific HTTP status
func NewServiceErrorWithStatus(code, message string, statusCode int) error {
	return ServiceError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewServiceErrorWithDetails creates a service error with additional details
func NewServiceErrorWithDetails(code, message, details string) error {
	return ServiceError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: http.StatusInternalServerError,
	}
}

// NewServiceErrorWithCause creates a service error that wraps another error
func NewServiceErrorWithCause(code, message string, cause error) error {
	return ServiceError{
		Code:       code,
		Message:    message,
		Cause:      cause,
		StatusCode: http.StatusInternalServerError,
	}
}

// GetServiceError extracts a ServiceError from an error
func GetServiceError(err error) (ServiceError, bool) {
	var serviceErr ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr, true
	}
	return ServiceError{}, false
}

// DeliveryError is returned by delivery providers. Transient failures
// (timeouts, provider 5xx, rate limiting) are retried by the dispatcher;
// terminal failures (invalid address, rejected content) are recorded
// immediately without retry.
type DeliveryError struct {
	Reason    string
	Transient bool
	Cause     error
}

func (e DeliveryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Cause)
	}
	return e.Reason
}

func (e DeliveryError) Unwrap() error {
	return e.Cause
}

// NewTransientDeliveryError wraps a failure worth retrying.
func NewTransientDeliveryError(reason string, cause error) error {
	return DeliveryError{Reason: reason, Transient: true, Cause: cause}
}

// NewTerminalDeliveryError wraps a failure that retrying cannot fix.
func NewTerminalDeliveryError(reason string, cause error) error {
	return DeliveryError{Reason: reason, Transient: false, Cause: cause}
}

// IsTransientDelivery reports whether err should be retried. Unclassified
// errors are treated as transient so a flaky provider integration gets the
// benefit of the retry budget.
func IsTransientDelivery(err error) bool {
	var deliveryErr DeliveryError
	if errors.As(err, &deliveryErr) {
		return deliveryErr.Transient
	}
	return true
}

// DeliveryFailureReason extracts the human-readable reason for the report.
func DeliveryFailureReason(err error) string {
	var deliveryErr DeliveryError
	if errors.As(err, &deliveryErr) {
		return deliveryErr.Reason
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
