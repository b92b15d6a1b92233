package marketplace

import (
	"errors"
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Sentinel Errors
// ---------------------------------------------------------------------------

var (
	// Provider errors
	ErrProviderNotConfigured   = errors.New("marketplace: provider not configured")
	ErrProviderNotEnabled      = errors.New("marketplace: provider not enabled")
	ErrProviderUnavailable     = errors.New("marketplace: provider temporarily unavailable")
	ErrProviderRequestFailed   = errors.New("marketplace: provider request failed")
	ErrProviderInvalidResponse = errors.New("marketplace: invalid provider response")

	// Order errors
	ErrOrderNotFound       = errors.New("marketplace: remote order not found")
	ErrOrderInvalidPayload = errors.New("marketplace: invalid order payload")

	// Rate limit errors
	ErrRateLimited        = errors.New("marketplace: rate limit exceeded")
	ErrCircuitBreakerOpen = errors.New("marketplace: circuit breaker open")
)

// ---------------------------------------------------------------------------
// Canonical Error Taxonomy
// ---------------------------------------------------------------------------

// ErrorCode is the canonical, provider-agnostic error classification.
// Raw provider error shapes never leak above the transport boundary.
type ErrorCode string

const (
	ErrorCodeRateLimited            ErrorCode = "RATE_LIMITED"
	ErrorCodeTimeout                ErrorCode = "TIMEOUT"
	ErrorCodeNetwork                ErrorCode = "NETWORK"
	ErrorCodeAuth                   ErrorCode = "AUTH"
	ErrorCodePermission             ErrorCode = "PERMISSION"
	ErrorCodeValidation             ErrorCode = "VALIDATION"
	ErrorCodeNotFound               ErrorCode = "NOT_FOUND"
	ErrorCodeConflict               ErrorCode = "CONFLICT"
	ErrorCodeServerError            ErrorCode = "SERVER_ERROR"
	ErrorCodeInvalidResponse        ErrorCode = "INVALID_RESPONSE"
	ErrorCodeCircuitBreakerOpen     ErrorCode = "CIRCUIT_BREAKER_OPEN"
	ErrorCodeCredentialsNotFound    ErrorCode = "CREDENTIALS_NOT_FOUND"
	ErrorCodeInvalidCredentials     ErrorCode = "INVALID_CREDENTIALS"
	ErrorCodeAccountMismatch        ErrorCode = "BUSINESS_ACCOUNT_MISMATCH"
	ErrorCodeUnexpected             ErrorCode = "UNEXPECTED_ERROR"
)

// IsValid returns true if the error code is part of the canonical taxonomy
func (c ErrorCode) IsValid() bool {
	switch c {
	case ErrorCodeRateLimited, ErrorCodeTimeout, ErrorCodeNetwork, ErrorCodeAuth,
		ErrorCodePermission, ErrorCodeValidation, ErrorCodeNotFound, ErrorCodeConflict,
		ErrorCodeServerError, ErrorCodeInvalidResponse, ErrorCodeCircuitBreakerOpen,
		ErrorCodeCredentialsNotFound, ErrorCodeInvalidCredentials,
		ErrorCodeAccountMismatch, ErrorCodeUnexpected:
		return true
	default:
		return false
	}
}

// String returns the string representation of ErrorCode
func (c ErrorCode) String() string {
	return string(c)
}

// Retryable returns true if callers may retry an operation that failed with
// this code. UNEXPECTED_ERROR is handled separately because its retryability
// depends on whether a definitive client-side HTTP status was observed.
func (c ErrorCode) Retryable() bool {
	switch c {
	case ErrorCodeRateLimited, ErrorCodeTimeout, ErrorCodeNetwork, ErrorCodeServerError:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// AppError
// ---------------------------------------------------------------------------

// AppError is the normalized form of any failure talking to a marketplace.
// It carries enough context for callers to decide on retry scheduling and
// for support to trace the failing call by correlation ID.
type AppError struct {
	// Code is the canonical error classification
	Code ErrorCode
	// Message is a human-readable description
	Message string
	// Retryable indicates whether the operation may be retried by the caller
	Retryable bool
	// HTTPStatus is the upstream HTTP status, when one was observed
	HTTPStatus int
	// RateLimitResetAt is the absolute time the provider quota resets.
	// Always absolute, never a delta, so it survives async serialization.
	RateLimitResetAt *time.Time
	// Provider identifies which marketplace produced the error
	Provider ProviderCode
	// CorrelationID ties the error to the logical call across retries
	CorrelationID string
	// Details holds provider-specific diagnostics (error codes, envelope meta)
	Details map[string]string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("%s (%s, HTTP %d): %s", e.Code, e.Provider, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s (%s): %s", e.Code, e.Provider, e.Message)
}

// NewAppError creates a normalized marketplace error with retryability
// derived from the canonical code.
func NewAppError(provider ProviderCode, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: code.Retryable(),
		Provider:  provider,
	}
}

// WithHTTPStatus attaches the upstream HTTP status
func (e *AppError) WithHTTPStatus(status int) *AppError {
	e.HTTPStatus = status
	return e
}

// WithResetAt attaches the absolute rate limit reset timestamp
func (e *AppError) WithResetAt(t time.Time) *AppError {
	e.RateLimitResetAt = &t
	return e
}

// WithCorrelationID attaches the logical call correlation ID
func (e *AppError) WithCorrelationID(id string) *AppError {
	e.CorrelationID = id
	return e
}

// WithDetail attaches a provider-specific diagnostic detail
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// AsAppError unwraps err into an AppError, or nil if err is not one
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// ---------------------------------------------------------------------------
// UnsupportedStatusError
// ---------------------------------------------------------------------------

// UnsupportedStatusError indicates the provider returned an order status the
// normalizer does not recognize. Unknown statuses fail loud so operators
// notice new upstream statuses instead of silently misclassifying orders.
type UnsupportedStatusError struct {
	Provider ProviderCode
	Status   string
}

// Error implements the error interface
func (e *UnsupportedStatusError) Error() string {
	return fmt.Sprintf("marketplace: unsupported %s order status %q", e.Provider, e.Status)
}
