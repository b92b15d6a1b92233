package dto

import "net/http"

// Wire error codes, ERR_<DESCRIPTION>. Domain errors carry shorter codes
// (NOT_FOUND, INVALID_STATE); NormalizeErrorCode translates them at the
// boundary so handlers never leak internal spellings.

const (
	ErrCodeInternal   = "ERR_INTERNAL"
	ErrCodeValidation = "ERR_VALIDATION"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"

	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"

	ErrCodeInvalidState        = "ERR_INVALID_STATE"
	ErrCodeBusinessRule        = "ERR_BUSINESS_RULE"
	ErrCodeInsufficientStock   = "ERR_INSUFFICIENT_STOCK"
	ErrCodeProviderUnavailable = "ERR_PROVIDER_UNAVAILABLE"

	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"

	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

var statusByCode = map[string]int{
	ErrCodeInternal:   http.StatusInternalServerError,
	ErrCodeValidation: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule violations are well-formed requests the domain refuses
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:        http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock:   http.StatusUnprocessableEntity,
	ErrCodeProviderUnavailable: http.StatusServiceUnavailable,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status for a wire error code, defaulting to
// 500 for codes without a mapping
func GetHTTPStatus(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainCodeMapping translates domain error codes to wire codes
var domainCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"UNAUTHORIZED":         ErrCodeUnauthorized,
	"FORBIDDEN":            ErrCodeForbidden,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"INSUFFICIENT_STOCK":   ErrCodeInsufficientStock,
	"PROVIDER_UNAVAILABLE": ErrCodeProviderUnavailable,
	"VALIDATION_ERROR":     ErrCodeValidation,
	"BAD_REQUEST":          ErrCodeBadRequest,
	"INTERNAL_ERROR":       ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to its wire form. Codes
// already in wire form, and unknown codes, pass through unchanged.
func NormalizeErrorCode(code string) string {
	if wireCode, ok := domainCodeMapping[code]; ok {
		return wireCode
	}
	return code
}
