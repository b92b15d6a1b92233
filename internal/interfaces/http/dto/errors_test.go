package dto

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeAlreadyExists, http.StatusConflict},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeConcurrencyConflict, http.StatusConflict},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeBusinessRule, http.StatusUnprocessableEntity},
		{ErrCodeInsufficientStock, http.StatusUnprocessableEntity},
		{ErrCodeProviderUnavailable, http.StatusServiceUnavailable},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		// Unmapped codes are never worth guessing a status for
		{"SOMETHING_NEW", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	// Domain codes translate to wire codes
	assert.Equal(t, ErrCodeNotFound, NormalizeErrorCode("NOT_FOUND"))
	assert.Equal(t, ErrCodeInsufficientStock, NormalizeErrorCode("INSUFFICIENT_STOCK"))
	assert.Equal(t, ErrCodeProviderUnavailable, NormalizeErrorCode("PROVIDER_UNAVAILABLE"))
	assert.Equal(t, ErrCodeConcurrencyConflict, NormalizeErrorCode("CONCURRENCY_CONFLICT"))

	// Wire codes and unknown codes pass through
	assert.Equal(t, ErrCodeNotFound, NormalizeErrorCode(ErrCodeNotFound))
	assert.Equal(t, "RATE_LIMITED_BY_PROVIDER", NormalizeErrorCode("RATE_LIMITED_BY_PROVIDER"))
}

func TestEveryWireCodeHasAStatus(t *testing.T) {
	for code := range domainCodeMapping {
		wireCode := NormalizeErrorCode(code)
		_, ok := statusByCode[wireCode]
		assert.True(t, ok, "wire code %s has no HTTP status", wireCode)
	}
}

func TestNewErrorResponse_NormalizesDomainCode(t *testing.T) {
	before := time.Now()
	resp := NewErrorResponse("NOT_FOUND", "Order not found")

	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "Order not found", resp.Error.Message)
	assert.False(t, resp.Error.Timestamp.Before(before))
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeConflict, "Credential version changed", "req-123")

	assert.Equal(t, ErrCodeConflict, resp.Error.Code)
	assert.Equal(t, "req-123", resp.Error.RequestID)
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "fields", Message: "This field is required"},
		{Field: "callback_url", Message: "Invalid URL format"},
	}

	resp := NewValidationErrorResponse("Request validation failed", "req-789", details)

	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-789", resp.Error.RequestID)
	require.Len(t, resp.Error.Details, 2)
	assert.Equal(t, "fields", resp.Error.Details[0].Field)
}

func TestResponseJSONShape(t *testing.T) {
	data, err := json.Marshal(NewErrorResponseWithRequestID(ErrCodeNotFound, "Order not found", "req-1"))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, false, decoded["success"])
	errObj := decoded["error"].(map[string]any)
	assert.Equal(t, ErrCodeNotFound, errObj["code"])
	assert.Equal(t, "req-1", errObj["request_id"])
	// Omitted fields stay off the wire
	assert.NotContains(t, decoded, "data")
	assert.NotContains(t, errObj, "details")
}

func TestNewSuccessResponse(t *testing.T) {
	resp := NewSuccessResponse(map[string]string{"provider": "bricklink"})

	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}
