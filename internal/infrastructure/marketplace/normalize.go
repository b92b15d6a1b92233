package marketplace

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bricksync/backend/internal/domain/marketplace"
)

// rawError is everything the transport observed about a failed call before
// normalization. Raw provider error shapes never propagate past this file.
type rawError struct {
	// HTTPStatus is the upstream status code, 0 for network-level failures
	HTTPStatus int
	// ProviderCode is the explicit error code from the provider envelope
	ProviderCode string
	// Message is the provider error message or transport error text
	Message string
	// RetryAfterHeader is the raw Retry-After header value, if present
	RetryAfterHeader string
	// RetryAfterBodyMs is the provider-body retry_after hint in milliseconds
	RetryAfterBodyMs int64
	// NetworkErr marks a failure below the HTTP layer
	NetworkErr bool
	// TimeoutErr marks a context deadline or client timeout
	TimeoutErr bool
}

// normalizeError maps a raw provider failure onto the canonical taxonomy.
// Mapping priority: explicit provider error code, then HTTP status bucket,
// then substring heuristics on the code string, then UNEXPECTED_ERROR.
func normalizeError(provider marketplace.ProviderCode, raw rawError, now time.Time) *marketplace.AppError {
	code := classify(raw)

	appErr := marketplace.NewAppError(provider, code, errorMessage(raw))
	if raw.HTTPStatus > 0 {
		appErr.WithHTTPStatus(raw.HTTPStatus)
	}
	if raw.ProviderCode != "" {
		appErr.WithDetail("provider_code", raw.ProviderCode)
	}

	// UNEXPECTED_ERROR is retryable only absent a definitive client-side status.
	if code == marketplace.ErrorCodeUnexpected {
		appErr.Retryable = raw.HTTPStatus < 400 || raw.HTTPStatus >= 500
	}

	if resetAt := retryAfterTime(raw, now); resetAt != nil {
		appErr.WithResetAt(*resetAt)
	}
	return appErr
}

// classify picks the canonical code for a raw failure
func classify(raw rawError) marketplace.ErrorCode {
	// Priority 1: explicit provider error codes.
	if code, ok := providerCodeMap[strings.ToUpper(raw.ProviderCode)]; ok {
		return code
	}

	// Priority 2: HTTP status bucket.
	switch {
	case raw.HTTPStatus == http.StatusUnauthorized:
		return marketplace.ErrorCodeAuth
	case raw.HTTPStatus == http.StatusForbidden:
		return marketplace.ErrorCodePermission
	case raw.HTTPStatus == http.StatusNotFound:
		return marketplace.ErrorCodeNotFound
	case raw.HTTPStatus == http.StatusConflict:
		return marketplace.ErrorCodeConflict
	case raw.HTTPStatus == http.StatusTooManyRequests:
		return marketplace.ErrorCodeRateLimited
	case raw.HTTPStatus == http.StatusRequestTimeout:
		return marketplace.ErrorCodeTimeout
	case raw.HTTPStatus >= 500:
		return marketplace.ErrorCodeServerError
	case raw.HTTPStatus >= 400:
		return marketplace.ErrorCodeValidation
	}

	// Priority 3: substring heuristics on the provider code string.
	upper := strings.ToUpper(raw.ProviderCode)
	switch {
	case strings.Contains(upper, "TIMEOUT"):
		return marketplace.ErrorCodeTimeout
	case strings.Contains(upper, "NETWORK"):
		return marketplace.ErrorCodeNetwork
	}

	// Network and timeout conditions observed by the transport itself.
	if raw.TimeoutErr {
		return marketplace.ErrorCodeTimeout
	}
	if raw.NetworkErr {
		return marketplace.ErrorCodeNetwork
	}

	return marketplace.ErrorCodeUnexpected
}

// providerCodeMap maps explicit provider error codes onto the taxonomy.
// These take priority over the HTTP status bucket.
var providerCodeMap = map[string]marketplace.ErrorCode{
	"INVALID_TOKEN":       marketplace.ErrorCodeAuth,
	"TOKEN_EXPIRED":       marketplace.ErrorCodeAuth,
	"BAD_OAUTH_REQUEST":   marketplace.ErrorCodeAuth,
	"PERMISSION_DENIED":   marketplace.ErrorCodePermission,
	"RESOURCE_NOT_FOUND":  marketplace.ErrorCodeNotFound,
	"PARAMETER_MISSING_OR_INVALID": marketplace.ErrorCodeValidation,
	"INVALID_REQUEST_BODY":         marketplace.ErrorCodeValidation,
	"RATE_LIMIT_EXCEEDED":          marketplace.ErrorCodeRateLimited,
	"INTERNAL_SERVER_ERROR":        marketplace.ErrorCodeServerError,
}

// errorMessage picks the most useful human-readable message
func errorMessage(raw rawError) string {
	if raw.Message != "" {
		return raw.Message
	}
	if raw.HTTPStatus > 0 {
		return "HTTP " + strconv.Itoa(raw.HTTPStatus) + " " + http.StatusText(raw.HTTPStatus)
	}
	return "request failed"
}

// retryAfterTime resolves the provider's retry hint to an absolute
// timestamp. The header form (seconds or HTTP-date) wins over the body hint.
// Always absolute so the value survives serialization across async
// boundaries.
func retryAfterTime(raw rawError, now time.Time) *time.Time {
	if raw.RetryAfterHeader != "" {
		if secs, err := strconv.ParseInt(strings.TrimSpace(raw.RetryAfterHeader), 10, 64); err == nil && secs >= 0 {
			t := now.Add(time.Duration(secs) * time.Second)
			return &t
		}
		if t, err := http.ParseTime(raw.RetryAfterHeader); err == nil {
			return &t
		}
	}
	if raw.RetryAfterBodyMs > 0 {
		t := now.Add(time.Duration(raw.RetryAfterBodyMs) * time.Millisecond)
		return &t
	}
	return nil
}
