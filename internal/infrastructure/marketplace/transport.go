package marketplace

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bricksync/backend/internal/domain/marketplace"
)

// maxResponseSize is the maximum allowed response size from a provider (10MB)
const maxResponseSize = 10 * 1024 * 1024

const (
	// maxAttempts is the total attempt budget per logical call
	maxAttempts = 4
	// baseBackoff is the first retry delay, doubled each attempt
	baseBackoff = 500 * time.Millisecond
	// maxBackoff bounds the computed delay
	maxBackoff = 10 * time.Second
)

// retryableStatuses are the transient HTTP statuses worth retrying
var retryableStatuses = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooEarly:            true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// callRequest describes one logical provider call. Build is invoked once per
// attempt so authentication material (OAuth nonce, timestamp) is fresh every
// time; the correlation ID stays stable across attempts.
type callRequest struct {
	// Provider identifies the marketplace for error normalization
	Provider marketplace.ProviderCode
	// Idempotent marks the call safe to retry
	Idempotent bool
	// Build constructs the HTTP request for one attempt
	Build func(ctx context.Context) (*http.Request, error)
	// ParseError extracts the provider error code, message and body retry
	// hint from a failure response body. May be nil.
	ParseError func(status int, body []byte) (providerCode, message string, retryAfterMs int64)
}

// callResult is the structured outcome of a successful logical call
type callResult struct {
	StatusCode    int
	Body          []byte
	Header        http.Header
	Attempts      int
	Duration      time.Duration
	CorrelationID string
}

// Transport executes provider calls with bounded retry and exponential
// backoff. Retries happen only for idempotent requests, only on transient
// statuses or network failures, and a Retry-After header overrides the
// computed delay. Quota and breaker bookkeeping is the caller's concern:
// the transport reports one outcome per logical call, never per attempt.
type Transport struct {
	client *http.Client
	logger *zap.Logger

	// sleep is replaceable in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTransport creates a transport with the given timeout per attempt
func NewTransport(timeout time.Duration, logger *zap.Logger) *Transport {
	return &Transport{
		client: &http.Client{Timeout: timeout},
		logger: logger,
		sleep:  sleepCtx,
	}
}

// sleepCtx waits for d or until ctx is cancelled
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do executes one logical call. On failure the returned error is always a
// normalized *marketplace.AppError carrying the call's correlation ID.
func (t *Transport) Do(ctx context.Context, call *callRequest) (*callResult, error) {
	correlationID := uuid.NewString()
	start := time.Now()

	var lastErr *marketplace.AppError
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, appErr, retryable := t.attempt(ctx, call, correlationID, attempt)
		if appErr == nil {
			result.Attempts = attempt
			result.Duration = time.Since(start)
			result.CorrelationID = correlationID
			return result, nil
		}

		lastErr = appErr
		if !retryable || !call.Idempotent || attempt == maxAttempts {
			break
		}

		delay := backoffDelay(attempt, appErr)
		t.logger.Debug("retrying provider call",
			zap.String("provider", call.Provider.String()),
			zap.String("correlation_id", correlationID),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
		)
		if err := t.sleep(ctx, delay); err != nil {
			break
		}
	}

	lastErr.WithCorrelationID(correlationID)
	t.logger.Warn("provider call failed",
		zap.String("provider", call.Provider.String()),
		zap.String("correlation_id", correlationID),
		zap.String("code", lastErr.Code.String()),
		zap.Int("http_status", lastErr.HTTPStatus),
	)
	return nil, lastErr
}

// attempt executes a single HTTP attempt. The third return value reports
// whether the failure class is transient.
func (t *Transport) attempt(ctx context.Context, call *callRequest, correlationID string, attempt int) (*callResult, *marketplace.AppError, bool) {
	req, err := call.Build(ctx)
	if err != nil {
		appErr := marketplace.NewAppError(call.Provider, marketplace.ErrorCodeUnexpected, err.Error())
		return nil, appErr, false
	}
	req.Header.Set("X-Correlation-ID", correlationID)

	resp, err := t.client.Do(req)
	if err != nil {
		raw := rawError{Message: err.Error(), NetworkErr: true, TimeoutErr: isTimeout(err)}
		return nil, normalizeError(call.Provider, raw, time.Now()), true
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		raw := rawError{Message: "failed to read response: " + err.Error(), NetworkErr: true}
		return nil, normalizeError(call.Provider, raw, time.Now()), true
	}

	if resp.StatusCode < 400 {
		return &callResult{StatusCode: resp.StatusCode, Body: body, Header: resp.Header}, nil, false
	}

	raw := rawError{
		HTTPStatus:       resp.StatusCode,
		RetryAfterHeader: resp.Header.Get("Retry-After"),
	}
	if call.ParseError != nil {
		raw.ProviderCode, raw.Message, raw.RetryAfterBodyMs = call.ParseError(resp.StatusCode, body)
	}
	return nil, normalizeError(call.Provider, raw, time.Now()), retryableStatuses[resp.StatusCode]
}

// backoffDelay computes the wait before the next attempt. A provider reset
// hint overrides the exponential schedule.
func backoffDelay(attempt int, appErr *marketplace.AppError) time.Duration {
	if appErr.RateLimitResetAt != nil {
		if until := time.Until(*appErr.RateLimitResetAt); until > 0 {
			if until > maxBackoff {
				return maxBackoff
			}
			return until
		}
	}
	delay := baseBackoff << (attempt - 1)
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}

// isTimeout reports whether err is a deadline or client timeout
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
