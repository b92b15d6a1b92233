package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bricksync/backend/internal/domain/marketplace"
)

// Limiter gates outbound provider calls against the shared admission state.
// Admission and outcome reporting go through the store's atomic update so
// concurrent workers on different instances see one consistent window and
// breaker per (tenant, provider).
type Limiter struct {
	store  marketplace.RateLimitStore
	logger *zap.Logger

	// quotaFor resolves the request budget for a provider, replaceable in
	// tests to shrink windows
	quotaFor func(marketplace.ProviderCode) marketplace.Quota
	// now is replaceable in tests
	now func() time.Time
}

// NewLimiter creates a limiter backed by the given store
func NewLimiter(store marketplace.RateLimitStore, logger *zap.Logger) *Limiter {
	return &Limiter{
		store:    store,
		logger:   logger,
		quotaFor: marketplace.DefaultQuota,
		now:      time.Now,
	}
}

// Admit rejects with a normalized error when the quota is exhausted or the
// circuit breaker is open. Admission does not consume budget; the budget is
// consumed when the outcome is reported.
func (l *Limiter) Admit(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode) error {
	now := l.now()

	var decision marketplace.AdmitDecision
	_, err := l.store.Update(ctx, tenantID, provider, l.quotaFor(provider), func(state *marketplace.RateLimitState) error {
		decision = state.Admit(now)
		return nil
	})
	if err != nil {
		return marketplace.NewAppError(provider, marketplace.ErrorCodeUnexpected,
			"rate limit state unavailable: "+err.Error())
	}

	if decision.Allowed {
		return nil
	}

	appErr := marketplace.NewAppError(provider, decision.Reason, rejectionMessage(decision.Reason))
	appErr.WithResetAt(now.Add(decision.RetryAfter))
	if decision.Reason == marketplace.ErrorCodeCircuitBreakerOpen {
		// Breaker rejections are not retryable by the caller; the cooldown
		// gate has to elapse first.
		appErr.Retryable = false
	}

	l.logger.Debug("provider call rejected",
		zap.String("tenant_id", tenantID.String()),
		zap.String("provider", provider.String()),
		zap.String("reason", decision.Reason.String()),
		zap.Duration("retry_after", decision.RetryAfter),
	)
	return appErr
}

// ReportSuccess consumes one unit of budget and clears the failure streak.
// Crossing the alert threshold logs once per window.
func (l *Limiter) ReportSuccess(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode) {
	now := l.now()

	var alert bool
	state, err := l.store.Update(ctx, tenantID, provider, l.quotaFor(provider), func(s *marketplace.RateLimitState) error {
		alert = s.RecordSuccess(now)
		return nil
	})
	if err != nil {
		l.logger.Error("failed to record provider call success",
			zap.String("tenant_id", tenantID.String()),
			zap.String("provider", provider.String()),
			zap.Error(err),
		)
		return
	}

	if alert {
		l.logger.Warn("provider quota alert threshold crossed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("provider", provider.String()),
			zap.Int("used", state.RequestCount),
			zap.Int("capacity", state.Capacity),
			zap.Int("remaining", state.Remaining(now)),
		)
	}
}

// ReportFailure records one failed logical call. Reaching the consecutive
// failure threshold opens the breaker for the cooldown period.
func (l *Limiter) ReportFailure(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode) {
	now := l.now()

	var opened bool
	_, err := l.store.Update(ctx, tenantID, provider, l.quotaFor(provider), func(s *marketplace.RateLimitState) error {
		wasOpen := s.BreakerOpen(now)
		s.RecordFailure(now)
		opened = !wasOpen && s.BreakerOpen(now)
		return nil
	})
	if err != nil {
		l.logger.Error("failed to record provider call failure",
			zap.String("tenant_id", tenantID.String()),
			zap.String("provider", provider.String()),
			zap.Error(err),
		)
		return
	}

	if opened {
		l.logger.Warn("circuit breaker opened",
			zap.String("tenant_id", tenantID.String()),
			zap.String("provider", provider.String()),
			zap.Duration("cooldown", marketplace.BreakerCooldown),
		)
	}
}

// rejectionMessage returns the human-readable message for a rejection reason
func rejectionMessage(reason marketplace.ErrorCode) string {
	switch reason {
	case marketplace.ErrorCodeCircuitBreakerOpen:
		return "circuit breaker open after repeated provider failures"
	case marketplace.ErrorCodeRateLimited:
		return "provider request quota exhausted for current window"
	default:
		return "provider call rejected"
	}
}
