package marketplace

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Rate Limiter / Circuit Breaker
// ---------------------------------------------------------------------------

const (
	// BreakerFailureThreshold is the number of consecutive failures that
	// opens the circuit breaker
	BreakerFailureThreshold = 5
	// BreakerCooldown is how long the breaker stays open once tripped
	BreakerCooldown = 5 * time.Minute
	// DefaultAlertThreshold is the window usage ratio that emits a quota alert
	DefaultAlertThreshold = 0.8
)

// Quota describes the request budget for one (tenant, provider) pair
type Quota struct {
	// Capacity is the maximum number of requests per window
	Capacity int
	// WindowDuration is the sliding window length
	WindowDuration time.Duration
	// AlertThreshold is the usage ratio (0..1) that emits an alert once per window
	AlertThreshold float64
}

// DefaultQuota returns the published request budget for a provider
func DefaultQuota(provider ProviderCode) Quota {
	switch provider {
	case ProviderCodeBrickOwl:
		return Quota{Capacity: 300, WindowDuration: time.Minute, AlertThreshold: DefaultAlertThreshold}
	default:
		return Quota{Capacity: 5000, WindowDuration: 24 * time.Hour, AlertThreshold: DefaultAlertThreshold}
	}
}

// RateLimitState is the per-(tenant, provider) admission state. It combines
// two independent failure modes: quota exhaustion, which self-heals every
// window, and sustained provider failure, which opens a cooldown gate.
// All methods take the current time explicitly so the state machine is pure
// and testable without a clock.
type RateLimitState struct {
	// TenantID scopes the state to one tenant
	TenantID uuid.UUID
	// Provider scopes the state to one marketplace
	Provider ProviderCode
	// WindowStart is when the current window opened
	WindowStart time.Time
	// RequestCount is the number of requests recorded in the current window
	RequestCount int
	// Capacity is the window request budget
	Capacity int
	// WindowDuration is the window length
	WindowDuration time.Duration
	// AlertThreshold is the usage ratio that emits a quota alert
	AlertThreshold float64
	// AlertEmitted records whether the alert fired this window
	AlertEmitted bool
	// ConsecutiveFailures counts failures since the last success
	ConsecutiveFailures int
	// CircuitBreakerOpenUntil is set while the breaker is open
	CircuitBreakerOpenUntil *time.Time
	// UpdatedAt is the last mutation time, used by stores for CAS checks
	UpdatedAt time.Time
}

// NewRateLimitState creates fresh admission state for a tenant and provider
func NewRateLimitState(tenantID uuid.UUID, provider ProviderCode, quota Quota, now time.Time) *RateLimitState {
	if quota.AlertThreshold <= 0 || quota.AlertThreshold > 1 {
		quota.AlertThreshold = DefaultAlertThreshold
	}
	return &RateLimitState{
		TenantID:       tenantID,
		Provider:       provider,
		WindowStart:    now,
		Capacity:       quota.Capacity,
		WindowDuration: quota.WindowDuration,
		AlertThreshold: quota.AlertThreshold,
		UpdatedAt:      now,
	}
}

// AdmitDecision is the result of an admission check
type AdmitDecision struct {
	// Allowed is true when the request may proceed
	Allowed bool
	// Reason is set when the request is rejected
	Reason ErrorCode
	// RetryAfter is how long the caller must wait before the gate can open
	RetryAfter time.Duration
}

// windowExpired reports whether the current window has elapsed
func (s *RateLimitState) windowExpired(now time.Time) bool {
	return now.Sub(s.WindowStart) >= s.WindowDuration
}

// Admit decides whether a request against this tenant/provider may proceed.
// The breaker is checked first: an open breaker rejects regardless of quota.
func (s *RateLimitState) Admit(now time.Time) AdmitDecision {
	if s.CircuitBreakerOpenUntil != nil && s.CircuitBreakerOpenUntil.After(now) {
		return AdmitDecision{
			Allowed:    false,
			Reason:     ErrorCodeCircuitBreakerOpen,
			RetryAfter: s.CircuitBreakerOpenUntil.Sub(now),
		}
	}
	if !s.windowExpired(now) && s.RequestCount >= s.Capacity {
		return AdmitDecision{
			Allowed:    false,
			Reason:     ErrorCodeRateLimited,
			RetryAfter: s.WindowStart.Add(s.WindowDuration).Sub(now),
		}
	}
	return AdmitDecision{Allowed: true}
}

// RecordSuccess records one successful logical call. Returns true when the
// quota alert should be emitted, which happens at most once per window.
// A success always clears the failure counter and the breaker.
func (s *RateLimitState) RecordSuccess(now time.Time) bool {
	if s.windowExpired(now) {
		// Roll the window. The count reflects only the triggering request.
		s.WindowStart = now
		s.RequestCount = 1
		s.AlertEmitted = false
	} else {
		s.RequestCount++
	}

	s.ConsecutiveFailures = 0
	s.CircuitBreakerOpenUntil = nil
	s.UpdatedAt = now

	if s.Capacity > 0 && !s.AlertEmitted {
		usage := float64(s.RequestCount) / float64(s.Capacity)
		if usage >= s.AlertThreshold {
			s.AlertEmitted = true
			return true
		}
	}
	return false
}

// RecordFailure records one failed logical call and opens the breaker once
// the consecutive failure threshold is reached.
func (s *RateLimitState) RecordFailure(now time.Time) {
	s.ConsecutiveFailures++
	if s.ConsecutiveFailures >= BreakerFailureThreshold {
		openUntil := now.Add(BreakerCooldown)
		s.CircuitBreakerOpenUntil = &openUntil
	}
	s.UpdatedAt = now
}

// BreakerOpen reports whether the circuit breaker currently rejects requests
func (s *RateLimitState) BreakerOpen(now time.Time) bool {
	return s.CircuitBreakerOpenUntil != nil && s.CircuitBreakerOpenUntil.After(now)
}

// Remaining returns the unused request budget in the current window
func (s *RateLimitState) Remaining(now time.Time) int {
	if s.windowExpired(now) {
		return s.Capacity
	}
	remaining := s.Capacity - s.RequestCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ---------------------------------------------------------------------------
// RateLimitStore Port
// ---------------------------------------------------------------------------

// RateLimitStore persists admission state per (tenant, provider). Update must
// linearize concurrent mutations of the same key: two callers racing for the
// last slot in a window must not both pass admission. Implementations use
// the store's atomic compare-and-patch primitive, never a read-modify-write.
type RateLimitStore interface {
	// Update loads the state for (tenantID, provider), creating it from
	// quota when absent, applies fn atomically, and persists the result.
	// The returned state is the post-mutation snapshot.
	Update(ctx context.Context, tenantID uuid.UUID, provider ProviderCode, quota Quota, fn func(*RateLimitState) error) (*RateLimitState, error)

	// Get returns the current state without mutating it, or nil when the
	// pair has no recorded state yet.
	Get(ctx context.Context, tenantID uuid.UUID, provider ProviderCode) (*RateLimitState, error)
}
