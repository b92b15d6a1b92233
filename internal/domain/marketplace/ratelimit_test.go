package marketplace

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(capacity int, window time.Duration, now time.Time) *RateLimitState {
	return NewRateLimitState(uuid.New(), ProviderCodeBrickLink, Quota{
		Capacity:       capacity,
		WindowDuration: window,
		AlertThreshold: DefaultAlertThreshold,
	}, now)
}

func TestRateLimitState_AdmissionWithinWindow(t *testing.T) {
	now := time.Now()
	state := newTestState(10, 60*time.Second, now)

	for i := 0; i < 10; i++ {
		decision := state.Admit(now)
		require.True(t, decision.Allowed, "request %d should be admitted", i+1)
		state.RecordSuccess(now)
	}

	decision := state.Admit(now)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ErrorCodeRateLimited, decision.Reason)
	assert.Positive(t, decision.RetryAfter)
}

func TestRateLimitState_WindowRollover(t *testing.T) {
	now := time.Now()
	state := newTestState(10, 60*time.Second, now)

	for i := 0; i < 10; i++ {
		state.RecordSuccess(now)
	}
	require.False(t, state.Admit(now).Allowed)

	later := now.Add(61 * time.Second)
	decision := state.Admit(later)
	assert.True(t, decision.Allowed)

	state.RecordSuccess(later)
	assert.Equal(t, 1, state.RequestCount, "rolled window reflects only the new request")
	assert.Equal(t, later, state.WindowStart)
	assert.False(t, state.AlertEmitted)
}

func TestRateLimitState_AlertEmittedOncePerWindow(t *testing.T) {
	now := time.Now()
	state := newTestState(10, 60*time.Second, now)

	alerts := 0
	for i := 0; i < 10; i++ {
		if state.RecordSuccess(now) {
			alerts++
		}
	}
	assert.Equal(t, 1, alerts, "threshold alert fires exactly once per window")

	// A new window re-arms the alert.
	later := now.Add(2 * time.Minute)
	for i := 0; i < 10; i++ {
		if state.RecordSuccess(later) {
			alerts++
		}
	}
	assert.Equal(t, 2, alerts)
}

func TestRateLimitState_CircuitBreakerTrip(t *testing.T) {
	now := time.Now()
	state := newTestState(10, 60*time.Second, now)

	for i := 0; i < BreakerFailureThreshold-1; i++ {
		state.RecordFailure(now)
		assert.Nil(t, state.CircuitBreakerOpenUntil)
	}

	state.RecordFailure(now)
	require.NotNil(t, state.CircuitBreakerOpenUntil)
	assert.Equal(t, now.Add(BreakerCooldown), *state.CircuitBreakerOpenUntil)

	decision := state.Admit(now)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ErrorCodeCircuitBreakerOpen, decision.Reason)
	assert.Positive(t, decision.RetryAfter)
}

func TestRateLimitState_SuccessClearsBreaker(t *testing.T) {
	now := time.Now()
	state := newTestState(10, 60*time.Second, now)

	for i := 0; i < BreakerFailureThreshold; i++ {
		state.RecordFailure(now)
	}
	require.True(t, state.BreakerOpen(now))

	// After the cooldown elapses, a success resets everything.
	later := now.Add(BreakerCooldown + time.Second)
	state.RecordSuccess(later)
	assert.Equal(t, 0, state.ConsecutiveFailures)
	assert.Nil(t, state.CircuitBreakerOpenUntil)
	assert.True(t, state.Admit(later).Allowed)
}

func TestRateLimitState_BreakerTakesPriorityOverQuota(t *testing.T) {
	now := time.Now()
	state := newTestState(1, 60*time.Second, now)
	state.RecordSuccess(now)
	for i := 0; i < BreakerFailureThreshold; i++ {
		state.RecordFailure(now)
	}

	decision := state.Admit(now)
	assert.Equal(t, ErrorCodeCircuitBreakerOpen, decision.Reason)
}

func TestDefaultQuota(t *testing.T) {
	bl := DefaultQuota(ProviderCodeBrickLink)
	assert.Equal(t, 5000, bl.Capacity)
	assert.Equal(t, 24*time.Hour, bl.WindowDuration)

	bo := DefaultQuota(ProviderCodeBrickOwl)
	assert.Equal(t, 300, bo.Capacity)
	assert.Equal(t, time.Minute, bo.WindowDuration)
}

func TestErrorCode_Retryable(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		retryable bool
	}{
		{ErrorCodeRateLimited, true},
		{ErrorCodeTimeout, true},
		{ErrorCodeNetwork, true},
		{ErrorCodeServerError, true},
		{ErrorCodeNotFound, false},
		{ErrorCodeAuth, false},
		{ErrorCodeValidation, false},
		{ErrorCodeCircuitBreakerOpen, false},
		{ErrorCodeInvalidResponse, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.code.Retryable())
		})
	}
}
