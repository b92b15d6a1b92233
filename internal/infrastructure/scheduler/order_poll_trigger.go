package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bricksync/backend/internal/domain/credential"
	"github.com/bricksync/backend/internal/domain/marketplace"
)

// ---------------------------------------------------------------------------
// OrderPollTriggerConfig
// ---------------------------------------------------------------------------

// OrderPollTriggerConfig holds configuration for the order poll trigger
type OrderPollTriggerConfig struct {
	// CheckInterval is how often to check for poll jobs to schedule
	CheckInterval time.Duration
}

// DefaultOrderPollTriggerConfig returns default configuration
func DefaultOrderPollTriggerConfig() OrderPollTriggerConfig {
	return OrderPollTriggerConfig{
		CheckInterval: time.Minute,
	}
}

// ---------------------------------------------------------------------------
// OrderPollTrigger
// ---------------------------------------------------------------------------

// OrderPollTrigger periodically enumerates active credentials and schedules
// a poll job for every tenant/provider pair whose interval has elapsed.
type OrderPollTrigger struct {
	config      OrderPollTriggerConfig
	scheduler   *OrderPollScheduler
	credentials credential.Repository
	logger      *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// Track last scheduled time per tenant/provider to avoid duplicate scheduling
	lastScheduledMu sync.RWMutex
	lastScheduled   map[string]time.Time
}

// NewOrderPollTrigger creates a new order poll trigger
func NewOrderPollTrigger(
	config OrderPollTriggerConfig,
	scheduler *OrderPollScheduler,
	credentials credential.Repository,
	logger *zap.Logger,
) *OrderPollTrigger {
	return &OrderPollTrigger{
		config:        config,
		scheduler:     scheduler,
		credentials:   credentials,
		logger:        logger,
		lastScheduled: make(map[string]time.Time),
	}
}

// Start starts the trigger loop
func (t *OrderPollTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Order poll trigger started",
		zap.Duration("check_interval", t.config.CheckInterval),
		zap.Duration("poll_interval", t.scheduler.config.EffectivePollInterval()),
	)

	return nil
}

// Stop stops the trigger loop
func (t *OrderPollTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Order poll trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop periodically checks and schedules poll jobs
func (t *OrderPollTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	// Run immediately on start
	t.CheckAndSchedule(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.CheckAndSchedule(ctx)
		}
	}
}

// CheckAndSchedule schedules a poll for every active credential with order
// sync enabled whose interval has elapsed. Returns the number scheduled.
func (t *OrderPollTrigger) CheckAndSchedule(ctx context.Context) int {
	creds, err := t.credentials.ListActive(ctx, nil)
	if err != nil {
		t.logger.Error("Failed to list active credentials", zap.Error(err))
		return 0
	}

	if len(creds) == 0 {
		t.logger.Debug("No active credentials to poll")
		return 0
	}

	now := time.Now()
	interval := t.scheduler.config.EffectivePollInterval()
	scheduled := 0

	for _, cred := range creds {
		if !cred.OrdersSyncEnabled {
			continue
		}

		key := t.makeKey(cred.TenantID, cred.Provider)

		t.lastScheduledMu.RLock()
		last, exists := t.lastScheduled[key]
		t.lastScheduledMu.RUnlock()

		if exists && now.Sub(last) < interval {
			continue
		}

		// Poll window overlaps the previous one to absorb clock skew.
		// The first poll reaches further back so nothing preceding the
		// process start is missed.
		var since time.Time
		if exists {
			since = last.Add(-t.scheduler.config.Lookback)
		} else {
			since = now.Add(-t.scheduler.config.FirstPollLookback)
		}

		if err := t.scheduler.SchedulePoll(cred.TenantID, cred.Provider, since); err != nil {
			t.logger.Error("Failed to schedule poll job",
				zap.String("tenant_id", cred.TenantID.String()),
				zap.String("provider", cred.Provider.String()),
				zap.Error(err),
			)
			continue
		}

		t.updateLastScheduled(key, now)
		scheduled++
	}

	if scheduled > 0 {
		t.logger.Debug("Scheduled poll jobs", zap.Int("count", scheduled))
	}
	return scheduled
}

// TriggerManualPoll schedules an immediate poll for one tenant/provider
func (t *OrderPollTrigger) TriggerManualPoll(tenantID uuid.UUID, provider marketplace.ProviderCode, since time.Time) error {
	t.logger.Info("Manual order poll triggered",
		zap.String("tenant_id", tenantID.String()),
		zap.String("provider", provider.String()),
		zap.Time("since", since),
	)
	return t.scheduler.SchedulePoll(tenantID, provider, since)
}

// makeKey creates a unique key for a tenant/provider combination
func (t *OrderPollTrigger) makeKey(tenantID uuid.UUID, provider marketplace.ProviderCode) string {
	return tenantID.String() + ":" + provider.String()
}

// updateLastScheduled updates the last scheduled time for a key
func (t *OrderPollTrigger) updateLastScheduled(key string, at time.Time) {
	t.lastScheduledMu.Lock()
	t.lastScheduled[key] = at
	t.lastScheduledMu.Unlock()
}
