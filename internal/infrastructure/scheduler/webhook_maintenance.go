package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bricksync/backend/internal/domain/credential"
	"github.com/bricksync/backend/internal/domain/marketplace"
)

// NotificationRetrier is the slice of the webhook service the sweep needs
type NotificationRetrier interface {
	RetrySweep(ctx context.Context, limit int) (int, error)
}

// ---------------------------------------------------------------------------
// WebhookMaintenanceConfig
// ---------------------------------------------------------------------------

// WebhookMaintenanceConfig holds configuration for the webhook maintenance sweep
type WebhookMaintenanceConfig struct {
	// Enabled indicates if the sweep is enabled
	Enabled bool
	// SweepInterval is how often the maintenance sweep runs
	SweepInterval time.Duration
	// StaleAfter is how old a verified registration may get before it is
	// re-registered
	StaleAfter time.Duration
	// CallbackBaseURL is the public base URL webhook callbacks resolve to
	CallbackBaseURL string
	// RetryBatchSize bounds how many stuck notifications one sweep retries
	RetryBatchSize int
	// SweepTimeout bounds one full sweep
	SweepTimeout time.Duration
}

// DefaultWebhookMaintenanceConfig returns default configuration
func DefaultWebhookMaintenanceConfig() WebhookMaintenanceConfig {
	return WebhookMaintenanceConfig{
		Enabled:        true,
		SweepInterval:  10 * time.Minute,
		StaleAfter:     24 * time.Hour,
		RetryBatchSize: 50,
		SweepTimeout:   5 * time.Minute,
	}
}

// Validate validates the configuration
func (c *WebhookMaintenanceConfig) Validate() error {
	if c.SweepInterval <= 0 {
		return ErrInvalidConfig
	}
	if c.StaleAfter <= 0 {
		return ErrInvalidConfig
	}
	if c.RetryBatchSize <= 0 {
		return ErrInvalidConfig
	}
	if c.CallbackBaseURL == "" {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// WebhookMaintenance
// ---------------------------------------------------------------------------

// WebhookMaintenance keeps push notifications healthy in the background.
// Each sweep re-registers callback URLs that drifted or went stale and
// retries webhook notifications that failed processing, so a tenant whose
// registration broke degrades to polling instead of silently losing orders.
type WebhookMaintenance struct {
	config      WebhookMaintenanceConfig
	credentials credential.Repository
	registry    marketplace.Registry
	webhooks    NotificationRetrier
	logger      *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	now func() time.Time
}

// NewWebhookMaintenance creates a new webhook maintenance sweep
func NewWebhookMaintenance(
	config WebhookMaintenanceConfig,
	credentials credential.Repository,
	registry marketplace.Registry,
	webhooks NotificationRetrier,
	logger *zap.Logger,
) (*WebhookMaintenance, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &WebhookMaintenance{
		config:      config,
		credentials: credentials,
		registry:    registry,
		webhooks:    webhooks,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Start starts the sweep loop
func (m *WebhookMaintenance) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return nil
	}
	m.isRunning = true
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.runLoop(ctx)

	m.logger.Info("Webhook maintenance started",
		zap.Duration("sweep_interval", m.config.SweepInterval),
		zap.Duration("stale_after", m.config.StaleAfter),
	)

	return nil
}

// Stop stops the sweep loop
func (m *WebhookMaintenance) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return nil
	}
	m.isRunning = false
	m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("Webhook maintenance stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop runs the sweep on a fixed interval
func (m *WebhookMaintenance) runLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	// Run immediately on start
	m.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

// sweep runs one bounded maintenance pass
func (m *WebhookMaintenance) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, m.config.SweepTimeout)
	defer cancel()

	registered := m.SweepRegistrations(sweepCtx)
	retried, err := m.webhooks.RetrySweep(sweepCtx, m.config.RetryBatchSize)
	if err != nil {
		m.logger.Error("Notification retry sweep failed", zap.Error(err))
	}

	if registered > 0 || retried > 0 {
		m.logger.Info("Webhook maintenance sweep completed",
			zap.Int("registrations", registered),
			zap.Int("notifications_retried", retried),
		)
	}
}

// SweepRegistrations re-registers every stale webhook registration and
// returns how many registrations were attempted.
func (m *WebhookMaintenance) SweepRegistrations(ctx context.Context) int {
	creds, err := m.credentials.ListActive(ctx, nil)
	if err != nil {
		m.logger.Error("Failed to list active credentials", zap.Error(err))
		return 0
	}

	now := m.now()
	attempted := 0

	for _, cred := range creds {
		desiredURL := m.callbackURL(cred)
		if !cred.WebhookRegistrationStale(desiredURL, m.config.StaleAfter, now) {
			continue
		}

		attempted++
		m.registerOne(ctx, cred, desiredURL)
	}

	return attempted
}

// registerOne registers one credential's callback and persists the outcome
func (m *WebhookMaintenance) registerOne(ctx context.Context, cred *credential.Credential, callbackURL string) {
	adapter, err := m.registry.Get(cred.Provider)
	if err != nil {
		m.logger.Warn("No adapter for provider, skipping webhook registration",
			zap.String("provider", cred.Provider.String()),
			zap.Error(err),
		)
		return
	}

	registrar, ok := adapter.(marketplace.WebhookRegistrar)
	if !ok {
		m.logger.Debug("Adapter does not support webhook registration",
			zap.String("provider", cred.Provider.String()),
		)
		return
	}

	if err := registrar.RegisterWebhook(ctx, cred.TenantID, callbackURL); err != nil {
		cred.MarkWebhookError()
		m.logger.Warn("Webhook registration failed",
			zap.String("tenant_id", cred.TenantID.String()),
			zap.String("provider", cred.Provider.String()),
			zap.Error(err),
		)
	} else {
		cred.MarkWebhookRegistered(callbackURL)
		m.logger.Info("Webhook registration refreshed",
			zap.String("tenant_id", cred.TenantID.String()),
			zap.String("provider", cred.Provider.String()),
		)
	}

	if err := m.credentials.Save(ctx, cred); err != nil {
		m.logger.Error("Failed to persist webhook registration state",
			zap.String("tenant_id", cred.TenantID.String()),
			zap.String("provider", cred.Provider.String()),
			zap.Error(err),
		)
	}
}

// callbackURL builds the tenant's callback URL from the base URL and the
// credential's webhook token
func (m *WebhookMaintenance) callbackURL(cred *credential.Credential) string {
	return strings.TrimRight(m.config.CallbackBaseURL, "/") + "/webhook/" + cred.WebhookToken
}
