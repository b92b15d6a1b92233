package sync

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/bricksync/backend/internal/domain/credential"
	"github.com/bricksync/backend/internal/domain/marketplace"
	"github.com/bricksync/backend/internal/domain/shared"
)

// ErrUnknownWebhookToken indicates the callback token maps to no tenant.
// The HTTP layer still answers 200 so callers cannot probe for valid tokens.
var ErrUnknownWebhookToken = errors.New("sync: unknown webhook token")

// processTimeout bounds the async processing of one notification
const processTimeout = 60 * time.Second

// maxNotificationAttempts is how often the polling sweep retries a
// notification before leaving it failed for operators
const maxNotificationAttempts = 3

// ---------------------------------------------------------------------------
// Receive Types
// ---------------------------------------------------------------------------

// WebhookEvent is one validated push notification delivery
type WebhookEvent struct {
	EventType  marketplace.WebhookEventType
	ResourceID int64
	Timestamp  time.Time
}

// ReceiveResult tells the HTTP layer how a delivery was classified
type ReceiveResult struct {
	// Accepted is true for every structurally valid delivery
	Accepted bool
	// Duplicate is true when the delivery collapsed onto a known dedupe key
	Duplicate bool
	// Replay is true when the event timestamp fell outside the replay window
	Replay bool
	// DedupeKey identifies the logical event, empty for replays
	DedupeKey string
}

// ---------------------------------------------------------------------------
// WebhookService
// ---------------------------------------------------------------------------

// WebhookService receives marketplace push notifications, deduplicates them
// and dispatches order ingestion. The notifications table is the
// authoritative dedupe barrier; the idempotency store in front of it only
// short-circuits the common duplicate case.
type WebhookService struct {
	credentials   credential.Repository
	notifications marketplace.WebhookNotificationRepository
	ingestion     *IngestionService
	dedupe        shared.IdempotencyStore
	logger        *zap.Logger

	now      func() time.Time
	dispatch func(fn func())
}

// WebhookOption configures a WebhookService
type WebhookOption func(*WebhookService)

// WithClock overrides the wall clock used for replay detection
func WithClock(now func() time.Time) WebhookOption {
	return func(s *WebhookService) { s.now = now }
}

// WithDispatcher overrides how processing work is scheduled. The default
// dispatches to a goroutine so the HTTP response never waits on ingestion.
func WithDispatcher(dispatch func(fn func())) WebhookOption {
	return func(s *WebhookService) { s.dispatch = dispatch }
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(
	credentials credential.Repository,
	notifications marketplace.WebhookNotificationRepository,
	ingestion *IngestionService,
	dedupe shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...WebhookOption,
) *WebhookService {
	s := &WebhookService{
		credentials:   credentials,
		notifications: notifications,
		ingestion:     ingestion,
		dedupe:        dedupe,
		logger:        logger,
		now:           time.Now,
		dispatch:      func(fn func()) { go fn() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Receive handles one webhook delivery for the tenant behind the callback
// token. It acknowledges fast and processes asynchronously; the provider
// never waits on order ingestion.
func (s *WebhookService) Receive(ctx context.Context, token string, event *WebhookEvent) (*ReceiveResult, error) {
	cred, err := s.credentials.FindByWebhookToken(ctx, token)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return nil, ErrUnknownWebhookToken
		}
		return nil, err
	}

	n, err := marketplace.NewWebhookNotification(cred.TenantID, cred.Provider, event.EventType, event.ResourceID, event.Timestamp)
	if err != nil {
		return nil, err
	}

	// Provider-side replays of old events are acknowledged without creating
	// any processing state.
	if n.IsReplay(s.now()) {
		s.logger.Debug("webhook replay acknowledged",
			zap.String("tenant_id", cred.TenantID.String()),
			zap.String("provider", cred.Provider.String()),
			zap.String("dedupe_key", n.DedupeKey))
		return &ReceiveResult{Accepted: true, Replay: true}, nil
	}

	// Fast path: a delivery already seen within the replay window. The store
	// is best effort, so errors fall through to the table.
	fresh, err := s.dedupe.MarkProcessed(ctx, n.DedupeKey, marketplace.ReplayWindow)
	if err != nil {
		s.logger.Warn("webhook dedupe store unavailable, falling back to table",
			zap.String("dedupe_key", n.DedupeKey), zap.Error(err))
	}
	if err == nil && !fresh {
		known, err := s.notifications.FindByDedupeKey(ctx, n.DedupeKey)
		if err != nil {
			return nil, err
		}
		if known != nil && known.Status.IsTerminal() {
			return &ReceiveResult{Accepted: true, Duplicate: true, DedupeKey: n.DedupeKey}, nil
		}
	}

	stored, created, err := s.notifications.Upsert(ctx, n)
	if err != nil {
		return nil, err
	}
	if stored.Status.IsTerminal() {
		return &ReceiveResult{Accepted: true, Duplicate: true, DedupeKey: stored.DedupeKey}, nil
	}

	s.dispatch(func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()
		s.process(bgCtx, stored)
	})

	return &ReceiveResult{
		Accepted:  true,
		Duplicate: !created,
		DedupeKey: stored.DedupeKey,
	}, nil
}

// RetrySweep reprocesses pending and failed notifications. Called by the
// polling scheduler as the safety net for lost or failed deliveries.
func (s *WebhookService) RetrySweep(ctx context.Context, limit int) (int, error) {
	retryable, err := s.notifications.ListRetryable(ctx, limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, n := range retryable {
		if n.Attempts >= maxNotificationAttempts {
			continue
		}
		s.process(ctx, n)
		processed++
	}
	return processed, nil
}

// process runs one notification through ingestion and records the outcome
func (s *WebhookService) process(ctx context.Context, n *marketplace.WebhookNotification) {
	n.MarkProcessing()
	if err := s.notifications.Update(ctx, n); err != nil {
		s.logger.Error("failed to mark notification processing",
			zap.String("dedupe_key", n.DedupeKey), zap.Error(err))
		return
	}

	err := s.handle(ctx, n)
	if err != nil {
		n.MarkFailed(err)
		s.logger.Warn("webhook processing failed",
			zap.String("tenant_id", n.TenantID.String()),
			zap.String("provider", n.Provider.String()),
			zap.String("dedupe_key", n.DedupeKey),
			zap.Int("attempts", n.Attempts),
			zap.Error(err))
	} else {
		n.MarkCompleted()
	}

	if err := s.notifications.Update(ctx, n); err != nil {
		s.logger.Error("failed to record notification outcome",
			zap.String("dedupe_key", n.DedupeKey), zap.Error(err))
	}
}

// handle performs the provider work for one notification kind. Only order
// events pull data; message and feedback events are acknowledged as-is.
func (s *WebhookService) handle(ctx context.Context, n *marketplace.WebhookNotification) error {
	switch n.EventType {
	case marketplace.WebhookEventOrder:
		externalOrderID := strconv.FormatInt(n.ResourceID, 10)
		_, err := s.ingestion.IngestOrder(ctx, n.TenantID, n.Provider, externalOrderID)
		return err
	case marketplace.WebhookEventMessage, marketplace.WebhookEventFeedback:
		return nil
	default:
		return errors.New("sync: unhandled webhook event type " + n.EventType.String())
	}
}
