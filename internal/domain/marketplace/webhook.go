package marketplace

import (
	"context"
	"fmt"
	"time"

	"github.com/bricksync/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Webhook Notifications
// ---------------------------------------------------------------------------

// ReplayWindow is how far in the past a notification timestamp may lie
// before the delivery is treated as a provider-side replay and acknowledged
// without creating processing state.
const ReplayWindow = time.Hour

// WebhookEventType enumerates the notification kinds providers push
type WebhookEventType string

const (
	// WebhookEventOrder signals an order was created or changed
	WebhookEventOrder WebhookEventType = "Order"
	// WebhookEventMessage signals a new buyer/seller message
	WebhookEventMessage WebhookEventType = "Message"
	// WebhookEventFeedback signals new feedback was posted
	WebhookEventFeedback WebhookEventType = "Feedback"
)

// IsValid returns true if the event type is valid
func (t WebhookEventType) IsValid() bool {
	switch t {
	case WebhookEventOrder, WebhookEventMessage, WebhookEventFeedback:
		return true
	default:
		return false
	}
}

// String returns the string representation of WebhookEventType
func (t WebhookEventType) String() string {
	return string(t)
}

// NotificationStatus is the processing state of a received notification
type NotificationStatus string

const (
	// NotificationStatusPending means the notification awaits processing
	NotificationStatusPending NotificationStatus = "pending"
	// NotificationStatusProcessing means a worker picked it up
	NotificationStatusProcessing NotificationStatus = "processing"
	// NotificationStatusCompleted means the resource sync succeeded
	NotificationStatusCompleted NotificationStatus = "completed"
	// NotificationStatusFailed means the last attempt failed, retryable by the polling sweep
	NotificationStatusFailed NotificationStatus = "failed"
)

// IsValid returns true if the status is valid
func (s NotificationStatus) IsValid() bool {
	switch s {
	case NotificationStatusPending, NotificationStatusProcessing,
		NotificationStatusCompleted, NotificationStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of NotificationStatus
func (s NotificationStatus) String() string {
	return string(s)
}

// IsTerminal returns true once no further processing will happen
func (s NotificationStatus) IsTerminal() bool {
	return s == NotificationStatusCompleted
}

// DedupeKey builds the deterministic identity of a logical webhook event.
// Identical deliveries of the same event map to the same key.
func DedupeKey(tenantID uuid.UUID, eventType WebhookEventType, resourceID int64, timestamp time.Time) string {
	return fmt.Sprintf("%s:%s:%d:%s", tenantID, eventType, resourceID, timestamp.UTC().Format(time.RFC3339))
}

// WebhookNotification records one logical push notification per dedupe key
type WebhookNotification struct {
	shared.BaseEntity
	TenantID    uuid.UUID
	Provider    ProviderCode
	EventType   WebhookEventType
	ResourceID  int64
	EventTime   time.Time
	DedupeKey   string
	Status      NotificationStatus
	Attempts    int
	LastError   string
	ProcessedAt *time.Time
}

// NewWebhookNotification creates a pending notification for a delivery
func NewWebhookNotification(tenantID uuid.UUID, provider ProviderCode, eventType WebhookEventType, resourceID int64, eventTime time.Time) (*WebhookNotification, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !provider.IsValid() {
		return nil, shared.NewDomainError("INVALID_PROVIDER", "Invalid provider code")
	}
	if !eventType.IsValid() {
		return nil, shared.NewDomainError("INVALID_EVENT_TYPE", "Invalid webhook event type")
	}
	if resourceID <= 0 {
		return nil, shared.NewDomainError("INVALID_RESOURCE_ID", "Resource ID must be positive")
	}
	if eventTime.IsZero() {
		return nil, shared.NewDomainError("INVALID_TIMESTAMP", "Event timestamp cannot be zero")
	}

	return &WebhookNotification{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		Provider:   provider,
		EventType:  eventType,
		ResourceID: resourceID,
		EventTime:  eventTime,
		DedupeKey:  DedupeKey(tenantID, eventType, resourceID, eventTime),
		Status:     NotificationStatusPending,
	}, nil
}

// IsReplay reports whether the event timestamp falls outside the replay window
func (n *WebhookNotification) IsReplay(now time.Time) bool {
	return now.Sub(n.EventTime) > ReplayWindow
}

// MarkProcessing transitions the notification to processing and counts the attempt
func (n *WebhookNotification) MarkProcessing() {
	n.Status = NotificationStatusProcessing
	n.Attempts++
	n.UpdatedAt = time.Now()
}

// MarkCompleted transitions the notification to its terminal state
func (n *WebhookNotification) MarkCompleted() {
	now := time.Now()
	n.Status = NotificationStatusCompleted
	n.ProcessedAt = &now
	n.LastError = ""
	n.UpdatedAt = now
}

// MarkFailed records a failed attempt, leaving the notification retryable
func (n *WebhookNotification) MarkFailed(err error) {
	n.Status = NotificationStatusFailed
	if err != nil {
		n.LastError = err.Error()
	}
	n.UpdatedAt = time.Now()
}

// ResetForRedelivery resets attempt bookkeeping when the same dedupe key is
// received again while pending or failed. Re-receipt never duplicates.
func (n *WebhookNotification) ResetForRedelivery() {
	if n.Status == NotificationStatusPending || n.Status == NotificationStatusFailed {
		n.Status = NotificationStatusPending
		n.Attempts = 0
		n.LastError = ""
		n.UpdatedAt = time.Now()
	}
}

// ---------------------------------------------------------------------------
// WebhookNotificationRepository Port
// ---------------------------------------------------------------------------

// WebhookNotificationRepository persists notifications keyed by dedupe key
type WebhookNotificationRepository interface {
	// Upsert stores the notification, or resets the existing record with
	// the same dedupe key. Returns the stored notification and whether a
	// new record was created.
	Upsert(ctx context.Context, n *WebhookNotification) (*WebhookNotification, bool, error)

	// FindByDedupeKey returns the notification with the given key, or nil
	FindByDedupeKey(ctx context.Context, key string) (*WebhookNotification, error)

	// Update persists status/attempt changes
	Update(ctx context.Context, n *WebhookNotification) error

	// ListRetryable returns pending and failed notifications for the polling sweep
	ListRetryable(ctx context.Context, limit int) ([]*WebhookNotification, error)
}
