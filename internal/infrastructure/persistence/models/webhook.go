package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bricksync/backend/internal/domain/marketplace"
)

// WebhookNotificationModel is the persistence model for one logical webhook
// delivery. The unique dedupe key index is the authoritative dedupe barrier;
// any cache-level check is only a fast path in front of it.
type WebhookNotificationModel struct {
	ID          uuid.UUID                       `gorm:"type:uuid;primary_key"`
	TenantID    uuid.UUID                       `gorm:"type:uuid;not null;index:idx_webhook_notifications_tenant"`
	Provider    marketplace.ProviderCode        `gorm:"type:varchar(20);not null"`
	EventType   marketplace.WebhookEventType    `gorm:"type:varchar(20);not null"`
	ResourceID  int64                           `gorm:"not null"`
	EventTime   time.Time                       `gorm:"not null"`
	DedupeKey   string                          `gorm:"type:varchar(128);not null;uniqueIndex:idx_webhook_notifications_dedupe"`
	Status      marketplace.NotificationStatus  `gorm:"type:varchar(16);not null;index:idx_webhook_notifications_status"`
	Attempts    int                             `gorm:"not null;default:0"`
	LastError   string                          `gorm:"type:text"`
	ProcessedAt *time.Time
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (WebhookNotificationModel) TableName() string {
	return "webhook_notifications"
}

// ToDomain converts the persistence model to a domain WebhookNotification
func (m *WebhookNotificationModel) ToDomain() *marketplace.WebhookNotification {
	n := &marketplace.WebhookNotification{
		TenantID:    m.TenantID,
		Provider:    m.Provider,
		EventType:   m.EventType,
		ResourceID:  m.ResourceID,
		EventTime:   m.EventTime,
		DedupeKey:   m.DedupeKey,
		Status:      m.Status,
		Attempts:    m.Attempts,
		LastError:   m.LastError,
		ProcessedAt: m.ProcessedAt,
	}
	n.ID = m.ID
	n.CreatedAt = m.CreatedAt
	n.UpdatedAt = m.UpdatedAt
	return n
}

// FromDomain populates the persistence model from a domain WebhookNotification
func (m *WebhookNotificationModel) FromDomain(n *marketplace.WebhookNotification) {
	m.ID = n.ID
	m.TenantID = n.TenantID
	m.Provider = n.Provider
	m.EventType = n.EventType
	m.ResourceID = n.ResourceID
	m.EventTime = n.EventTime
	m.DedupeKey = n.DedupeKey
	m.Status = n.Status
	m.Attempts = n.Attempts
	m.LastError = n.LastError
	m.ProcessedAt = n.ProcessedAt
	m.CreatedAt = n.CreatedAt
	m.UpdatedAt = n.UpdatedAt
}
