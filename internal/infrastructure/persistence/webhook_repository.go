package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bricksync/backend/internal/domain/marketplace"
	"github.com/bricksync/backend/internal/infrastructure/persistence/models"
)

// GormWebhookNotificationRepository implements WebhookNotificationRepository
// using GORM. The dedupe key unique index is the authoritative barrier
// against double processing; any cache in front of it is only a fast path.
type GormWebhookNotificationRepository struct {
	db *gorm.DB
}

// NewGormWebhookNotificationRepository creates a new repository
func NewGormWebhookNotificationRepository(db *gorm.DB) *GormWebhookNotificationRepository {
	return &GormWebhookNotificationRepository{db: db}
}

var _ marketplace.WebhookNotificationRepository = (*GormWebhookNotificationRepository)(nil)

// Upsert stores the notification, or resets the existing record carrying the
// same dedupe key. Returns the stored notification and whether a new record
// was created.
func (r *GormWebhookNotificationRepository) Upsert(ctx context.Context, n *marketplace.WebhookNotification) (*marketplace.WebhookNotification, bool, error) {
	model := &models.WebhookNotificationModel{}
	model.FromDomain(n)

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedupe_key"}},
			DoNothing: true,
		}).
		Create(model).Error
	if err != nil {
		return nil, false, err
	}

	stored, err := r.FindByDedupeKey(ctx, n.DedupeKey)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, errors.New("persistence: webhook notification vanished after upsert")
	}

	created := stored.ID == n.ID
	if !created {
		// Re-receipt of a known key resets pending/failed records so the
		// redelivery gets a fresh attempt budget. Completed stays completed.
		stored.ResetForRedelivery()
		if err := r.Update(ctx, stored); err != nil {
			return nil, false, err
		}
	}
	return stored, created, nil
}

// FindByDedupeKey returns the notification with the given key, or nil
func (r *GormWebhookNotificationRepository) FindByDedupeKey(ctx context.Context, key string) (*marketplace.WebhookNotification, error) {
	var model models.WebhookNotificationModel
	err := r.db.WithContext(ctx).
		Where("dedupe_key = ?", key).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Update persists status and attempt changes
func (r *GormWebhookNotificationRepository) Update(ctx context.Context, n *marketplace.WebhookNotification) error {
	model := &models.WebhookNotificationModel{}
	model.FromDomain(n)
	return r.db.WithContext(ctx).Save(model).Error
}

// ListRetryable returns pending and failed notifications, oldest first
func (r *GormWebhookNotificationRepository) ListRetryable(ctx context.Context, limit int) ([]*marketplace.WebhookNotification, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.WebhookNotificationModel
	err := r.db.WithContext(ctx).
		Where("status IN ?", []marketplace.NotificationStatus{
			marketplace.NotificationStatusPending,
			marketplace.NotificationStatusFailed,
		}).
		Order("created_at").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]*marketplace.WebhookNotification, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}
