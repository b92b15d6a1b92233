package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bricksync/backend/internal/domain/marketplace"
	"github.com/bricksync/backend/internal/domain/order"
	"github.com/bricksync/backend/internal/infrastructure/persistence/models"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

var _ order.Repository = (*GormOrderRepository)(nil)

// Save inserts or updates the order record, without items. The
// (tenant, provider, external ID) unique index makes concurrent first
// ingestions of the same order converge on one row.
func (r *GormOrderRepository) Save(ctx context.Context, o *order.Order) error {
	model := models.OrderModelFromDomain(o)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "tenant_id"}, {Name: "provider"}, {Name: "external_order_id"},
			},
			UpdateAll: true,
		}).
		Create(model).Error
}

// FindByExternalID returns the order for the external ID, or ErrNotFound
func (r *GormOrderRepository) FindByExternalID(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode, externalOrderID string) (*order.Order, error) {
	var model models.OrderModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND provider = ? AND external_order_id = ?", tenantID, provider, externalOrderID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ReplaceItems deletes every stored item for the order and inserts the given
// set. Full-replace keeps re-ingestion idempotent without line-level diffs.
func (r *GormOrderRepository) ReplaceItems(ctx context.Context, orderID uuid.UUID, items []order.OrderItem) error {
	tx := r.db.WithContext(ctx)

	if err := tx.Where("order_id = ?", orderID).Delete(&models.OrderItemModel{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	rows := make([]models.OrderItemModel, len(items))
	for i := range items {
		rows[i].FromDomain(&items[i])
	}
	return tx.Create(&rows).Error
}

// ListItems returns the stored items for an order
func (r *GormOrderRepository) ListItems(ctx context.Context, orderID uuid.UUID) ([]order.OrderItem, error) {
	var rows []models.OrderItemModel
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	items := make([]order.OrderItem, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].ToDomain())
	}
	return items, nil
}
