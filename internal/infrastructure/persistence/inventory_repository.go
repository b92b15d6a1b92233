package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bricksync/backend/internal/domain/inventory"
	"github.com/bricksync/backend/internal/infrastructure/persistence/models"
)

// GormInventoryItemRepository implements inventory.ItemRepository using GORM
type GormInventoryItemRepository struct {
	db *gorm.DB
}

// NewGormInventoryItemRepository creates a new GormInventoryItemRepository
func NewGormInventoryItemRepository(db *gorm.DB) *GormInventoryItemRepository {
	return &GormInventoryItemRepository{db: db}
}

var _ inventory.ItemRepository = (*GormInventoryItemRepository)(nil)

// Save inserts or updates the item
func (r *GormInventoryItemRepository) Save(ctx context.Context, item *inventory.InventoryItem) error {
	model := models.InventoryItemModelFromDomain(item)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(model).Error
}

// FindByID returns the item with the given ID within a tenant
func (r *GormInventoryItemRepository) FindByID(ctx context.Context, tenantID, itemID uuid.UUID) (*inventory.InventoryItem, error) {
	var model models.InventoryItemModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, itemID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventory.ErrItemNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByKey returns the item matching the composite business key. A miss is
// nil, not an error: ingestion records it as an unmatched sale.
func (r *GormInventoryItemRepository) FindByKey(ctx context.Context, tenantID uuid.UUID, key inventory.ItemKey) (*inventory.InventoryItem, error) {
	var model models.InventoryItemModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND part_number = ? AND color_id = ? AND condition = ? AND location = ?",
			tenantID, key.PartNumber, key.ColorID, key.Condition, key.Location).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByTenant returns all items for a tenant
func (r *GormInventoryItemRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*inventory.InventoryItem, error) {
	var rows []models.InventoryItemModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("part_number, color_id, location").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	items := make([]*inventory.InventoryItem, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].ToDomain())
	}
	return items, nil
}
