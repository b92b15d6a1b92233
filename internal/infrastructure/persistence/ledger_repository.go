package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bricksync/backend/internal/domain/inventory"
	"github.com/bricksync/backend/internal/infrastructure/persistence/models"
)

// GormLedgerRepository implements inventory.LedgerRepository using GORM.
// Entries are strictly append-only: no update or delete path exists here,
// and the (item, sequence) unique index rejects concurrent writers that
// computed the same next sequence.
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

var _ inventory.LedgerRepository = (*GormLedgerRepository)(nil)

// Append stores a new ledger entry
func (r *GormLedgerRepository) Append(ctx context.Context, entry *inventory.LedgerEntry) error {
	model := &models.LedgerEntryModel{}
	model.FromDomain(entry)
	return r.db.WithContext(ctx).Create(model).Error
}

// LastEntry returns the highest-sequence entry for an item, nil when the
// item has no ledger history yet
func (r *GormLedgerRepository) LastEntry(ctx context.Context, itemID uuid.UUID) (*inventory.LedgerEntry, error) {
	var model models.LedgerEntryModel
	err := r.db.WithContext(ctx).
		Where("inventory_item_id = ?", itemID).
		Order("sequence DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByItem returns all entries for an item in sequence order
func (r *GormLedgerRepository) ListByItem(ctx context.Context, itemID uuid.UUID) ([]*inventory.LedgerEntry, error) {
	var rows []models.LedgerEntryModel
	err := r.db.WithContext(ctx).
		Where("inventory_item_id = ?", itemID).
		Order("sequence").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	entries := make([]*inventory.LedgerEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].ToDomain())
	}
	return entries, nil
}
