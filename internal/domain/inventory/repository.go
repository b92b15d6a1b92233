package inventory

import (
	"context"

	"github.com/google/uuid"
)

// ItemRepository persists inventory items keyed by tenant and business key
type ItemRepository interface {
	// Save inserts or updates the item
	Save(ctx context.Context, item *InventoryItem) error

	// FindByID returns the item with the given ID, or ErrItemNotFound
	FindByID(ctx context.Context, tenantID, itemID uuid.UUID) (*InventoryItem, error)

	// FindByKey returns the item matching the composite business key,
	// or nil when no row matches. A nil result is not an error: ingestion
	// treats it as an unmatched sale.
	FindByKey(ctx context.Context, tenantID uuid.UUID, key ItemKey) (*InventoryItem, error)

	// ListByTenant returns all items for a tenant
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*InventoryItem, error)
}

// LedgerRepository persists the append-only quantity ledger
type LedgerRepository interface {
	// Append stores a new ledger entry. Entries are never updated or deleted.
	Append(ctx context.Context, entry *LedgerEntry) error

	// LastEntry returns the entry with the highest sequence for an item,
	// or nil when the item has no ledger history yet.
	LastEntry(ctx context.Context, itemID uuid.UUID) (*LedgerEntry, error)

	// ListByItem returns all entries for an item in sequence order
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]*LedgerEntry, error)
}
