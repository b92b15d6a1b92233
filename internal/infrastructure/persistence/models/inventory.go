package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bricksync/backend/internal/domain/inventory"
	"github.com/bricksync/backend/internal/domain/marketplace"
)

// InventoryItemModel is the persistence model for the InventoryItem
// aggregate. One row per tenant and (part, color, condition, location)
// business key.
type InventoryItemModel struct {
	ID                uuid.UUID                 `gorm:"type:uuid;primary_key"`
	TenantID          uuid.UUID                 `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_items_key,priority:1"`
	PartNumber        string                    `gorm:"type:varchar(64);not null;uniqueIndex:idx_inventory_items_key,priority:2"`
	ColorID           string                    `gorm:"type:varchar(16);not null;uniqueIndex:idx_inventory_items_key,priority:3"`
	Condition         marketplace.ItemCondition `gorm:"type:varchar(8);not null;uniqueIndex:idx_inventory_items_key,priority:4"`
	Location          string                    `gorm:"type:varchar(64);not null;uniqueIndex:idx_inventory_items_key,priority:5"`
	QuantityAvailable int                       `gorm:"not null;default:0"`
	QuantityReserved  int                       `gorm:"not null;default:0"`
	UnitPrice         decimal.Decimal           `gorm:"type:decimal(14,4);not null;default:0"`
	BrickLinkSync     inventory.SyncState       `gorm:"type:varchar(16);not null;default:'unlisted'"`
	BrickOwlSync      inventory.SyncState       `gorm:"type:varchar(16);not null;default:'unlisted'"`
	CreatedAt         time.Time                 `gorm:"not null"`
	UpdatedAt         time.Time                 `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InventoryItemModel) TableName() string {
	return "inventory_items"
}

// ToDomain converts the persistence model to a domain InventoryItem
func (m *InventoryItemModel) ToDomain() *inventory.InventoryItem {
	item := &inventory.InventoryItem{
		TenantID:          m.TenantID,
		PartNumber:        m.PartNumber,
		ColorID:           m.ColorID,
		Condition:         m.Condition,
		Location:          m.Location,
		QuantityAvailable: m.QuantityAvailable,
		QuantityReserved:  m.QuantityReserved,
		UnitPrice:         m.UnitPrice,
		BrickLinkSync:     m.BrickLinkSync,
		BrickOwlSync:      m.BrickOwlSync,
	}
	item.ID = m.ID
	item.CreatedAt = m.CreatedAt
	item.UpdatedAt = m.UpdatedAt
	return item
}

// FromDomain populates the persistence model from a domain InventoryItem
func (m *InventoryItemModel) FromDomain(item *inventory.InventoryItem) {
	m.ID = item.ID
	m.TenantID = item.TenantID
	m.PartNumber = item.PartNumber
	m.ColorID = item.ColorID
	m.Condition = item.Condition
	m.Location = item.Location
	m.QuantityAvailable = item.QuantityAvailable
	m.QuantityReserved = item.QuantityReserved
	m.UnitPrice = item.UnitPrice
	m.BrickLinkSync = item.BrickLinkSync
	m.BrickOwlSync = item.BrickOwlSync
	m.CreatedAt = item.CreatedAt
	m.UpdatedAt = item.UpdatedAt
}

// InventoryItemModelFromDomain creates a persistence model from a domain item
func InventoryItemModelFromDomain(item *inventory.InventoryItem) *InventoryItemModel {
	m := &InventoryItemModel{}
	m.FromDomain(item)
	return m
}

// LedgerEntryModel is the persistence model for one append-only ledger entry.
// The (inventory_item_id, sequence) unique index enforces the gap-free
// per-item sequence at the storage layer.
type LedgerEntryModel struct {
	ID              uuid.UUID                `gorm:"type:uuid;primary_key"`
	TenantID        uuid.UUID                `gorm:"type:uuid;not null;index:idx_ledger_tenant"`
	InventoryItemID uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_item_sequence,priority:1"`
	Sequence        int64                    `gorm:"not null;uniqueIndex:idx_ledger_item_sequence,priority:2"`
	PreAvailable    int                      `gorm:"not null"`
	PostAvailable   int                      `gorm:"not null"`
	DeltaAvailable  int                      `gorm:"not null"`
	Reason          inventory.LedgerReason   `gorm:"type:varchar(20);not null"`
	Source          marketplace.ProviderCode `gorm:"type:varchar(20)"`
	ExternalOrderID string                   `gorm:"type:varchar(64);index"`
	CorrelationID   string                   `gorm:"type:varchar(64);index"`
	RecordedAt      time.Time                `gorm:"not null"`
	CreatedAt       time.Time                `gorm:"not null"`
	UpdatedAt       time.Time                `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "inventory_ledger_entries"
}

// ToDomain converts the persistence model to a domain LedgerEntry
func (m *LedgerEntryModel) ToDomain() *inventory.LedgerEntry {
	e := &inventory.LedgerEntry{
		TenantID:        m.TenantID,
		InventoryItemID: m.InventoryItemID,
		Sequence:        m.Sequence,
		PreAvailable:    m.PreAvailable,
		PostAvailable:   m.PostAvailable,
		DeltaAvailable:  m.DeltaAvailable,
		Reason:          m.Reason,
		Source:          m.Source,
		ExternalOrderID: m.ExternalOrderID,
		CorrelationID:   m.CorrelationID,
		RecordedAt:      m.RecordedAt,
	}
	e.ID = m.ID
	e.CreatedAt = m.CreatedAt
	e.UpdatedAt = m.UpdatedAt
	return e
}

// FromDomain populates the persistence model from a domain LedgerEntry
func (m *LedgerEntryModel) FromDomain(e *inventory.LedgerEntry) {
	m.ID = e.ID
	m.TenantID = e.TenantID
	m.InventoryItemID = e.InventoryItemID
	m.Sequence = e.Sequence
	m.PreAvailable = e.PreAvailable
	m.PostAvailable = e.PostAvailable
	m.DeltaAvailable = e.DeltaAvailable
	m.Reason = e.Reason
	m.Source = e.Source
	m.ExternalOrderID = e.ExternalOrderID
	m.CorrelationID = e.CorrelationID
	m.RecordedAt = e.RecordedAt
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}
