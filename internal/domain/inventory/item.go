package inventory

import (
	"errors"
	"time"

	"github.com/bricksync/backend/internal/domain/marketplace"
	"github.com/bricksync/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	ErrItemNotFound      = errors.New("inventory: item not found")
	ErrInsufficientStock = errors.New("inventory: insufficient available quantity")
)

// ---------------------------------------------------------------------------
// Business Key
// ---------------------------------------------------------------------------

// ItemKey is the composite business key inventory rows are matched on during
// order ingestion. Location is a free-text label, so matching is strict:
// a renamed location will not match and the sale is recorded unmatched.
type ItemKey struct {
	PartNumber string
	ColorID    string
	Condition  marketplace.ItemCondition
	Location   string
}

// ---------------------------------------------------------------------------
// InventoryItem
// ---------------------------------------------------------------------------

// SyncState tracks whether an item's quantity is synced to a provider
type SyncState string

const (
	// SyncStateSynced means the provider listing reflects local quantities
	SyncStateSynced SyncState = "synced"
	// SyncStateDirty means local quantities changed since the last push
	SyncStateDirty SyncState = "dirty"
	// SyncStateUnlisted means the item is not listed on the provider
	SyncStateUnlisted SyncState = "unlisted"
)

// IsValid returns true if the sync state is valid
func (s SyncState) IsValid() bool {
	switch s {
	case SyncStateSynced, SyncStateDirty, SyncStateUnlisted:
		return true
	default:
		return false
	}
}

// InventoryItem is one physical lot of parts, keyed per tenant by
// (part, color, condition, location). QuantityAvailable plus
// QuantityReserved is conserved across order reservation: a sale moves
// units between the two, it never destroys them at ingestion time.
type InventoryItem struct {
	shared.BaseEntity
	TenantID          uuid.UUID
	PartNumber        string
	ColorID           string
	Condition         marketplace.ItemCondition
	Location          string
	QuantityAvailable int
	QuantityReserved  int
	UnitPrice         decimal.Decimal
	// Per-provider listing sync state
	BrickLinkSync SyncState
	BrickOwlSync  SyncState
}

// NewInventoryItem creates an inventory item with the given starting quantity
func NewInventoryItem(tenantID uuid.UUID, key ItemKey, quantity int, unitPrice decimal.Decimal) (*InventoryItem, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if key.PartNumber == "" {
		return nil, shared.NewDomainError("INVALID_PART", "Part number cannot be empty")
	}
	if !key.Condition.IsValid() {
		return nil, shared.NewDomainError("INVALID_CONDITION", "Invalid item condition")
	}
	if key.Location == "" {
		key.Location = marketplace.UnknownLocation
	}
	if quantity < 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity cannot be negative")
	}

	return &InventoryItem{
		BaseEntity:        shared.NewBaseEntity(),
		TenantID:          tenantID,
		PartNumber:        key.PartNumber,
		ColorID:           key.ColorID,
		Condition:         key.Condition,
		Location:          key.Location,
		QuantityAvailable: quantity,
		UnitPrice:         unitPrice,
		BrickLinkSync:     SyncStateUnlisted,
		BrickOwlSync:      SyncStateUnlisted,
	}, nil
}

// Key returns the item's composite business key
func (i *InventoryItem) Key() ItemKey {
	return ItemKey{
		PartNumber: i.PartNumber,
		ColorID:    i.ColorID,
		Condition:  i.Condition,
		Location:   i.Location,
	}
}

// Reserve moves quantity units from available to reserved. The sum of the
// two quantities is unchanged. Available may go negative only by rejection:
// reserving more than is available is an error, not an oversell.
func (i *InventoryItem) Reserve(quantity int) error {
	if quantity <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Reservation quantity must be positive")
	}
	if i.QuantityAvailable < quantity {
		return ErrInsufficientStock
	}
	i.QuantityAvailable -= quantity
	i.QuantityReserved += quantity
	i.markDirty()
	return nil
}

// Release moves quantity units from reserved back to available
func (i *InventoryItem) Release(quantity int) error {
	if quantity <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Release quantity must be positive")
	}
	if i.QuantityReserved < quantity {
		return shared.NewDomainError("INVALID_QUANTITY", "Cannot release more than is reserved")
	}
	i.QuantityReserved -= quantity
	i.QuantityAvailable += quantity
	i.markDirty()
	return nil
}

// CommitShipment removes quantity units from reserved once physically shipped
func (i *InventoryItem) CommitShipment(quantity int) error {
	if quantity <= 0 || i.QuantityReserved < quantity {
		return shared.NewDomainError("INVALID_QUANTITY", "Invalid shipment quantity")
	}
	i.QuantityReserved -= quantity
	i.markDirty()
	return nil
}

func (i *InventoryItem) markDirty() {
	if i.BrickLinkSync == SyncStateSynced {
		i.BrickLinkSync = SyncStateDirty
	}
	if i.BrickOwlSync == SyncStateSynced {
		i.BrickOwlSync = SyncStateDirty
	}
	i.UpdatedAt = time.Now()
}

// Snapshot captures the pre-change quantities for rollback payloads
type Snapshot struct {
	ItemID            uuid.UUID
	QuantityAvailable int
	QuantityReserved  int
	TakenAt           time.Time
}

// Snapshot returns the item's current quantities for rollback bookkeeping
func (i *InventoryItem) Snapshot() Snapshot {
	return Snapshot{
		ItemID:            i.ID,
		QuantityAvailable: i.QuantityAvailable,
		QuantityReserved:  i.QuantityReserved,
		TakenAt:           time.Now(),
	}
}
