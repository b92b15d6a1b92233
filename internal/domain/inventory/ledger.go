package inventory

import (
	"time"

	"github.com/bricksync/backend/internal/domain/marketplace"
	"github.com/bricksync/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Quantity Ledger
// ---------------------------------------------------------------------------

// LedgerReason categorizes why an item's available quantity changed
type LedgerReason string

const (
	// LedgerReasonOrderSale records a marketplace sale reserving units
	LedgerReasonOrderSale LedgerReason = "order_sale"
	// LedgerReasonOrderCancel records units returned by a cancelled order
	LedgerReasonOrderCancel LedgerReason = "order_cancel"
	// LedgerReasonManualAdjust records an operator quantity correction
	LedgerReasonManualAdjust LedgerReason = "manual_adjust"
	// LedgerReasonInitialStock records initial stock intake
	LedgerReasonInitialStock LedgerReason = "initial_stock"
)

// IsValid returns true if the reason is valid
func (r LedgerReason) IsValid() bool {
	switch r {
	case LedgerReasonOrderSale, LedgerReasonOrderCancel,
		LedgerReasonManualAdjust, LedgerReasonInitialStock:
		return true
	default:
		return false
	}
}

// String returns the string representation of LedgerReason
func (r LedgerReason) String() string {
	return string(r)
}

// LedgerEntry is an immutable record of one available-quantity mutation.
// Entries are append-only. Per item, Sequence is strictly increasing and
// gap-free, and PostAvailable always equals PreAvailable plus DeltaAvailable,
// so the ledger reconstructs available quantity at any point in time
// independent of the mutable QuantityAvailable field.
type LedgerEntry struct {
	shared.BaseEntity
	TenantID        uuid.UUID
	InventoryItemID uuid.UUID
	// Sequence is the per-item monotonic entry number, starting at 1
	Sequence int64
	PreAvailable    int
	PostAvailable   int
	DeltaAvailable  int
	Reason          LedgerReason
	// Source is the provider that caused the mutation, empty for local changes
	Source marketplace.ProviderCode
	// ExternalOrderID correlates the entry to a marketplace order
	ExternalOrderID string
	// CorrelationID ties together all entries of one ingestion call
	CorrelationID string
	RecordedAt    time.Time
}

// NewLedgerEntry creates a ledger entry, enforcing the conservation invariant
func NewLedgerEntry(
	tenantID uuid.UUID,
	itemID uuid.UUID,
	sequence int64,
	preAvailable int,
	delta int,
	reason LedgerReason,
) (*LedgerEntry, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INVENTORY_ITEM", "Inventory item ID cannot be empty")
	}
	if sequence < 1 {
		return nil, shared.NewDomainError("INVALID_SEQUENCE", "Ledger sequence must start at 1")
	}
	if delta == 0 {
		return nil, shared.NewDomainError("INVALID_DELTA", "Ledger delta cannot be zero")
	}
	if !reason.IsValid() {
		return nil, shared.NewDomainError("INVALID_REASON", "Invalid ledger reason")
	}

	return &LedgerEntry{
		BaseEntity:      shared.NewBaseEntity(),
		TenantID:        tenantID,
		InventoryItemID: itemID,
		Sequence:        sequence,
		PreAvailable:    preAvailable,
		PostAvailable:   preAvailable + delta,
		DeltaAvailable:  delta,
		Reason:          reason,
		RecordedAt:      time.Now(),
	}, nil
}

// WithSource sets the provider that caused the mutation
func (e *LedgerEntry) WithSource(source marketplace.ProviderCode) *LedgerEntry {
	e.Source = source
	return e
}

// WithExternalOrderID sets the correlating marketplace order ID
func (e *LedgerEntry) WithExternalOrderID(orderID string) *LedgerEntry {
	e.ExternalOrderID = orderID
	return e
}

// WithCorrelationID sets the ingestion correlation ID
func (e *LedgerEntry) WithCorrelationID(id string) *LedgerEntry {
	e.CorrelationID = id
	return e
}
