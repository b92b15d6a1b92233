package order

import (
	"context"
	"errors"
	"time"

	"github.com/bricksync/backend/internal/domain/marketplace"
	"github.com/bricksync/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates no order exists for the lookup key
var ErrNotFound = errors.New("order: order not found")

// ---------------------------------------------------------------------------
// ItemStatus
// ---------------------------------------------------------------------------

// ItemStatus tracks an order line through fulfillment
type ItemStatus string

const (
	// ItemStatusUnpicked means the line has not been pulled from storage
	ItemStatusUnpicked ItemStatus = "unpicked"
	// ItemStatusPicked means the line was pulled and is ready to pack
	ItemStatusPicked ItemStatus = "picked"
	// ItemStatusUnmatched means no inventory row matched the line's
	// business key, so no quantity was reserved. Surfaced to operators.
	ItemStatusUnmatched ItemStatus = "unmatched"
)

// IsValid returns true if the item status is valid
func (s ItemStatus) IsValid() bool {
	switch s {
	case ItemStatusUnpicked, ItemStatusPicked, ItemStatusUnmatched:
		return true
	default:
		return false
	}
}

// String returns the string representation of ItemStatus
func (s ItemStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// Order Aggregate
// ---------------------------------------------------------------------------

// Order is the canonical local record of a marketplace order, one per
// (tenant, provider order ID). It is created on first ingestion and patched,
// never duplicated, on every later ingestion of the same external ID.
type Order struct {
	shared.BaseEntity
	TenantID        uuid.UUID
	Provider        marketplace.ProviderCode
	ExternalOrderID string
	Status          marketplace.OrderStatus
	BuyerName       string
	BuyerEmail      string
	ShippingAddress string
	CountryCode     string
	Subtotal        *decimal.Decimal
	ShippingCost    *decimal.Decimal
	GrandTotal      *decimal.Decimal
	Currency        string
	BuyerNote       string
	OrderedAt       time.Time
	LastSyncedAt    time.Time
	// RawData is the most recent provider payload, kept for audit
	RawData string
	Items   []OrderItem
}

// OrderItem is one marketplace order line
type OrderItem struct {
	shared.BaseEntity
	OrderID       uuid.UUID
	ExternalLotID string
	PartNumber    string
	ColorID       string
	Condition     marketplace.ItemCondition
	Quantity      int
	UnitPrice     *decimal.Decimal
	Description   string
	// Location is the inventory join key parsed from provider remarks
	Location string
	Status   ItemStatus
	// InventoryItemID links to the matched inventory row, nil when unmatched
	InventoryItemID *uuid.UUID
}

// NewFromRemote creates a local order from a normalized provider order
func NewFromRemote(tenantID uuid.UUID, remote *marketplace.RemoteOrder) (*Order, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if err := remote.Validate(); err != nil {
		return nil, err
	}

	return &Order{
		BaseEntity:      shared.NewBaseEntity(),
		TenantID:        tenantID,
		Provider:        remote.Provider,
		ExternalOrderID: remote.ExternalOrderID,
		Status:          remote.Status,
		BuyerName:       remote.BuyerName,
		BuyerEmail:      remote.BuyerEmail,
		ShippingAddress: remote.ShippingAddress,
		CountryCode:     remote.CountryCode,
		Subtotal:        remote.Subtotal,
		ShippingCost:    remote.ShippingCost,
		GrandTotal:      remote.GrandTotal,
		Currency:        remote.Currency,
		BuyerNote:       remote.BuyerNote,
		OrderedAt:       remote.OrderedAt,
		LastSyncedAt:    time.Now(),
		RawData:         remote.RawData,
	}, nil
}

// ApplyRemote patches the order from a later ingestion of the same external
// ID. Identity fields stay fixed, mutable fields refresh.
func (o *Order) ApplyRemote(remote *marketplace.RemoteOrder) error {
	if remote.ExternalOrderID != o.ExternalOrderID || remote.Provider != o.Provider {
		return shared.NewDomainError("ORDER_MISMATCH", "Remote order does not match this record")
	}
	if err := remote.Validate(); err != nil {
		return err
	}
	o.Status = remote.Status
	o.BuyerName = remote.BuyerName
	o.BuyerEmail = remote.BuyerEmail
	o.ShippingAddress = remote.ShippingAddress
	o.CountryCode = remote.CountryCode
	o.Subtotal = remote.Subtotal
	o.ShippingCost = remote.ShippingCost
	o.GrandTotal = remote.GrandTotal
	o.Currency = remote.Currency
	o.BuyerNote = remote.BuyerNote
	o.RawData = remote.RawData
	o.LastSyncedAt = time.Now()
	o.UpdatedAt = time.Now()
	return nil
}

// NewItemFromRemote creates a local order line from a normalized remote line.
// Items start unpicked; ingestion flips unmatched lines to unmatched.
func NewItemFromRemote(orderID uuid.UUID, remote *marketplace.RemoteOrderItem) (*OrderItem, error) {
	if orderID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORDER", "Order ID cannot be empty")
	}
	if err := remote.Validate(); err != nil {
		return nil, err
	}

	return &OrderItem{
		BaseEntity:    shared.NewBaseEntity(),
		OrderID:       orderID,
		ExternalLotID: remote.ExternalLotID,
		PartNumber:    remote.PartNumber,
		ColorID:       remote.ColorID,
		Condition:     remote.Condition,
		Quantity:      remote.Quantity,
		UnitPrice:     remote.UnitPrice,
		Description:   remote.Description,
		Location:      remote.Location,
		Status:        ItemStatusUnpicked,
	}, nil
}

// LinkInventory records the matched inventory row for this line
func (i *OrderItem) LinkInventory(itemID uuid.UUID) {
	i.InventoryItemID = &itemID
	i.UpdatedAt = time.Now()
}

// MarkUnmatched flags the line as an unmatched sale
func (i *OrderItem) MarkUnmatched() {
	i.Status = ItemStatusUnmatched
	i.InventoryItemID = nil
	i.UpdatedAt = time.Now()
}

// ---------------------------------------------------------------------------
// Repository Port
// ---------------------------------------------------------------------------

// Repository persists orders keyed by (tenant, provider, external order ID)
type Repository interface {
	// Save inserts or updates the order record, without items
	Save(ctx context.Context, o *Order) error

	// FindByExternalID returns the order for the external ID, or ErrNotFound
	FindByExternalID(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode, externalOrderID string) (*Order, error)

	// ReplaceItems deletes every stored item for the order and inserts the
	// given set. Full-replace semantics, no partial diffs.
	ReplaceItems(ctx context.Context, orderID uuid.UUID, items []OrderItem) error

	// ListItems returns the stored items for an order
	ListItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error)
}
