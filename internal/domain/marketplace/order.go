package marketplace

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// OrderStatus represents the canonical, provider-agnostic order status
// ---------------------------------------------------------------------------

// OrderStatus represents the canonical, provider-agnostic order status
type OrderStatus string

const (
	// OrderStatusPending indicates the order is placed but not yet processed
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusUpdated indicates the buyer changed the order after placing it
	OrderStatusUpdated OrderStatus = "UPDATED"
	// OrderStatusProcessing indicates the seller is working on the order
	OrderStatusProcessing OrderStatus = "PROCESSING"
	// OrderStatusReady indicates the order awaits payment
	OrderStatusReady OrderStatus = "READY"
	// OrderStatusPaid indicates payment received
	OrderStatusPaid OrderStatus = "PAID"
	// OrderStatusPacked indicates the order is packed and awaiting shipment
	OrderStatusPacked OrderStatus = "PACKED"
	// OrderStatusShipped indicates the order has been shipped
	OrderStatusShipped OrderStatus = "SHIPPED"
	// OrderStatusReceived indicates the buyer confirmed receipt
	OrderStatusReceived OrderStatus = "RECEIVED"
	// OrderStatusCompleted indicates the order is fully settled
	OrderStatusCompleted OrderStatus = "COMPLETED"
	// OrderStatusCancelled indicates the order was cancelled
	OrderStatusCancelled OrderStatus = "CANCELLED"
	// OrderStatusPurged indicates the provider purged the order
	OrderStatusPurged OrderStatus = "PURGED"
	// OrderStatusHold is the canonical collapse of every provider-side
	// alert status (payment problems, non-responding parties, on-hold
	// variants). Orders on HOLD need operator attention.
	OrderStatusHold OrderStatus = "HOLD"
)

// IsValid returns true if the status is valid
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusUpdated, OrderStatusProcessing,
		OrderStatusReady, OrderStatusPaid, OrderStatusPacked, OrderStatusShipped,
		OrderStatusReceived, OrderStatusCompleted, OrderStatusCancelled,
		OrderStatusPurged, OrderStatusHold:
		return true
	default:
		return false
	}
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// IsFinal returns true if the status is a terminal state
func (s OrderStatus) IsFinal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusPurged:
		return true
	default:
		return false
	}
}

// ReservesInventory returns true if first ingestion in this status should
// move ordered units from available to reserved
func (s OrderStatus) ReservesInventory() bool {
	return !s.IsFinal()
}

// ---------------------------------------------------------------------------
// ItemCondition represents the condition of a part
// ---------------------------------------------------------------------------

// ItemCondition represents the condition of a part
type ItemCondition string

const (
	// ConditionNew is a new part
	ConditionNew ItemCondition = "new"
	// ConditionUsed is a used part
	ConditionUsed ItemCondition = "used"
)

// IsValid returns true if the condition is valid
func (c ItemCondition) IsValid() bool {
	return c == ConditionNew || c == ConditionUsed
}

// String returns the string representation of ItemCondition
func (c ItemCondition) String() string {
	return string(c)
}

// ---------------------------------------------------------------------------
// Value Objects
// ---------------------------------------------------------------------------

// UnknownLocation is the sentinel location used when a provider payload
// carries no usable location remark. Never an empty string.
const UnknownLocation = "UNKNOWN"

// RemoteOrder is the canonical representation of an order pulled from a
// marketplace, before it is persisted as a local Order aggregate.
type RemoteOrder struct {
	// ExternalOrderID is the order ID on the provider
	ExternalOrderID string
	// Provider identifies which marketplace this order came from
	Provider ProviderCode
	// Status is the canonical order status
	Status OrderStatus
	// BuyerName is the buyer's username on the provider
	BuyerName string
	// BuyerEmail is the buyer's contact email
	BuyerEmail string
	// ShippingAddress is the flattened delivery address
	ShippingAddress string
	// CountryCode is the ISO country code of the delivery address
	CountryCode string
	// Subtotal is the order subtotal. Nil when the provider omitted it.
	Subtotal *decimal.Decimal
	// ShippingCost is the shipping charge. Nil when absent or unparsable.
	ShippingCost *decimal.Decimal
	// GrandTotal is the final charged amount. Nil when absent or unparsable.
	GrandTotal *decimal.Decimal
	// Currency is the ISO currency code
	Currency string
	// ItemCount is the provider-reported number of lots in the order
	ItemCount int
	// BuyerNote is the free-text message from the buyer
	BuyerNote string
	// OrderedAt is when the order was placed on the provider
	OrderedAt time.Time
	// RawData is the original provider payload (JSON), kept for audit
	RawData string
}

// RemoteOrderItem is one marketplace order line in canonical form
type RemoteOrderItem struct {
	// ExternalLotID is the provider's inventory lot ID for this line
	ExternalLotID string
	// PartNumber is the catalog number of the part
	PartNumber string
	// ColorID is the provider color identifier, normalized to a string
	ColorID string
	// Condition is new or used
	Condition ItemCondition
	// Quantity is the ordered quantity
	Quantity int
	// UnitPrice is the sale price per unit. Nil when absent.
	UnitPrice *decimal.Decimal
	// Description is the provider item description
	Description string
	// Location is the storage location parsed from the provider remarks
	// field, UnknownLocation when no remark was present. This is the join
	// key for inventory matching.
	Location string
}

// Validate checks the invariants ingestion relies on
func (o *RemoteOrder) Validate() error {
	if o.ExternalOrderID == "" {
		return ErrOrderInvalidPayload
	}
	if !o.Provider.IsValid() {
		return ErrOrderInvalidPayload
	}
	if !o.Status.IsValid() {
		return &UnsupportedStatusError{Provider: o.Provider, Status: o.Status.String()}
	}
	return nil
}

// Validate checks the invariants ingestion relies on for a single line
func (i *RemoteOrderItem) Validate() error {
	if i.PartNumber == "" || i.Quantity <= 0 {
		return ErrOrderInvalidPayload
	}
	if !i.Condition.IsValid() {
		return ErrOrderInvalidPayload
	}
	if i.Location == "" {
		return errors.New("marketplace: item location must be set, use UnknownLocation sentinel")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Pull Requests
// ---------------------------------------------------------------------------

// OrderPullRequest describes a time-bounded order pull from a provider
type OrderPullRequest struct {
	// TenantID is the tenant whose credentials are used
	TenantID uuid.UUID
	// Provider specifies which marketplace to pull from
	Provider ProviderCode
	// Since limits the pull to orders changed after this time (zero = provider default)
	Since time.Time
	// IncludeFiled includes orders the seller already filed away
	IncludeFiled bool
}

// Validate validates the pull request
func (r *OrderPullRequest) Validate() error {
	if r.TenantID == uuid.Nil {
		return errors.New("marketplace: tenant ID is required")
	}
	if !r.Provider.IsValid() {
		return errors.New("marketplace: invalid provider code")
	}
	return nil
}
