package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bricksync/backend/internal/domain/marketplace"
	"github.com/bricksync/backend/internal/domain/order"
)

// OrderModel is the persistence model for the Order aggregate. One row per
// (tenant, provider, external order ID); later ingestions patch it in place.
type OrderModel struct {
	ID              uuid.UUID                `gorm:"type:uuid;primary_key"`
	TenantID        uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_orders_tenant_provider_external,priority:1"`
	Provider        marketplace.ProviderCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_orders_tenant_provider_external,priority:2"`
	ExternalOrderID string                   `gorm:"type:varchar(64);not null;uniqueIndex:idx_orders_tenant_provider_external,priority:3"`
	Status          marketplace.OrderStatus  `gorm:"type:varchar(20);not null;index"`
	BuyerName       string                   `gorm:"type:varchar(255)"`
	BuyerEmail      string                   `gorm:"type:varchar(255)"`
	ShippingAddress string                   `gorm:"type:text"`
	CountryCode     string                   `gorm:"type:varchar(4)"`
	Subtotal        *decimal.Decimal         `gorm:"type:decimal(14,4)"`
	ShippingCost    *decimal.Decimal         `gorm:"type:decimal(14,4)"`
	GrandTotal      *decimal.Decimal         `gorm:"type:decimal(14,4)"`
	Currency        string                   `gorm:"type:varchar(8)"`
	BuyerNote       string                   `gorm:"type:text"`
	OrderedAt       time.Time                `gorm:"index"`
	LastSyncedAt    time.Time
	RawData         string    `gorm:"type:jsonb"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "marketplace_orders"
}

// ToDomain converts the persistence model to a domain Order, without items
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		TenantID:        m.TenantID,
		Provider:        m.Provider,
		ExternalOrderID: m.ExternalOrderID,
		Status:          m.Status,
		BuyerName:       m.BuyerName,
		BuyerEmail:      m.BuyerEmail,
		ShippingAddress: m.ShippingAddress,
		CountryCode:     m.CountryCode,
		Subtotal:        m.Subtotal,
		ShippingCost:    m.ShippingCost,
		GrandTotal:      m.GrandTotal,
		Currency:        m.Currency,
		BuyerNote:       m.BuyerNote,
		OrderedAt:       m.OrderedAt,
		LastSyncedAt:    m.LastSyncedAt,
		RawData:         m.RawData,
	}
	o.ID = m.ID
	o.CreatedAt = m.CreatedAt
	o.UpdatedAt = m.UpdatedAt
	return o
}

// FromDomain populates the persistence model from a domain Order
func (m *OrderModel) FromDomain(o *order.Order) {
	m.ID = o.ID
	m.TenantID = o.TenantID
	m.Provider = o.Provider
	m.ExternalOrderID = o.ExternalOrderID
	m.Status = o.Status
	m.BuyerName = o.BuyerName
	m.BuyerEmail = o.BuyerEmail
	m.ShippingAddress = o.ShippingAddress
	m.CountryCode = o.CountryCode
	m.Subtotal = o.Subtotal
	m.ShippingCost = o.ShippingCost
	m.GrandTotal = o.GrandTotal
	m.Currency = o.Currency
	m.BuyerNote = o.BuyerNote
	m.OrderedAt = o.OrderedAt
	m.LastSyncedAt = o.LastSyncedAt
	m.RawData = o.RawData
	m.CreatedAt = o.CreatedAt
	m.UpdatedAt = o.UpdatedAt
}

// OrderModelFromDomain creates a persistence model from a domain Order
func OrderModelFromDomain(o *order.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// OrderItemModel is the persistence model for one order line
type OrderItemModel struct {
	ID              uuid.UUID                 `gorm:"type:uuid;primary_key"`
	OrderID         uuid.UUID                 `gorm:"type:uuid;not null;index:idx_order_items_order"`
	ExternalLotID   string                    `gorm:"type:varchar(64)"`
	PartNumber      string                    `gorm:"type:varchar(64);not null"`
	ColorID         string                    `gorm:"type:varchar(16)"`
	Condition       marketplace.ItemCondition `gorm:"type:varchar(8);not null"`
	Quantity        int                       `gorm:"not null"`
	UnitPrice       *decimal.Decimal          `gorm:"type:decimal(14,4)"`
	Description     string                    `gorm:"type:varchar(512)"`
	Location        string                    `gorm:"type:varchar(64);not null"`
	Status          order.ItemStatus          `gorm:"type:varchar(16);not null"`
	InventoryItemID *uuid.UUID                `gorm:"type:uuid;index"`
	CreatedAt       time.Time                 `gorm:"not null"`
	UpdatedAt       time.Time                 `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "marketplace_order_items"
}

// ToDomain converts the persistence model to a domain OrderItem
func (m *OrderItemModel) ToDomain() order.OrderItem {
	i := order.OrderItem{
		OrderID:         m.OrderID,
		ExternalLotID:   m.ExternalLotID,
		PartNumber:      m.PartNumber,
		ColorID:         m.ColorID,
		Condition:       m.Condition,
		Quantity:        m.Quantity,
		UnitPrice:       m.UnitPrice,
		Description:     m.Description,
		Location:        m.Location,
		Status:          m.Status,
		InventoryItemID: m.InventoryItemID,
	}
	i.ID = m.ID
	i.CreatedAt = m.CreatedAt
	i.UpdatedAt = m.UpdatedAt
	return i
}

// FromDomain populates the persistence model from a domain OrderItem
func (m *OrderItemModel) FromDomain(i *order.OrderItem) {
	m.ID = i.ID
	m.OrderID = i.OrderID
	m.ExternalLotID = i.ExternalLotID
	m.PartNumber = i.PartNumber
	m.ColorID = i.ColorID
	m.Condition = i.Condition
	m.Quantity = i.Quantity
	m.UnitPrice = i.UnitPrice
	m.Description = i.Description
	m.Location = i.Location
	m.Status = i.Status
	m.InventoryItemID = i.InventoryItemID
	m.CreatedAt = i.CreatedAt
	m.UpdatedAt = i.UpdatedAt
}
