package marketplace

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/bricksync/backend/internal/domain/marketplace"
)

// ---------------------------------------------------------------------------
// Payloads
// ---------------------------------------------------------------------------

// boError is the BrickOwl error body shape
type boError struct {
	Error struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// decodeBody strictly parses an unenveloped JSON body
func decodeBody(body []byte, out any) error {
	return json.Unmarshal(body, out)
}

// parseBrickOwlError extracts failure details for the transport's normalizer
func parseBrickOwlError(_ int, body []byte) (providerCode, message string, retryAfterMs int64) {
	var e boError
	if err := json.Unmarshal(body, &e); err != nil {
		return "", "", 0
	}
	return e.Error.Status, e.Error.Message, 0
}

// boOrder is the raw BrickOwl order payload. The list and view endpoints
// share this shape, the view form just fills more fields.
type boOrder struct {
	OrderID         json.Number `json:"order_id"`
	OrderDate       json.Number `json:"order_date"`
	Status          string      `json:"status"`
	TotalQuantity   int         `json:"total_quantity"`
	TotalLots       int         `json:"total_lots"`
	BaseOrderTotal  string      `json:"base_order_total"`
	BaseCurrency    string      `json:"base_currency"`
	BuyerName       string      `json:"buyer_name"`
	BuyerNote       string      `json:"buyer_note"`
	ShipFirstName   string      `json:"ship_first_name"`
	ShipLastName    string      `json:"ship_last_name"`
	ShipCountryCode string      `json:"ship_country_code"`
	ShipAddress     string      `json:"ship_address"`
	ShippingTotal   string      `json:"shipping_total"`
	SubTotal        string      `json:"sub_total"`
}

// boOrderItem is one raw BrickOwl order line
type boOrderItem struct {
	OrderItemID     json.Number `json:"order_item_id"`
	LotID           json.Number `json:"lot_id"`
	Name            string      `json:"name"`
	ColorID         json.Number `json:"color_id"`
	Condition       string      `json:"condition"`
	OrderedQuantity int         `json:"ordered_quantity"`
	BasePrice       string      `json:"base_price"`
	PersonalNote    string      `json:"personal_note"`
	BOID            string      `json:"boid"`
	BLLotID         json.Number `json:"bl_lot_id"`
	IDs             []boItemID  `json:"ids"`
}

// boItemID is one external identifier attached to an item
type boItemID struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Status Mapping
// ---------------------------------------------------------------------------

// boStatusMap maps the provider's human-readable statuses onto the canonical
// enum. Unrecognized statuses are a hard error, never a silent default.
var boStatusMap = map[string]marketplace.OrderStatus{
	"PENDING":          marketplace.OrderStatusPending,
	"PAYMENT RECEIVED": marketplace.OrderStatusPaid,
	"PAYMENT SENT":     marketplace.OrderStatusPaid,
	"PROCESSING":       marketplace.OrderStatusProcessing,
	"PROCESSED":        marketplace.OrderStatusPacked,
	"SHIPPED":          marketplace.OrderStatusShipped,
	"RECEIVED":         marketplace.OrderStatusReceived,
	"ON HOLD":          marketplace.OrderStatusHold,
	"CANCELLED":        marketplace.OrderStatusCancelled,
}

// mapBrickOwlStatus maps a provider status onto the canonical enum
func mapBrickOwlStatus(status string) (marketplace.OrderStatus, error) {
	if mapped, ok := boStatusMap[strings.ToUpper(strings.TrimSpace(status))]; ok {
		return mapped, nil
	}
	return "", &marketplace.UnsupportedStatusError{
		Provider: marketplace.ProviderCodeBrickOwl,
		Status:   status,
	}
}

// mapBrickOwlCondition collapses the provider's graded conditions. Anything
// in the used family (good, like new, acceptable) is canonical used.
func mapBrickOwlCondition(condition string) marketplace.ItemCondition {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(condition)), "used") {
		return marketplace.ConditionUsed
	}
	return marketplace.ConditionNew
}

// ---------------------------------------------------------------------------
// Normalization
// ---------------------------------------------------------------------------

// normalizeBrickOwlOrder maps a raw order onto the canonical model
func normalizeBrickOwlOrder(raw *boOrder) (*marketplace.RemoteOrder, error) {
	status, err := mapBrickOwlStatus(raw.Status)
	if err != nil {
		return nil, err
	}

	buyerName := raw.BuyerName
	if buyerName == "" {
		buyerName = strings.TrimSpace(raw.ShipFirstName + " " + raw.ShipLastName)
	}

	order := &marketplace.RemoteOrder{
		ExternalOrderID: raw.OrderID.String(),
		Provider:        marketplace.ProviderCodeBrickOwl,
		Status:          status,
		BuyerName:       buyerName,
		ShippingAddress: raw.ShipAddress,
		CountryCode:     raw.ShipCountryCode,
		Subtotal:        parseDecimalPtr(raw.SubTotal),
		ShippingCost:    parseDecimalPtr(raw.ShippingTotal),
		GrandTotal:      parseDecimalPtr(raw.BaseOrderTotal),
		Currency:        raw.BaseCurrency,
		ItemCount:       raw.TotalLots,
		BuyerNote:       raw.BuyerNote,
	}

	if secs, err := raw.OrderDate.Int64(); err == nil && secs > 0 {
		order.OrderedAt = time.Unix(secs, 0).UTC()
	}

	if rawBytes, err := json.Marshal(raw); err == nil {
		order.RawData = string(rawBytes)
	}
	return order, nil
}

// normalizeBrickOwlItems maps raw order lines onto the canonical form.
// The catalog part number comes from the design_id external identifier when
// present, falling back to the provider's own item ID.
func normalizeBrickOwlItems(raw []boOrderItem) ([]marketplace.RemoteOrderItem, error) {
	items := make([]marketplace.RemoteOrderItem, 0, len(raw))
	for i := range raw {
		line := &raw[i]
		item := marketplace.RemoteOrderItem{
			ExternalLotID: line.LotID.String(),
			PartNumber:    brickOwlPartNumber(line),
			ColorID:       line.ColorID.String(),
			Condition:     mapBrickOwlCondition(line.Condition),
			Quantity:      line.OrderedQuantity,
			UnitPrice:     parseDecimalPtr(line.BasePrice),
			Description:   line.Name,
			Location:      locationFromRemarks(line.PersonalNote),
		}
		if err := item.Validate(); err != nil {
			return nil, marketplace.NewAppError(marketplace.ProviderCodeBrickOwl,
				marketplace.ErrorCodeInvalidResponse, err.Error())
		}
		items = append(items, item)
	}
	return items, nil
}

// brickOwlPartNumber resolves the catalog part number for a line
func brickOwlPartNumber(line *boOrderItem) string {
	for _, id := range line.IDs {
		if strings.EqualFold(id.Type, "design_id") && id.ID != "" {
			return id.ID
		}
	}
	if line.BOID != "" {
		return line.BOID
	}
	return ""
}
