package marketplace

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bricksync/backend/internal/domain/marketplace"
)

// ---------------------------------------------------------------------------
// Envelope
// ---------------------------------------------------------------------------

// blEnvelope is the BrickLink response envelope. A meta code of 400 or above
// marks a failure even when the HTTP layer returned 200.
type blEnvelope struct {
	Meta blMeta          `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// blMeta carries the provider's own status for the request
type blMeta struct {
	Code        int    `json:"code"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

// IsSuccess returns true if the envelope signals success
func (e *blEnvelope) IsSuccess() bool {
	return e.Meta.Code < 400
}

// decodeEnvelope strictly parses an envelope and its data payload.
// Shape mismatches fail as INVALID_RESPONSE, they never coerce.
func decodeEnvelope(provider marketplace.ProviderCode, body []byte, out any) error {
	var env blEnvelope
	dec := json.NewDecoder(strings.NewReader(string(body)))
	if err := dec.Decode(&env); err != nil {
		return marketplace.NewAppError(provider, marketplace.ErrorCodeInvalidResponse,
			fmt.Sprintf("malformed envelope: %v", err))
	}
	if !env.IsSuccess() {
		raw := rawError{HTTPStatus: env.Meta.Code, ProviderCode: env.Meta.Message, Message: env.Meta.Description}
		return normalizeError(provider, raw, time.Now())
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return marketplace.NewAppError(provider, marketplace.ErrorCodeInvalidResponse,
			fmt.Sprintf("malformed data payload: %v", err))
	}
	return nil
}

// parseEnvelopeError extracts failure details for the transport's normalizer
func parseEnvelopeError(_ int, body []byte) (providerCode, message string, retryAfterMs int64) {
	var env blEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", "", 0
	}
	return env.Meta.Message, env.Meta.Description, 0
}

// ---------------------------------------------------------------------------
// Order Payloads
// ---------------------------------------------------------------------------

// blOrder is the raw BrickLink order payload
type blOrder struct {
	OrderID     int64      `json:"order_id"`
	DateOrdered string     `json:"date_ordered"`
	BuyerName   string     `json:"buyer_name"`
	BuyerEmail  string     `json:"buyer_email"`
	Status      string     `json:"status"`
	TotalCount  int        `json:"total_count"`
	UniqueCount int        `json:"unique_count"`
	Remarks     string     `json:"remarks"`
	Payment     blPayment  `json:"payment"`
	Shipping    blShipping `json:"shipping"`
	Cost        blCost     `json:"cost"`
}

type blPayment struct {
	Method       string `json:"method"`
	CurrencyCode string `json:"currency_code"`
	Status       string `json:"status"`
}

type blShipping struct {
	Address blAddress `json:"address"`
}

type blAddress struct {
	Full        string `json:"full"`
	CountryCode string `json:"country_code"`
}

// blCost carries provider-formatted decimal strings
type blCost struct {
	CurrencyCode string `json:"currency_code"`
	Subtotal     string `json:"subtotal"`
	GrandTotal   string `json:"grand_total"`
	Shipping     string `json:"shipping"`
}

// blOrderItem is one raw order line. The items endpoint returns lines
// grouped into batches; normalization flattens them.
type blOrderItem struct {
	InventoryID int64      `json:"inventory_id"`
	Item        blItemRef  `json:"item"`
	ColorID     int        `json:"color_id"`
	Quantity    int        `json:"quantity"`
	NewOrUsed   string     `json:"new_or_used"`
	UnitPrice   string     `json:"unit_price"`
	Description string     `json:"description"`
	Remarks     string     `json:"remarks"`
}

type blItemRef struct {
	No   string `json:"no"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Status Mapping
// ---------------------------------------------------------------------------

// blAlertStatuses are the provider's order-problem statuses. Every one
// collapses to canonical HOLD so operators see a single attention queue.
// OCR: order cancel requested, NPB/NPX: non-paying buyer flags,
// NRS/NSS: non-responding seller flags.
var blAlertStatuses = map[string]struct{}{
	"OCR": {},
	"NPB": {},
	"NPX": {},
	"NRS": {},
	"NSS": {},
}

// blStatusMap passes recognized regular statuses through unchanged
var blStatusMap = map[string]marketplace.OrderStatus{
	"PENDING":    marketplace.OrderStatusPending,
	"UPDATED":    marketplace.OrderStatusUpdated,
	"PROCESSING": marketplace.OrderStatusProcessing,
	"READY":      marketplace.OrderStatusReady,
	"PAID":       marketplace.OrderStatusPaid,
	"PACKED":     marketplace.OrderStatusPacked,
	"SHIPPED":    marketplace.OrderStatusShipped,
	"RECEIVED":   marketplace.OrderStatusReceived,
	"COMPLETED":  marketplace.OrderStatusCompleted,
	"CANCELLED":  marketplace.OrderStatusCancelled,
	"PURGED":     marketplace.OrderStatusPurged,
}

// mapBrickLinkStatus maps a provider status onto the canonical enum.
// Unrecognized statuses are a hard error, never a silent default, so new
// upstream statuses surface immediately.
func mapBrickLinkStatus(status string) (marketplace.OrderStatus, error) {
	upper := strings.ToUpper(strings.TrimSpace(status))
	if _, ok := blAlertStatuses[upper]; ok {
		return marketplace.OrderStatusHold, nil
	}
	if mapped, ok := blStatusMap[upper]; ok {
		return mapped, nil
	}
	return "", &marketplace.UnsupportedStatusError{
		Provider: marketplace.ProviderCodeBrickLink,
		Status:   status,
	}
}

// ---------------------------------------------------------------------------
// Normalization
// ---------------------------------------------------------------------------

// parseDecimalPtr parses a provider-formatted decimal string. Absent or
// unparsable values are nil, never an error: optional cost fields must not
// fail an otherwise valid order.
func parseDecimalPtr(s string) *decimal.Decimal {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &d
}

// locationFromRemarks derives the inventory join key from the free-text
// remarks field. UNKNOWN sentinel when absent, never empty string.
func locationFromRemarks(remarks string) string {
	loc := strings.TrimSpace(remarks)
	if loc == "" {
		return marketplace.UnknownLocation
	}
	return loc
}

// normalizeBrickLinkOrder maps a raw order onto the canonical model
func normalizeBrickLinkOrder(raw *blOrder) (*marketplace.RemoteOrder, error) {
	status, err := mapBrickLinkStatus(raw.Status)
	if err != nil {
		return nil, err
	}

	order := &marketplace.RemoteOrder{
		ExternalOrderID: strconv.FormatInt(raw.OrderID, 10),
		Provider:        marketplace.ProviderCodeBrickLink,
		Status:          status,
		BuyerName:       raw.BuyerName,
		BuyerEmail:      raw.BuyerEmail,
		ShippingAddress: raw.Shipping.Address.Full,
		CountryCode:     raw.Shipping.Address.CountryCode,
		Subtotal:        parseDecimalPtr(raw.Cost.Subtotal),
		ShippingCost:    parseDecimalPtr(raw.Cost.Shipping),
		GrandTotal:      parseDecimalPtr(raw.Cost.GrandTotal),
		Currency:        raw.Cost.CurrencyCode,
		ItemCount:       raw.TotalCount,
		BuyerNote:       raw.Remarks,
	}

	if raw.DateOrdered != "" {
		if t, err := time.Parse(time.RFC3339, raw.DateOrdered); err == nil {
			order.OrderedAt = t
		}
	}

	if rawBytes, err := json.Marshal(raw); err == nil {
		order.RawData = string(rawBytes)
	}
	return order, nil
}

// normalizeBrickLinkItems flattens the provider's item batches into
// canonical order lines
func normalizeBrickLinkItems(batches [][]blOrderItem) ([]marketplace.RemoteOrderItem, error) {
	var items []marketplace.RemoteOrderItem
	for _, batch := range batches {
		for _, raw := range batch {
			condition := marketplace.ConditionNew
			if strings.EqualFold(raw.NewOrUsed, "U") {
				condition = marketplace.ConditionUsed
			}
			item := marketplace.RemoteOrderItem{
				ExternalLotID: strconv.FormatInt(raw.InventoryID, 10),
				PartNumber:    raw.Item.No,
				ColorID:       strconv.Itoa(raw.ColorID),
				Condition:     condition,
				Quantity:      raw.Quantity,
				UnitPrice:     parseDecimalPtr(raw.UnitPrice),
				Description:   raw.Item.Name,
				Location:      locationFromRemarks(raw.Remarks),
			}
			if err := item.Validate(); err != nil {
				return nil, marketplace.NewAppError(marketplace.ProviderCodeBrickLink,
					marketplace.ErrorCodeInvalidResponse, err.Error())
			}
			items = append(items, item)
		}
	}
	return items, nil
}
