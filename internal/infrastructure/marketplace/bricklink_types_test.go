package marketplace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bricksync/backend/internal/domain/marketplace"
)

func TestMapBrickLinkStatus(t *testing.T) {
	tests := []struct {
		in   string
		want marketplace.OrderStatus
	}{
		{"PENDING", marketplace.OrderStatusPending},
		{"PAID", marketplace.OrderStatusPaid},
		{"shipped", marketplace.OrderStatusShipped},
		{"COMPLETED", marketplace.OrderStatusCompleted},
		{"PURGED", marketplace.OrderStatusPurged},
		// Every provider alert status collapses to HOLD.
		{"OCR", marketplace.OrderStatusHold},
		{"NPB", marketplace.OrderStatusHold},
		{"NPX", marketplace.OrderStatusHold},
		{"NRS", marketplace.OrderStatusHold},
		{"NSS", marketplace.OrderStatusHold},
	}
	for _, tt := range tests {
		got, err := mapBrickLinkStatus(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestMapBrickLinkStatus_UnknownFailsLoud(t *testing.T) {
	_, err := mapBrickLinkStatus("SOMETHING_NEW")

	var unsupported *marketplace.UnsupportedStatusError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, marketplace.ProviderCodeBrickLink, unsupported.Provider)
	assert.Equal(t, "SOMETHING_NEW", unsupported.Status)
}

func TestDecodeEnvelope_Success(t *testing.T) {
	body := []byte(`{"meta":{"code":200,"message":"OK","description":""},"data":{"order_id":123}}`)

	var out blOrder
	err := decodeEnvelope(marketplace.ProviderCodeBrickLink, body, &out)

	require.NoError(t, err)
	assert.Equal(t, int64(123), out.OrderID)
}

// An HTTP 200 whose envelope meta signals failure is still a failure
func TestDecodeEnvelope_MetaFailure(t *testing.T) {
	body := []byte(`{"meta":{"code":404,"message":"RESOURCE_NOT_FOUND","description":"no such order"},"data":{}}`)

	err := decodeEnvelope(marketplace.ProviderCodeBrickLink, body, nil)

	appErr := marketplace.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, marketplace.ErrorCodeNotFound, appErr.Code)
	assert.Equal(t, "no such order", appErr.Message)
}

func TestDecodeEnvelope_MalformedBody(t *testing.T) {
	err := decodeEnvelope(marketplace.ProviderCodeBrickLink, []byte(`not json`), nil)

	appErr := marketplace.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, marketplace.ErrorCodeInvalidResponse, appErr.Code)
}

func TestDecodeEnvelope_MismatchedDataShape(t *testing.T) {
	body := []byte(`{"meta":{"code":200,"message":"OK","description":""},"data":[1,2,3]}`)

	var out blOrder
	err := decodeEnvelope(marketplace.ProviderCodeBrickLink, body, &out)

	appErr := marketplace.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, marketplace.ErrorCodeInvalidResponse, appErr.Code)
}

func TestParseDecimalPtr(t *testing.T) {
	require.NotNil(t, parseDecimalPtr("12.3400"))
	assert.Equal(t, "12.34", parseDecimalPtr("12.3400").String())

	assert.Nil(t, parseDecimalPtr(""))
	assert.Nil(t, parseDecimalPtr("   "))
	assert.Nil(t, parseDecimalPtr("not-a-number"))
}

func TestLocationFromRemarks(t *testing.T) {
	assert.Equal(t, "A-1", locationFromRemarks("A-1"))
	assert.Equal(t, "B-12", locationFromRemarks("  B-12  "))
	assert.Equal(t, marketplace.UnknownLocation, locationFromRemarks(""))
	assert.Equal(t, marketplace.UnknownLocation, locationFromRemarks("   "))
}

func TestNormalizeBrickLinkOrder(t *testing.T) {
	raw := &blOrder{
		OrderID:     27415981,
		DateOrdered: "2024-06-01T10:30:00Z",
		BuyerName:   "brickfan42",
		BuyerEmail:  "fan@example.com",
		Status:      "PAID",
		TotalCount:  12,
		Shipping:    blShipping{Address: blAddress{Full: "1 Brick Way", CountryCode: "DE"}},
		Cost: blCost{
			CurrencyCode: "EUR",
			Subtotal:     "45.5000",
			GrandTotal:   "52.0000",
			Shipping:     "6.5000",
		},
	}

	order, err := normalizeBrickLinkOrder(raw)
	require.NoError(t, err)

	assert.Equal(t, "27415981", order.ExternalOrderID)
	assert.Equal(t, marketplace.ProviderCodeBrickLink, order.Provider)
	assert.Equal(t, marketplace.OrderStatusPaid, order.Status)
	assert.Equal(t, "brickfan42", order.BuyerName)
	assert.Equal(t, "DE", order.CountryCode)
	require.NotNil(t, order.GrandTotal)
	assert.Equal(t, "52", order.GrandTotal.String())
	assert.Equal(t, 12, order.ItemCount)
	assert.False(t, order.OrderedAt.IsZero())
	assert.NotEmpty(t, order.RawData)
	assert.NoError(t, order.Validate())
}

func TestNormalizeBrickLinkOrder_MissingCostIsNil(t *testing.T) {
	raw := &blOrder{OrderID: 1, Status: "PENDING"}

	order, err := normalizeBrickLinkOrder(raw)
	require.NoError(t, err)

	assert.Nil(t, order.Subtotal)
	assert.Nil(t, order.GrandTotal)
	assert.Nil(t, order.ShippingCost)
}

func TestNormalizeBrickLinkOrder_UnknownStatus(t *testing.T) {
	raw := &blOrder{OrderID: 1, Status: "MYSTERY"}

	_, err := normalizeBrickLinkOrder(raw)

	var unsupported *marketplace.UnsupportedStatusError
	assert.ErrorAs(t, err, &unsupported)
}

func TestNormalizeBrickLinkItems_FlattensBatches(t *testing.T) {
	batches := [][]blOrderItem{
		{
			{InventoryID: 101, Item: blItemRef{No: "3001", Name: "Brick 2 x 4"}, ColorID: 0, Quantity: 5, NewOrUsed: "N", UnitPrice: "0.1200", Remarks: "A-1"},
		},
		{
			{InventoryID: 102, Item: blItemRef{No: "3020", Name: "Plate 2 x 4"}, ColorID: 11, Quantity: 2, NewOrUsed: "U", UnitPrice: "0.0500"},
		},
	}

	items, err := normalizeBrickLinkItems(batches)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "101", items[0].ExternalLotID)
	assert.Equal(t, "3001", items[0].PartNumber)
	assert.Equal(t, "0", items[0].ColorID)
	assert.Equal(t, marketplace.ConditionNew, items[0].Condition)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, "A-1", items[0].Location)

	assert.Equal(t, marketplace.ConditionUsed, items[1].Condition)
	assert.Equal(t, marketplace.UnknownLocation, items[1].Location)
}

func TestNormalizeBrickLinkItems_InvalidLineFails(t *testing.T) {
	batches := [][]blOrderItem{
		{{InventoryID: 1, Item: blItemRef{No: ""}, Quantity: 5, NewOrUsed: "N"}},
	}

	_, err := normalizeBrickLinkItems(batches)

	appErr := marketplace.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, marketplace.ErrorCodeInvalidResponse, appErr.Code)
}
