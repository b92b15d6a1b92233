package sync_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	appsync "github.com/bricksync/backend/internal/application/sync"
	"github.com/bricksync/backend/internal/domain/inventory"
	"github.com/bricksync/backend/internal/domain/marketplace"
	"github.com/bricksync/backend/internal/domain/order"
	"github.com/bricksync/backend/internal/infrastructure/persistence"
	"github.com/bricksync/backend/internal/infrastructure/persistence/models"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

type ingestFixture struct {
	db      *gorm.DB
	svc     *appsync.IngestionService
	adapter *stubMarketplace
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.OrderModel{}, &models.OrderItemModel{},
		&models.InventoryItemModel{}, &models.LedgerEntryModel{},
	))

	adapter := &stubMarketplace{provider: marketplace.ProviderCodeBrickLink}
	svc := appsync.NewIngestionService(
		&stubRegistry{adapter: adapter},
		persistence.NewGormTransactionScope(db),
		zap.NewNop(),
	)
	return &ingestFixture{db: db, svc: svc, adapter: adapter}
}

func (f *ingestFixture) seedItem(t *testing.T, tenantID uuid.UUID, available int) *inventory.InventoryItem {
	t.Helper()
	item, err := inventory.NewInventoryItem(tenantID, inventory.ItemKey{
		PartNumber: "3001",
		ColorID:    "0",
		Condition:  marketplace.ConditionNew,
		Location:   "A-1",
	}, available, decimal.NewFromFloat(0.12))
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormInventoryItemRepository(f.db).Save(context.Background(), item))
	return item
}

func (f *ingestFixture) reloadItem(t *testing.T, tenantID, itemID uuid.UUID) *inventory.InventoryItem {
	t.Helper()
	item, err := persistence.NewGormInventoryItemRepository(f.db).FindByID(context.Background(), tenantID, itemID)
	require.NoError(t, err)
	return item
}

func (f *ingestFixture) ledgerEntries(t *testing.T, itemID uuid.UUID) []*inventory.LedgerEntry {
	t.Helper()
	entries, err := persistence.NewGormLedgerRepository(f.db).ListByItem(context.Background(), itemID)
	require.NoError(t, err)
	return entries
}

func remoteBrickOrder(externalID string, status marketplace.OrderStatus) *marketplace.RemoteOrder {
	total := decimal.NewFromFloat(52.00)
	return &marketplace.RemoteOrder{
		ExternalOrderID: externalID,
		Provider:        marketplace.ProviderCodeBrickLink,
		Status:          status,
		BuyerName:       "brickfan42",
		GrandTotal:      &total,
		Currency:        "EUR",
		OrderedAt:       time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	}
}

func remoteLine(quantity int, location string) marketplace.RemoteOrderItem {
	price := decimal.NewFromFloat(0.15)
	return marketplace.RemoteOrderItem{
		ExternalLotID: "lot-1",
		PartNumber:    "3001",
		ColorID:       "0",
		Condition:     marketplace.ConditionNew,
		Quantity:      quantity,
		UnitPrice:     &price,
		Location:      location,
	}
}

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubMarketplace struct {
	provider marketplace.ProviderCode
	orders   []marketplace.RemoteOrder
	items    map[string][]marketplace.RemoteOrderItem
}

func (m *stubMarketplace) Provider() marketplace.ProviderCode          { return m.provider }
func (m *stubMarketplace) TestConnection(context.Context, uuid.UUID) error { return nil }

func (m *stubMarketplace) PullOrders(context.Context, *marketplace.OrderPullRequest) ([]marketplace.RemoteOrder, error) {
	return m.orders, nil
}

func (m *stubMarketplace) GetOrder(_ context.Context, _ uuid.UUID, externalOrderID string) (*marketplace.RemoteOrder, error) {
	for i := range m.orders {
		if m.orders[i].ExternalOrderID == externalOrderID {
			return &m.orders[i], nil
		}
	}
	return nil, marketplace.ErrOrderNotFound
}

func (m *stubMarketplace) GetOrderItems(_ context.Context, _ uuid.UUID, externalOrderID string) ([]marketplace.RemoteOrderItem, error) {
	return m.items[externalOrderID], nil
}

type stubRegistry struct {
	adapter *stubMarketplace
}

func (r *stubRegistry) Get(provider marketplace.ProviderCode) (marketplace.Marketplace, error) {
	if provider != r.adapter.provider {
		return nil, marketplace.ErrProviderNotConfigured
	}
	return r.adapter, nil
}

func (r *stubRegistry) List() []marketplace.Marketplace {
	return []marketplace.Marketplace{r.adapter}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestIngest_ReservesMatchedInventory(t *testing.T) {
	f := newIngestFixture(t)
	tenantID := uuid.New()
	item := f.seedItem(t, tenantID, 50)

	result, err := f.svc.Ingest(context.Background(), tenantID,
		remoteBrickOrder("27415981", marketplace.OrderStatusPaid),
		[]marketplace.RemoteOrderItem{remoteLine(5, "A-1")})
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.Equal(t, 1, result.MatchedLines)
	assert.Zero(t, result.UnmatchedLines)
	assert.Equal(t, 5, result.ReservedUnits)
	require.Len(t, result.Snapshots, 1)
	assert.Equal(t, 50, result.Snapshots[0].QuantityAvailable)

	after := f.reloadItem(t, tenantID, item.ID)
	assert.Equal(t, 45, after.QuantityAvailable)
	assert.Equal(t, 5, after.QuantityReserved)

	entries := f.ledgerEntries(t, item.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].Sequence)
	assert.Equal(t, 50, entries[0].PreAvailable)
	assert.Equal(t, -5, entries[0].DeltaAvailable)
	assert.Equal(t, 45, entries[0].PostAvailable)
	assert.Equal(t, inventory.LedgerReasonOrderSale, entries[0].Reason)
	assert.Equal(t, "27415981", entries[0].ExternalOrderID)
	assert.Equal(t, result.CorrelationID, entries[0].CorrelationID)
}

// Re-ingesting the same order refreshes the record without touching
// quantities or appending ledger entries again.
func TestIngest_ReIngestionIsIdempotent(t *testing.T) {
	f := newIngestFixture(t)
	tenantID := uuid.New()
	item := f.seedItem(t, tenantID, 50)
	ctx := context.Background()
	lines := []marketplace.RemoteOrderItem{remoteLine(5, "A-1")}

	first, err := f.svc.Ingest(ctx, tenantID, remoteBrickOrder("1001", marketplace.OrderStatusPaid), lines)
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := f.svc.Ingest(ctx, tenantID, remoteBrickOrder("1001", marketplace.OrderStatusProcessing), lines)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Zero(t, second.ReservedUnits)
	assert.Equal(t, marketplace.OrderStatusProcessing, second.Status)

	after := f.reloadItem(t, tenantID, item.ID)
	assert.Equal(t, 45, after.QuantityAvailable)
	assert.Equal(t, 5, after.QuantityReserved)
	assert.Len(t, f.ledgerEntries(t, item.ID), 1)

	stored, err := persistence.NewGormOrderRepository(f.db).FindByExternalID(ctx, tenantID, marketplace.ProviderCodeBrickLink, "1001")
	require.NoError(t, err)
	assert.Equal(t, marketplace.OrderStatusProcessing, stored.Status)
}

func TestIngest_UnmatchedLineIsRecordedNotGuessed(t *testing.T) {
	f := newIngestFixture(t)
	tenantID := uuid.New()
	item := f.seedItem(t, tenantID, 50)
	ctx := context.Background()

	// Same part, different bin. Strict key matching must not fall back.
	result, err := f.svc.Ingest(ctx, tenantID,
		remoteBrickOrder("2002", marketplace.OrderStatusPaid),
		[]marketplace.RemoteOrderItem{remoteLine(5, "B-9")})
	require.NoError(t, err)

	assert.Zero(t, result.MatchedLines)
	assert.Equal(t, 1, result.UnmatchedLines)
	assert.Zero(t, result.ReservedUnits)

	after := f.reloadItem(t, tenantID, item.ID)
	assert.Equal(t, 50, after.QuantityAvailable)
	assert.Empty(t, f.ledgerEntries(t, item.ID))

	items, err := persistence.NewGormOrderRepository(f.db).ListItems(ctx, result.OrderID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, order.ItemStatusUnmatched, items[0].Status)
	assert.Nil(t, items[0].InventoryItemID)
}

// Cancellation returns reserved units to available and the ledger records
// the release, so available quantity is conserved end to end.
func TestIngest_CancellationReleasesReservation(t *testing.T) {
	f := newIngestFixture(t)
	tenantID := uuid.New()
	item := f.seedItem(t, tenantID, 50)
	ctx := context.Background()
	lines := []marketplace.RemoteOrderItem{remoteLine(5, "A-1")}

	_, err := f.svc.Ingest(ctx, tenantID, remoteBrickOrder("3003", marketplace.OrderStatusPaid), lines)
	require.NoError(t, err)

	result, err := f.svc.Ingest(ctx, tenantID, remoteBrickOrder("3003", marketplace.OrderStatusCancelled), lines)
	require.NoError(t, err)
	assert.Equal(t, 5, result.ReleasedUnits)

	after := f.reloadItem(t, tenantID, item.ID)
	assert.Equal(t, 50, after.QuantityAvailable)
	assert.Zero(t, after.QuantityReserved)

	entries := f.ledgerEntries(t, item.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[1].Sequence)
	assert.Equal(t, entries[0].PostAvailable, entries[1].PreAvailable)
	assert.Equal(t, 5, entries[1].DeltaAvailable)
	assert.Equal(t, 50, entries[1].PostAvailable)
	assert.Equal(t, inventory.LedgerReasonOrderCancel, entries[1].Reason)
}

// Completion commits the shipment: reserved units leave the system while
// available quantity, and therefore the ledger, is untouched.
func TestIngest_CompletionCommitsShipment(t *testing.T) {
	f := newIngestFixture(t)
	tenantID := uuid.New()
	item := f.seedItem(t, tenantID, 50)
	ctx := context.Background()
	lines := []marketplace.RemoteOrderItem{remoteLine(5, "A-1")}

	_, err := f.svc.Ingest(ctx, tenantID, remoteBrickOrder("4004", marketplace.OrderStatusShipped), lines)
	require.NoError(t, err)

	_, err = f.svc.Ingest(ctx, tenantID, remoteBrickOrder("4004", marketplace.OrderStatusCompleted), lines)
	require.NoError(t, err)

	after := f.reloadItem(t, tenantID, item.ID)
	assert.Equal(t, 45, after.QuantityAvailable)
	assert.Zero(t, after.QuantityReserved)
	assert.Len(t, f.ledgerEntries(t, item.ID), 1)
}

// Overselling fails the whole ingestion: no order record, no partial writes.
func TestIngest_InsufficientStockRollsBackEverything(t *testing.T) {
	f := newIngestFixture(t)
	tenantID := uuid.New()
	item := f.seedItem(t, tenantID, 3)
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, tenantID,
		remoteBrickOrder("5005", marketplace.OrderStatusPaid),
		[]marketplace.RemoteOrderItem{remoteLine(5, "A-1")})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	_, err = persistence.NewGormOrderRepository(f.db).FindByExternalID(ctx, tenantID, marketplace.ProviderCodeBrickLink, "5005")
	assert.ErrorIs(t, err, order.ErrNotFound)

	after := f.reloadItem(t, tenantID, item.ID)
	assert.Equal(t, 3, after.QuantityAvailable)
	assert.Zero(t, after.QuantityReserved)
	assert.Empty(t, f.ledgerEntries(t, item.ID))
}

// An order already in a terminal status on first sight never reserves
func TestIngest_FirstIngestionOfFinalOrderDoesNotReserve(t *testing.T) {
	f := newIngestFixture(t)
	tenantID := uuid.New()
	item := f.seedItem(t, tenantID, 50)

	result, err := f.svc.Ingest(context.Background(), tenantID,
		remoteBrickOrder("6006", marketplace.OrderStatusCompleted),
		[]marketplace.RemoteOrderItem{remoteLine(5, "A-1")})
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.Zero(t, result.ReservedUnits)
	assert.Equal(t, 1, result.MatchedLines)

	after := f.reloadItem(t, tenantID, item.ID)
	assert.Equal(t, 50, after.QuantityAvailable)
	assert.Empty(t, f.ledgerEntries(t, item.ID))
}

func TestPullOrders_IngestsEveryPulledOrder(t *testing.T) {
	f := newIngestFixture(t)
	tenantID := uuid.New()
	f.seedItem(t, tenantID, 50)
	ctx := context.Background()

	f.adapter.orders = []marketplace.RemoteOrder{
		*remoteBrickOrder("7001", marketplace.OrderStatusPaid),
		*remoteBrickOrder("7002", marketplace.OrderStatusPending),
	}
	f.adapter.items = map[string][]marketplace.RemoteOrderItem{
		"7001": {remoteLine(2, "A-1")},
		"7002": {remoteLine(3, "A-1")},
	}

	result, err := f.svc.PullOrders(ctx, tenantID, marketplace.ProviderCodeBrickLink, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Pulled)
	assert.Equal(t, 2, result.Ingested)
	assert.Zero(t, result.Failed)

	repo := persistence.NewGormOrderRepository(f.db)
	for _, id := range []string{"7001", "7002"} {
		_, err := repo.FindByExternalID(ctx, tenantID, marketplace.ProviderCodeBrickLink, id)
		assert.NoError(t, err, "order %s not ingested", id)
	}
}

func TestIngestOrder_FetchesOrderAndItems(t *testing.T) {
	f := newIngestFixture(t)
	tenantID := uuid.New()
	item := f.seedItem(t, tenantID, 50)
	ctx := context.Background()

	f.adapter.orders = []marketplace.RemoteOrder{*remoteBrickOrder("8008", marketplace.OrderStatusPaid)}
	f.adapter.items = map[string][]marketplace.RemoteOrderItem{
		"8008": {remoteLine(4, "A-1")},
	}

	result, err := f.svc.IngestOrder(ctx, tenantID, marketplace.ProviderCodeBrickLink, "8008")
	require.NoError(t, err)
	assert.Equal(t, 4, result.ReservedUnits)

	after := f.reloadItem(t, tenantID, item.ID)
	assert.Equal(t, 46, after.QuantityAvailable)
}
