package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bricksync/backend/internal/domain/inventory"
	"github.com/bricksync/backend/internal/domain/marketplace"
	"github.com/bricksync/backend/internal/domain/order"
)

// ---------------------------------------------------------------------------
// Results
// ---------------------------------------------------------------------------

// IngestResult summarizes one order ingestion call
type IngestResult struct {
	OrderID         uuid.UUID
	ExternalOrderID string
	Provider        marketplace.ProviderCode
	Status          marketplace.OrderStatus
	// Created is true when this ingestion created the local order record
	Created bool
	// MatchedLines is the number of lines linked to an inventory row
	MatchedLines int
	// UnmatchedLines is the number of lines with no matching inventory row
	UnmatchedLines int
	// ReservedUnits is the total quantity moved from available to reserved
	ReservedUnits int
	// ReleasedUnits is the total quantity returned to available
	ReleasedUnits int
	// Snapshots holds the pre-change quantities of every touched inventory
	// row, kept for rollback tooling
	Snapshots []inventory.Snapshot
	// CorrelationID ties together every write of this ingestion call
	CorrelationID string
}

// PullResult summarizes one provider pull
type PullResult struct {
	Provider marketplace.ProviderCode
	Pulled   int
	Ingested int
	Failed   int
	Results  []IngestResult
}

// ---------------------------------------------------------------------------
// IngestionService
// ---------------------------------------------------------------------------

// IngestionService turns remote marketplace orders into local order records
// and inventory reservations. All writes of one ingestion happen inside a
// single transaction; re-ingesting the same order is safe and never double
// reserves.
type IngestionService struct {
	registry marketplace.Registry
	scope    TransactionScope
	logger   *zap.Logger
}

// NewIngestionService creates a new IngestionService
func NewIngestionService(registry marketplace.Registry, scope TransactionScope, logger *zap.Logger) *IngestionService {
	return &IngestionService{
		registry: registry,
		scope:    scope,
		logger:   logger,
	}
}

// IngestOrder fetches one order and its lines from the provider and ingests it
func (s *IngestionService) IngestOrder(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode, externalOrderID string) (*IngestResult, error) {
	adapter, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	remote, err := adapter.GetOrder(ctx, tenantID, externalOrderID)
	if err != nil {
		return nil, err
	}
	items, err := adapter.GetOrderItems(ctx, tenantID, externalOrderID)
	if err != nil {
		return nil, err
	}

	return s.Ingest(ctx, tenantID, remote, items)
}

// PullOrders pulls every order changed since the given time and ingests each
// one. Per-order failures are logged and counted, they do not abort the pull.
func (s *IngestionService) PullOrders(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode, since time.Time) (*PullResult, error) {
	adapter, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	remotes, err := adapter.PullOrders(ctx, &marketplace.OrderPullRequest{
		TenantID: tenantID,
		Provider: provider,
		Since:    since,
	})
	if err != nil {
		return nil, err
	}

	result := &PullResult{Provider: provider, Pulled: len(remotes)}
	for i := range remotes {
		remote := &remotes[i]
		items, err := adapter.GetOrderItems(ctx, tenantID, remote.ExternalOrderID)
		if err != nil {
			s.logger.Warn("failed to fetch order items",
				zap.String("tenant_id", tenantID.String()),
				zap.String("provider", provider.String()),
				zap.String("external_order_id", remote.ExternalOrderID),
				zap.Error(err))
			result.Failed++
			continue
		}

		ingested, err := s.Ingest(ctx, tenantID, remote, items)
		if err != nil {
			s.logger.Warn("order ingestion failed",
				zap.String("tenant_id", tenantID.String()),
				zap.String("provider", provider.String()),
				zap.String("external_order_id", remote.ExternalOrderID),
				zap.Error(err))
			result.Failed++
			continue
		}
		result.Ingested++
		result.Results = append(result.Results, *ingested)
	}
	return result, nil
}

// Ingest upserts the order, replaces its line set, matches lines against
// inventory and appends quantity ledger entries, all in one transaction.
func (s *IngestionService) Ingest(ctx context.Context, tenantID uuid.UUID, remote *marketplace.RemoteOrder, remoteItems []marketplace.RemoteOrderItem) (*IngestResult, error) {
	if err := remote.Validate(); err != nil {
		return nil, err
	}

	result := &IngestResult{
		ExternalOrderID: remote.ExternalOrderID,
		Provider:        remote.Provider,
		Status:          remote.Status,
		CorrelationID:   uuid.NewString(),
	}

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		existing, err := repos.Orders().FindByExternalID(ctx, tenantID, remote.Provider, remote.ExternalOrderID)
		var local *order.Order
		var wasReserving bool
		switch {
		case err == nil:
			wasReserving = existing.Status.ReservesInventory()
			if err := existing.ApplyRemote(remote); err != nil {
				return err
			}
			local = existing
		case errors.Is(err, order.ErrNotFound):
			local, err = order.NewFromRemote(tenantID, remote)
			if err != nil {
				return err
			}
			result.Created = true
		default:
			return err
		}

		if err := repos.Orders().Save(ctx, local); err != nil {
			return err
		}
		result.OrderID = local.ID

		// Release reserved units before the line set is replaced, while the
		// previous ingestion's inventory links are still on record.
		nowReserving := remote.Status.ReservesInventory()
		if !result.Created && wasReserving && !nowReserving {
			if err := s.settleReservations(ctx, repos, tenantID, local, remote.Status, result); err != nil {
				return err
			}
		}

		// Reservation happens exactly once, on the first ingestion of an
		// order in a reserving status. Later re-ingestions only refresh.
		reserve := result.Created && nowReserving

		items := make([]order.OrderItem, 0, len(remoteItems))
		for i := range remoteItems {
			line, err := s.buildLine(ctx, repos, tenantID, local, &remoteItems[i], reserve, result)
			if err != nil {
				return err
			}
			items = append(items, *line)
		}
		local.Items = items
		return repos.Orders().ReplaceItems(ctx, local.ID, items)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order ingested",
		zap.String("tenant_id", tenantID.String()),
		zap.String("provider", remote.Provider.String()),
		zap.String("external_order_id", remote.ExternalOrderID),
		zap.String("status", remote.Status.String()),
		zap.Bool("created", result.Created),
		zap.Int("matched_lines", result.MatchedLines),
		zap.Int("unmatched_lines", result.UnmatchedLines),
		zap.Int("reserved_units", result.ReservedUnits),
		zap.Int("released_units", result.ReleasedUnits),
		zap.String("correlation_id", result.CorrelationID))
	return result, nil
}

// buildLine creates one local order line, matching it against inventory by
// the (part, color, condition, location) business key. Matching is strict:
// a line whose key hits no inventory row is stored unmatched, never guessed.
func (s *IngestionService) buildLine(
	ctx context.Context,
	repos TransactionalRepositories,
	tenantID uuid.UUID,
	local *order.Order,
	remote *marketplace.RemoteOrderItem,
	reserve bool,
	result *IngestResult,
) (*order.OrderItem, error) {
	line, err := order.NewItemFromRemote(local.ID, remote)
	if err != nil {
		return nil, err
	}

	item, err := repos.Items().FindByKey(ctx, tenantID, inventory.ItemKey{
		PartNumber: remote.PartNumber,
		ColorID:    remote.ColorID,
		Condition:  remote.Condition,
		Location:   remote.Location,
	})
	if err != nil {
		return nil, err
	}
	if item == nil {
		line.MarkUnmatched()
		result.UnmatchedLines++
		return line, nil
	}

	line.LinkInventory(item.ID)
	result.MatchedLines++

	if reserve {
		result.Snapshots = append(result.Snapshots, item.Snapshot())
		if err := item.Reserve(remote.Quantity); err != nil {
			return nil, err
		}
		if err := s.appendLedgerEntry(ctx, repos, tenantID, item, -remote.Quantity,
			inventory.LedgerReasonOrderSale, local, result.CorrelationID); err != nil {
			return nil, err
		}
		if err := repos.Items().Save(ctx, item); err != nil {
			return nil, err
		}
		result.ReservedUnits += remote.Quantity
	}
	return line, nil
}

// settleReservations handles the transition out of a reserving status using
// the inventory links recorded by the reserving ingestion. Cancellation
// returns units to available; completion commits the shipment.
func (s *IngestionService) settleReservations(
	ctx context.Context,
	repos TransactionalRepositories,
	tenantID uuid.UUID,
	local *order.Order,
	status marketplace.OrderStatus,
	result *IngestResult,
) error {
	stored, err := repos.Orders().ListItems(ctx, local.ID)
	if err != nil {
		return err
	}

	cancel := status == marketplace.OrderStatusCancelled || status == marketplace.OrderStatusPurged
	for i := range stored {
		line := &stored[i]
		if line.InventoryItemID == nil {
			continue
		}
		item, err := repos.Items().FindByID(ctx, tenantID, *line.InventoryItemID)
		if err != nil {
			if errors.Is(err, inventory.ErrItemNotFound) {
				continue
			}
			return err
		}

		result.Snapshots = append(result.Snapshots, item.Snapshot())
		if cancel {
			if err := item.Release(line.Quantity); err != nil {
				return err
			}
			if err := s.appendLedgerEntry(ctx, repos, tenantID, item, line.Quantity,
				inventory.LedgerReasonOrderCancel, local, result.CorrelationID); err != nil {
				return err
			}
			result.ReleasedUnits += line.Quantity
		} else {
			if err := item.CommitShipment(line.Quantity); err != nil {
				return err
			}
		}
		if err := repos.Items().Save(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// appendLedgerEntry appends one quantity mutation to the item's ledger. The
// sequence is the previous entry's sequence plus one and the pre-quantity is
// the previous entry's post-quantity, so the chain stays gap-free. The item
// must already carry the mutated quantity when this is called.
func (s *IngestionService) appendLedgerEntry(
	ctx context.Context,
	repos TransactionalRepositories,
	tenantID uuid.UUID,
	item *inventory.InventoryItem,
	delta int,
	reason inventory.LedgerReason,
	local *order.Order,
	correlationID string,
) error {
	last, err := repos.Ledger().LastEntry(ctx, item.ID)
	if err != nil {
		return err
	}

	sequence := int64(1)
	pre := item.QuantityAvailable - delta
	if last != nil {
		sequence = last.Sequence + 1
		pre = last.PostAvailable
	}

	entry, err := inventory.NewLedgerEntry(tenantID, item.ID, sequence, pre, delta, reason)
	if err != nil {
		return err
	}
	entry.WithSource(local.Provider).
		WithExternalOrderID(local.ExternalOrderID).
		WithCorrelationID(correlationID)
	return repos.Ledger().Append(ctx, entry)
}
