package sync

import (
	"context"

	"github.com/bricksync/backend/internal/domain/inventory"
	"github.com/bricksync/backend/internal/domain/order"
)

// TransactionalRepositories provides access to the repositories participating
// in one ingestion transaction. Everything obtained from it shares the same
// underlying transaction.
type TransactionalRepositories interface {
	// Orders returns the order repository scoped to the transaction
	Orders() order.Repository

	// Items returns the inventory item repository scoped to the transaction
	Items() inventory.ItemRepository

	// Ledger returns the ledger repository scoped to the transaction
	Ledger() inventory.LedgerRepository
}

// TransactionScope executes a function atomically: every repository write
// inside fn commits together or not at all. Order ingestion relies on this
// for its all-or-nothing invariant across order, inventory and ledger rows.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}
