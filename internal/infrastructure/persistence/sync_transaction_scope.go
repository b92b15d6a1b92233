package persistence

import (
	"context"

	"gorm.io/gorm"

	appsync "github.com/bricksync/backend/internal/application/sync"
	"github.com/bricksync/backend/internal/domain/inventory"
	"github.com/bricksync/backend/internal/domain/order"
)

// GormTransactionScope implements the ingestion TransactionScope using GORM
// transactions. Every repository handed to fn runs on the same transaction,
// so an error anywhere rolls back the order, inventory and ledger writes
// together.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

var _ appsync.TransactionScope = (*GormTransactionScope)(nil)

// Execute runs fn within a database transaction
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appsync.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides transaction-scoped repositories
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

var _ appsync.TransactionalRepositories = (*gormTransactionalRepositories)(nil)

// Orders returns the order repository scoped to the current transaction
func (r *gormTransactionalRepositories) Orders() order.Repository {
	return NewGormOrderRepository(r.tx)
}

// Items returns the inventory item repository scoped to the current transaction
func (r *gormTransactionalRepositories) Items() inventory.ItemRepository {
	return NewGormInventoryItemRepository(r.tx)
}

// Ledger returns the ledger repository scoped to the current transaction
func (r *gormTransactionalRepositories) Ledger() inventory.LedgerRepository {
	return NewGormLedgerRepository(r.tx)
}
