package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appsync "github.com/bricksync/backend/internal/application/sync"
	"github.com/bricksync/backend/internal/domain/marketplace"
)

// OrderPuller is the slice of the ingestion engine the executor needs
type OrderPuller interface {
	PullOrders(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode, since time.Time) (*appsync.PullResult, error)
}

// ---------------------------------------------------------------------------
// OrderPollExecutorImpl
// ---------------------------------------------------------------------------

// OrderPollExecutorImpl implements PollExecutor on top of the ingestion engine
type OrderPollExecutorImpl struct {
	ingestion OrderPuller
	logger    *zap.Logger
}

// NewOrderPollExecutor creates a new order poll executor
func NewOrderPollExecutor(ingestion OrderPuller, logger *zap.Logger) *OrderPollExecutorImpl {
	return &OrderPollExecutorImpl{
		ingestion: ingestion,
		logger:    logger,
	}
}

// Execute pulls orders from the provider and ingests them
func (e *OrderPollExecutorImpl) Execute(ctx context.Context, job *PollJob) error {
	result, err := e.ingestion.PullOrders(ctx, job.TenantID, job.Provider, job.Since)
	if err != nil {
		if ctx.Err() != nil {
			return ErrPollTimeout
		}
		if appErr := marketplace.AsAppError(err); appErr != nil {
			if appErr.Code == marketplace.ErrorCodeRateLimited || appErr.Code == marketplace.ErrorCodeCircuitBreakerOpen {
				e.logger.Warn("Provider throttled the poll, will retry later",
					zap.String("provider", job.Provider.String()),
					zap.String("tenant_id", job.TenantID.String()),
					zap.Error(err),
				)
				return fmt.Errorf("%w: %v", ErrPollRateLimited, err)
			}
		}
		return fmt.Errorf("%w: %v", ErrPollFailed, err)
	}

	job.Complete(result.Pulled, result.Ingested, result.Failed)

	e.logger.Info("Order poll execution completed",
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", job.TenantID.String()),
		zap.String("provider", job.Provider.String()),
		zap.String("status", string(job.Status)),
		zap.Int("pulled", result.Pulled),
		zap.Int("ingested", result.Ingested),
		zap.Int("failed", result.Failed),
	)

	return nil
}

// Ensure OrderPollExecutorImpl implements PollExecutor
var _ PollExecutor = (*OrderPollExecutorImpl)(nil)
