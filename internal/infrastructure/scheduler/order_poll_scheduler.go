package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bricksync/backend/internal/domain/marketplace"
)

// ---------------------------------------------------------------------------
// Poll Job Types
// ---------------------------------------------------------------------------

// PollJobStatus represents the status of an order poll job
type PollJobStatus string

const (
	PollJobStatusPending PollJobStatus = "PENDING"
	PollJobStatusRunning PollJobStatus = "RUNNING"
	PollJobStatusSuccess PollJobStatus = "SUCCESS"
	PollJobStatusPartial PollJobStatus = "PARTIAL"
	PollJobStatusFailed  PollJobStatus = "FAILED"
)

// PollJob represents one scheduled order poll for a tenant and provider.
// Polling is the safety net behind push notifications: anything a webhook
// delivery missed is picked up by the next poll window.
type PollJob struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Provider    marketplace.ProviderCode
	Since       time.Time
	Status      PollJobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time

	// Poll results
	Pulled   int
	Ingested int
	Failed   int
}

// NewPollJob creates a new pending poll job
func NewPollJob(tenantID uuid.UUID, provider marketplace.ProviderCode, since time.Time, maxRetries int) *PollJob {
	return &PollJob{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Provider:   provider,
		Since:      since,
		Status:     PollJobStatusPending,
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *PollJob) Start() {
	now := time.Now()
	j.Status = PollJobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete records poll counters and derives the final status
func (j *PollJob) Complete(pulled, ingested, failed int) {
	now := time.Now()
	j.Pulled = pulled
	j.Ingested = ingested
	j.Failed = failed
	j.CompletedAt = &now

	if failed == 0 {
		j.Status = PollJobStatusSuccess
	} else if ingested > 0 {
		j.Status = PollJobStatusPartial
	} else {
		j.Status = PollJobStatusFailed
	}
}

// Fail marks the job as failed
func (j *PollJob) Fail(err string) {
	now := time.Now()
	j.Status = PollJobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *PollJob) ShouldRetry() bool {
	return j.Status == PollJobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry schedules the job for retry with exponential backoff
func (j *PollJob) ScheduleRetry(baseDelay time.Duration) {
	j.RetryCount++
	j.Status = PollJobStatusPending
	// baseDelay * 2^(retryCount-1), capped at 30 minutes
	delay := baseDelay * time.Duration(1<<(j.RetryCount-1))
	if delay > 30*time.Minute {
		delay = 30 * time.Minute
	}
	nextRetry := time.Now().Add(delay)
	j.NextRetryAt = &nextRetry
	j.Error = ""
}

// ---------------------------------------------------------------------------
// PollExecutor Interface
// ---------------------------------------------------------------------------

// PollExecutor executes order poll jobs
type PollExecutor interface {
	// Execute pulls orders from the provider and ingests them
	Execute(ctx context.Context, job *PollJob) error
}

// ---------------------------------------------------------------------------
// PollSchedulerConfig
// ---------------------------------------------------------------------------

// PollSchedulerConfig holds configuration for the order poll scheduler
type PollSchedulerConfig struct {
	// Enabled indicates if the scheduler is enabled
	Enabled bool
	// MaxConcurrentJobs is the maximum number of concurrent poll jobs
	MaxConcurrentJobs int
	// JobTimeout is the maximum time a job can run
	JobTimeout time.Duration
	// RetryAttempts is the number of retry attempts for failed jobs
	RetryAttempts int
	// RetryDelay is the base delay between retries (with exponential backoff)
	RetryDelay time.Duration
	// PollInterval is how often each tenant/provider pair is polled
	PollInterval time.Duration
	// MinPollInterval is the minimum allowed poll interval
	MinPollInterval time.Duration
	// MaxPollInterval is the maximum allowed poll interval
	MaxPollInterval time.Duration
	// Lookback is how far behind the last poll each window starts, as a
	// buffer against clock skew between us and the provider
	Lookback time.Duration
	// FirstPollLookback is how far back the very first poll reaches
	FirstPollLookback time.Duration
}

// DefaultPollSchedulerConfig returns default configuration
func DefaultPollSchedulerConfig() PollSchedulerConfig {
	return PollSchedulerConfig{
		Enabled:           true,
		MaxConcurrentJobs: 5,
		JobTimeout:        10 * time.Minute,
		RetryAttempts:     3,
		RetryDelay:        1 * time.Minute,
		PollInterval:      15 * time.Minute,
		MinPollInterval:   5 * time.Minute,
		MaxPollInterval:   60 * time.Minute,
		Lookback:          5 * time.Minute,
		FirstPollLookback: 24 * time.Hour,
	}
}

// Validate validates the configuration
func (c *PollSchedulerConfig) Validate() error {
	if c.MaxConcurrentJobs <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.RetryAttempts < 0 {
		return ErrInvalidConfig
	}
	if c.MinPollInterval <= 0 {
		return ErrInvalidConfig
	}
	if c.MaxPollInterval < c.MinPollInterval {
		return ErrInvalidConfig
	}
	return nil
}

// EffectivePollInterval clamps the configured interval into [min, max]
func (c *PollSchedulerConfig) EffectivePollInterval() time.Duration {
	interval := c.PollInterval
	if interval < c.MinPollInterval {
		interval = c.MinPollInterval
	}
	if interval > c.MaxPollInterval {
		interval = c.MaxPollInterval
	}
	return interval
}

// ---------------------------------------------------------------------------
// OrderPollScheduler
// ---------------------------------------------------------------------------

// OrderPollScheduler runs order poll jobs on a bounded worker pool
type OrderPollScheduler struct {
	config   PollSchedulerConfig
	executor PollExecutor
	logger   *zap.Logger

	jobs      chan *PollJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// Job history for monitoring (in-memory, limited size)
	historyMu  sync.RWMutex
	history    []*PollJob
	maxHistory int
}

// NewOrderPollScheduler creates a new order poll scheduler
func NewOrderPollScheduler(config PollSchedulerConfig, executor PollExecutor, logger *zap.Logger) (*OrderPollScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &OrderPollScheduler{
		config:     config,
		executor:   executor,
		logger:     logger,
		jobs:       make(chan *PollJob, 100),
		history:    make([]*PollJob, 0, 100),
		maxHistory: 100,
	}, nil
}

// Start starts the scheduler
func (s *OrderPollScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	// Start worker pool
	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Order poll scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)

	return nil
}

// Stop gracefully stops the scheduler
func (s *OrderPollScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	// Close job channel
	close(s.jobs)

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Order poll scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Order poll scheduler stop timed out")
		return ctx.Err()
	}
}

// SubmitJob submits a job for execution
func (s *OrderPollScheduler) SubmitJob(job *PollJob) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	select {
	case s.jobs <- job:
		s.logger.Debug("Order poll job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("tenant_id", job.TenantID.String()),
			zap.String("provider", job.Provider.String()),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// SchedulePoll schedules a poll job for a tenant and provider
func (s *OrderPollScheduler) SchedulePoll(tenantID uuid.UUID, provider marketplace.ProviderCode, since time.Time) error {
	job := NewPollJob(tenantID, provider, since, s.config.RetryAttempts)
	return s.SubmitJob(job)
}

// worker processes jobs from the queue
func (s *OrderPollScheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	s.logger.Debug("Order poll worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Order poll worker stopping", zap.Int("worker_id", workerID))
			return
		case job, ok := <-s.jobs:
			if !ok {
				s.logger.Debug("Order poll job channel closed", zap.Int("worker_id", workerID))
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

// processJob executes a single job
func (s *OrderPollScheduler) processJob(ctx context.Context, job *PollJob, workerID int) {
	// Check if job is ready to run (for retries)
	if job.NextRetryAt != nil && time.Now().Before(*job.NextRetryAt) {
		// Re-queue the job
		select {
		case s.jobs <- job:
		default:
			s.logger.Warn("Failed to re-queue order poll job for retry",
				zap.String("job_id", job.ID.String()),
			)
		}
		return
	}

	job.Start()
	s.logger.Info("Processing order poll job",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", job.TenantID.String()),
		zap.String("provider", job.Provider.String()),
		zap.Time("since", job.Since),
	)

	// Create context with timeout
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	// Execute the job
	err := s.executor.Execute(jobCtx, job)
	if err != nil {
		job.Fail(err.Error())
		s.logger.Error("Order poll job failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.String("tenant_id", job.TenantID.String()),
			zap.String("provider", job.Provider.String()),
			zap.Error(err),
		)

		// Check if should retry
		if job.ShouldRetry() {
			job.ScheduleRetry(s.config.RetryDelay)
			s.logger.Info("Order poll job scheduled for retry",
				zap.String("job_id", job.ID.String()),
				zap.Int("retry_count", job.RetryCount),
				zap.Int("max_retries", job.MaxRetries),
				zap.Time("next_retry_at", *job.NextRetryAt),
			)
			// Re-submit job
			select {
			case s.jobs <- job:
			default:
				s.logger.Warn("Failed to re-queue order poll job for retry",
					zap.String("job_id", job.ID.String()),
				)
			}
		}

		s.addToHistory(job)
		return
	}

	s.logger.Info("Order poll job completed",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", job.TenantID.String()),
		zap.String("provider", job.Provider.String()),
		zap.String("status", string(job.Status)),
		zap.Int("pulled", job.Pulled),
		zap.Int("ingested", job.Ingested),
		zap.Int("failed", job.Failed),
	)

	s.addToHistory(job)
}

// addToHistory adds a completed job to history
func (s *OrderPollScheduler) addToHistory(job *PollJob) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	// Add to front
	s.history = append([]*PollJob{job}, s.history...)

	// Trim if over limit
	if len(s.history) > s.maxHistory {
		s.history = s.history[:s.maxHistory]
	}
}

// GetJobHistory returns recent job history
func (s *OrderPollScheduler) GetJobHistory(limit int) []*PollJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}

	result := make([]*PollJob, limit)
	copy(result, s.history[:limit])
	return result
}

// GetJobHistoryByTenant returns job history for a specific tenant
func (s *OrderPollScheduler) GetJobHistoryByTenant(tenantID uuid.UUID, limit int) []*PollJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	result := make([]*PollJob, 0, limit)
	for _, job := range s.history {
		if job.TenantID == tenantID {
			result = append(result, job)
			if len(result) >= limit {
				break
			}
		}
	}
	return result
}
