package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrPollFailed is returned when an order poll job fails
	ErrPollFailed = errors.New("order poll failed")

	// ErrPollTimeout is returned when an order poll job times out
	ErrPollTimeout = errors.New("order poll timed out")

	// ErrPollRateLimited is returned when the provider rate limits the poll
	ErrPollRateLimited = errors.New("order poll rate limited by provider")
)
