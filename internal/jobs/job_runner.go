package jobs

import (
	"context"
	"time"

	"plotwaitlist-backend/internal/config"
	"plotwaitlist-backend/internal/logger"
	"plotwaitlist-backend/internal/service"
)

// jobTimeout bounds a single scheduled run.
const jobTimeout = 10 * time.Minute

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	waitlist service.WaitlistService
	config   *config.Config
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(waitlist service.WaitlistService, cfg *config.Config) *JobRunner {
	return &JobRunner{
		waitlist: waitlist,
		config:   cfg,
	}
}

// Config returns the configuration the runner was built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	logger.Info("Starting job", "job", jobName)
	start := time.Now()
	jobFunc(ctx)
	logger.Info("Job completed", "job", jobName, "duration", time.Since(start))
}

// RunAll runs every waitlist job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.ExpireOffers()
	jr.SendMonthlyReminders()
}
