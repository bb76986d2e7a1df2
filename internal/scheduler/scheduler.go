package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"plotwaitlist-backend/internal/jobs"
	"plotwaitlist-backend/internal/logger"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a new scheduler with the provided job runner. It fails
// when a configured schedule does not parse.
func NewScheduler(jobRunner *jobs.JobRunner) (*Scheduler, error) {
	// Create cron with UTC timezone and seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	if err := s.registerJobs(); err != nil {
		return nil, err
	}
	return s, nil
}

// registerJobs registers all scheduled jobs with the cron scheduler
func (s *Scheduler) registerJobs() error {
	cfg := s.jobs.Config().Scheduler

	// Daily offer expiry sweep
	if _, err := s.cron.AddFunc(cfg.ExpireOffers, s.jobs.ExpireOffers); err != nil {
		logger.Error("Failed to register ExpireOffers job", "schedule", cfg.ExpireOffers, "error", err)
		return err
	}

	// Monthly position reminders
	if _, err := s.cron.AddFunc(cfg.MonthlyReport, s.jobs.SendMonthlyReminders); err != nil {
		logger.Error("Failed to register SendMonthlyReminders job", "schedule", cfg.MonthlyReport, "error", err)
		return err
	}

	logger.Info("All cron jobs registered successfully", "expireOffers", cfg.ExpireOffers, "monthlyReport", cfg.MonthlyReport)
	return nil
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	logger.Info("Cron scheduler started successfully")
}

// Stop gracefully stops the cron scheduler, waiting for running jobs
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// Entries returns the next run time of each registered job
func (s *Scheduler) Entries() []time.Time {
	entries := s.cron.Entries()
	next := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		next = append(next, e.Next)
	}
	return next
}
