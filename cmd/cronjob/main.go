package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plotwaitlist-backend/internal/app"
	"plotwaitlist-backend/internal/clock"
	"plotwaitlist-backend/internal/config"
	"plotwaitlist-backend/internal/jobs"
	"plotwaitlist-backend/internal/logger"
	"plotwaitlist-backend/internal/scheduler"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit ('expire-offers', 'monthly-report', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	if logFile := app.InitLogger(cfg.Log); logFile != nil {
		defer logFile.Close()
	}
	logger.Info("Starting Plot Waitlist Cronjob Runner...", "log_level", cfg.Log.Level)

	if cfg.Database.Driver == "memory" {
		logger.Warn("Cronjob runner is using the in-memory datastore; jobs will see no server data")
	}

	application, err := app.New(context.Background(), cfg, clock.Real{})
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer closeApp(application)

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(application.Waitlist, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		if !runJobOnce(jobRunner, *runOnce) {
			closeApp(application)
			os.Exit(1)
		}
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler, err := scheduler.NewScheduler(jobRunner)
	if err != nil {
		logger.Error("Failed to create scheduler", "error", err)
		closeApp(application)
		os.Exit(1)
	}

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// closeApp waits for queued notifications before releasing the database.
func closeApp(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		logger.Error("Application shutdown failed", "error", err)
	}
}

// runJobOnce runs a specific job once and reports whether the name was known
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) bool {
	switch jobName {
	case "expire-offers":
		jobRunner.ExpireOffers()
	case "monthly-report":
		jobRunner.SendMonthlyReminders()
	case "all":
		jobRunner.RunAll()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - expire-offers\n")
		fmt.Printf("  - monthly-report\n")
		fmt.Printf("  - all\n")
		return false
	}
	return true
}
