// Package app wires configuration into the datastore, notification pipeline
// and services shared by the server and cronjob binaries.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"plotwaitlist-backend/internal/clock"
	"plotwaitlist-backend/internal/config"
	"plotwaitlist-backend/internal/logger"
	"plotwaitlist-backend/internal/notify"
	"plotwaitlist-backend/internal/repository"
	"plotwaitlist-backend/internal/repository/memory"
	"plotwaitlist-backend/internal/repository/postgres"
	"plotwaitlist-backend/internal/service"
)

// App holds the long-lived components built from one Config.
type App struct {
	Config     *config.Config
	DB         *sql.DB // nil with the memory driver
	Store      repository.Store
	Dispatcher *notify.Dispatcher
	Renderer   *notify.Renderer

	Waitlist   service.WaitlistService
	Applicants service.ApplicantService
	Plots      service.PlotService
}

// InitLogger sets up the global logger and returns the rotating log file, if
// one is configured, so the caller can close it on exit.
func InitLogger(cfg config.LogConfig) io.Closer {
	if cfg.File == "" {
		logger.Initialize(cfg.Level, cfg.Format)
		return nil
	}
	file := logger.NewRotatingFile(logger.FileOptions{
		Path:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
	logger.Initialize(cfg.Level, cfg.Format, file)
	return file
}

// New opens the datastore and builds the services. The dispatcher is started;
// Close stops it after draining queued mail.
func New(ctx context.Context, cfg *config.Config, clk clock.Clock) (*App, error) {
	a := &App{Config: cfg}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	a.Renderer = notify.NewRenderer(notify.RendererConfig{
		BaseURL:              cfg.Server.BaseURL,
		ConfirmationTemplate: cfg.Waitlist.ConfirmationTemplate,
		MonthlyTemplate:      cfg.Waitlist.MonthlyTemplate,
		JoinRecipients:       notify.ParseRecipients(cfg.Waitlist.JoinRecipients),
		LeaveRecipients:      notify.ParseRecipients(cfg.Waitlist.LeaveRecipients),
		AcceptRecipients:     notify.ParseRecipients(cfg.Waitlist.AcceptRecipients),
	})
	a.Dispatcher = notify.NewDispatcher(a.Renderer, newNotifier(cfg.Mail), notify.Options{
		QueueSize:   cfg.Mail.QueueSize,
		MaxAttempts: 3,
		Backoff:     time.Second,
	})
	a.Dispatcher.Start()

	policy := service.Policy{
		OfferExpiration: cfg.Waitlist.OfferExpiration(),
		StatusTokenTTL:  time.Duration(cfg.Waitlist.StatusTokenDays) * 24 * time.Hour,
		StatusLinkTTL:   time.Duration(cfg.Waitlist.StatusLinkDays) * 24 * time.Hour,
	}
	a.Waitlist = service.NewWaitlistService(a.Store, a.Dispatcher, clk, policy)
	a.Applicants = service.NewApplicantService(a.Store, a.Waitlist, a.Dispatcher, clk, policy)
	a.Plots = service.NewPlotService(a.Store.Plots())

	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config.Database
	if cfg.Driver == "memory" {
		logger.Warn("Using in-memory datastore; data is lost on exit")
		a.Store = memory.NewStore()
		return nil
	}

	logger.Info("Connecting to database...", "host", cfg.Host, "port", cfg.Port, "database", cfg.Database, "user", cfg.User)
	db, err := sql.Open("postgres", a.Config.GetDatabaseConnectionString())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}
	logger.Info("Database connection established")

	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return err
	}

	a.DB = db
	a.Store = postgres.NewStore(db)
	return nil
}

func newNotifier(cfg config.MailConfig) notify.Notifier {
	if cfg.Provider == "sendgrid" {
		logger.Info("Mail delivery via SendGrid", "from", cfg.From)
		return notify.NewSendGridNotifier(cfg.APIKey, cfg.From, cfg.FromName)
	}
	logger.Info("Mail delivery via log notifier")
	return notify.NewLogNotifier()
}

// Close drains the notification queue and releases the database.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Dispatcher != nil {
		if err := a.Dispatcher.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop dispatcher: %w", err))
		}
		stats := a.Dispatcher.Stats()
		logger.Info("Notification dispatcher stopped", "sent", stats.Sent, "failed", stats.Failed, "dropped", stats.Dropped)
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
