package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpcapi "plotwaitlist-backend/internal/api/grpc"
	httpapi "plotwaitlist-backend/internal/api/http"
	"plotwaitlist-backend/internal/app"
	"plotwaitlist-backend/internal/clock"
	"plotwaitlist-backend/internal/config"
	"plotwaitlist-backend/internal/logger"
	"plotwaitlist-backend/internal/security"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	hashPassword := flag.String("hash-password", "", "Print the bcrypt hash of a password for admin.password_hash and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := security.HashPassword(*hashPassword)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		fmt.Println(hash)
		return
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	if logFile := app.InitLogger(cfg.Log); logFile != nil {
		defer logFile.Close()
	}
	logger.Info("Starting Plot Waitlist Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress(), "base_url", cfg.Server.BaseURL)
	logger.Info("Waitlist configuration",
		"offer_expiration_days", cfg.Waitlist.OfferExpirationDays,
		"expire_schedule", cfg.Scheduler.ExpireOffers,
		"monthly_schedule", cfg.Scheduler.MonthlyReport,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, clock.Real{})
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Initialize Security
	tokenManager := security.NewTokenManager(
		cfg.Admin.JWTSecret,
		cfg.Admin.Email,
		cfg.Admin.PasswordHash,
		time.Duration(cfg.Admin.TokenTTL)*time.Minute,
		clock.Real{},
	)

	// Set up HTTP server
	router := httpapi.NewRouter(
		httpapi.NewWaitlistHandler(application.Waitlist, application.Applicants),
		httpapi.NewAdminHandler(application.Waitlist, application.Applicants, application.Plots, tokenManager, application.Dispatcher),
		httpapi.NewAuthMiddleware(tokenManager),
	)
	httpServer := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("HTTP server listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Set up gRPC health server
	var pinger grpcapi.Pinger
	if application.DB != nil {
		pinger = application.DB
	}
	monitor := grpcapi.NewHealthMonitor(pinger, 15*time.Second)
	go monitor.Run(ctx)

	grpcServer := grpcapi.NewServer(monitor, tokenManager)
	if cfg.Server.GRPCPort != 0 {
		lis, err := net.Listen("tcp", cfg.GetGRPCAddress())
		if err != nil {
			logger.Error("Failed to listen", "error", err, "address", cfg.GetGRPCAddress())
			log.Fatalf("Failed to listen: %v", err)
		}
		go func() {
			logger.Info("gRPC health server listening", "address", cfg.GetGRPCAddress())
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		logger.Error("Server failed", "error", err)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	monitor.Shutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	grpcServer.GracefulStop()
	if err := application.Close(shutdownCtx); err != nil {
		logger.Error("Application shutdown failed", "error", err)
	}
	logger.Info("Plot Waitlist Backend stopped")
}
