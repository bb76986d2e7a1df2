// Package grpc exposes the standard gRPC health service, which reports
// whether the waitlist datastore is reachable, plus server reflection.
package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"plotwaitlist-backend/internal/api/grpc/interceptor"
	"plotwaitlist-backend/internal/logger"
	"plotwaitlist-backend/internal/security"
)

// ServiceName is the health service key reported for the waitlist backend.
const ServiceName = "plotwaitlist.Waitlist"

// Pinger checks datastore connectivity. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthMonitor keeps the health server's status in step with the datastore.
type HealthMonitor struct {
	server   *health.Server
	pinger   Pinger
	interval time.Duration
}

// NewHealthMonitor creates a monitor. A nil pinger (in-memory store) is
// always reported as serving.
func NewHealthMonitor(pinger Pinger, interval time.Duration) *HealthMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &HealthMonitor{
		server:   health.NewServer(),
		pinger:   pinger,
		interval: interval,
	}
}

func (m *HealthMonitor) Server() *health.Server {
	return m.server
}

// Check pings the datastore once and records the result.
func (m *HealthMonitor) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if m.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := m.pinger.PingContext(pingCtx); err != nil {
			logger.Warn("Datastore health check failed", "error", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	m.server.SetServingStatus("", st)
	m.server.SetServingStatus(ServiceName, st)
	return st
}

// Run re-checks the datastore every interval until ctx is done.
func (m *HealthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Shutdown marks every service NOT_SERVING so clients drain before stop.
func (m *HealthMonitor) Shutdown() {
	m.server.Shutdown()
}

// NewServer builds the gRPC server with health and reflection registered.
func NewServer(monitor *HealthMonitor, tokenManager security.TokenManager) *grpc.Server {
	auth := interceptor.NewAuthInterceptor(tokenManager)
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(interceptor.UnaryLogging(), auth.Unary()),
		grpc.StreamInterceptor(auth.Stream()),
	)

	healthpb.RegisterHealthServer(s, monitor.Server())

	// Register reflection service for grpcurl
	reflection.Register(s)
	return s
}
