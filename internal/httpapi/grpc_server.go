package httpapi

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type readinessChecker interface {
	Check(ctx context.Context) error
}

// GRPCServer publishes readiness through the standard gRPC health service.
// The overall status and the per-service entry follow the same probe as
// /readyz.
type GRPCServer struct {
	health    *health.Server
	readiness readinessChecker
	interval  time.Duration
	logger    *zap.Logger
}

// NewGRPCServer creates the health service wrapper. A zero interval
// defaults to five seconds.
func NewGRPCServer(r readinessChecker, interval time.Duration, logger *zap.Logger) *GRPCServer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &GRPCServer{
		health:    health.NewServer(),
		readiness: r,
		interval:  interval,
		logger:    logger,
	}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Register attaches the health service to srv.
func (s *GRPCServer) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, s.health)
}

// Refresh runs the readiness probe once and publishes the result.
func (s *GRPCServer) Refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if s.readiness == nil {
		s.setStatus(healthpb.HealthCheckResponse_SERVING)
		return
	}
	if err := s.readiness.Check(ctx); err != nil {
		s.logger.Warn("grpc health: not ready", zap.Error(err))
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
}

// Watch refreshes readiness until ctx is done, then marks the server as
// shutting down.
func (s *GRPCServer) Watch(ctx context.Context) {
	s.Refresh(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

func (s *GRPCServer) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(serviceName, st)
}
