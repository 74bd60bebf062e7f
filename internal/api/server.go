package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/miradorstack/mirador-sop/internal/config"
)

// Server owns the gRPC listener, the Categorizer registration and the health service.
type Server struct {
	grpcServer      *grpc.Server
	health          *health.Server
	listener        net.Listener
	gracefulTimeout time.Duration
	logger          *slog.Logger
}

// NewServer binds cfg.Address and registers the Categorizer and health services.
func NewServer(cfg config.ServerConfig, service CategorizerServer, logger *slog.Logger, opts ...grpc.ServerOption) (*Server, error) {
	if service == nil {
		return nil, errors.New("categorizer service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Address, err)
	}

	grpc_prometheus.EnableHandlingTimeHistogram()
	grpcServer := grpc.NewServer(append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	}, opts...)...)

	RegisterCategorizerServer(grpcServer, service)
	grpc_prometheus.Register(grpcServer)

	healthSrv := health.NewServer()
	for _, name := range []string{"", CategorizerServiceName} {
		healthSrv.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	}
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)

	return &Server{
		grpcServer:      grpcServer,
		health:          healthSrv,
		listener:        lis,
		gracefulTimeout: cfg.GracefulTimeout,
		logger:          logger,
	}, nil
}

// Run serves until ctx is cancelled, then drains in-flight runs for at most the
// graceful timeout before forcing the server closed.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("grpc server listening", slog.String("address", s.Address()))
		errCh <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.gracefulTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.Shutdown(shutdownCtx)
	return nil
}

// Shutdown marks the server NOT_SERVING and stops it gracefully, falling back to a
// hard stop when ctx expires.
func (s *Server) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		s.logger.Warn("graceful stop timed out, forcing close")
		s.grpcServer.Stop()
	case <-stopped:
	}
}

// Address exposes the bound listener address.
func (s *Server) Address() string {
	return s.listener.Addr().String()
}
