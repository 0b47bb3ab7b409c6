// Package grpc runs the gRPC side of the server: the standard health
// service, reporting whether the account store answers, and server
// reflection for authenticated callers.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is reported by the health service alongside the overall ("")
// status.
const ServiceName = "gophauth.Accounts"

const defaultProbeInterval = 10 * time.Second

// StoreProbe reports whether the account store is reachable.
type StoreProbe func(ctx context.Context) error

type GRPCServer struct {
	address       string
	guard         *auth.Guard
	probe         StoreProbe
	probeInterval time.Duration
	logger        logging.Logger
	health        *health.Server
}

// NewGRPCServer returns a server listening on address. probe may be nil, in
// which case the service is always reported as serving.
func NewGRPCServer(address string, l logging.Logger, guard *auth.Guard, probe StoreProbe) *GRPCServer {
	return &GRPCServer{
		address:       address,
		guard:         guard,
		probe:         probe,
		probeInterval: defaultProbeInterval,
		logger:        l.With("module", "grpc_server"),
		health:        health.NewServer(),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(s.accessTokenStreamInterceptor),
	)

	healthpb.RegisterHealthServer(srv, s.health)
	reflection.Register(srv)

	return srv
}

// Run serves until ctx is cancelled, then stops gracefully.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go s.watchStore(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

// watchStore keeps the health status in line with the store probe.
func (s *GRPCServer) watchStore(ctx context.Context) {
	s.checkStore(ctx)

	if s.probe == nil {
		return
	}

	ticker := time.NewTicker(s.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkStore(ctx)
		}
	}
}

func (s *GRPCServer) checkStore(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING

	if s.probe != nil {
		pctx, cancel := context.WithTimeout(ctx, s.probeInterval)
		err := s.probe(pctx)
		cancel()

		if err != nil && ctx.Err() == nil {
			s.logger.Warn(ctx, "account store probe failed", "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
