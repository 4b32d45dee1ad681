package grpcx

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health entry that follows the room store.
const ServiceName = "watchbuddy.Rooms"

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	grpc       *grpc.Server
	health     *health.Server
	store      Pinger
	probeEvery time.Duration
	log        *slog.Logger
}

func NewServer(store Pinger, probeEvery, callTimeout time.Duration) *Server {
	if probeEvery <= 0 {
		probeEvery = 10 * time.Second
	}
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(callTimeout)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	// пока первый probe не прошёл, считаем сервис не готовым
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{
		grpc:       gs,
		health:     hs,
		store:      store,
		probeEvery: probeEvery,
		log:        slog.Default().With("module", "grpc"),
	}
}

func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Watch probes the store until ctx is done and mirrors the result into the
// health service.
func (s *Server) Watch(ctx context.Context) {
	s.Probe(ctx)
	ticker := time.NewTicker(s.probeEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Probe(ctx)
		}
	}
}

func (s *Server) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.probeEvery)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	err := s.store.Ping(ctx)
	if err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
		s.log.WarnContext(ctx, "store probe failed", "err", err)
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
	return err == nil
}

// Stop drains in-flight calls, falling back to a hard stop when ctx expires.
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
}
