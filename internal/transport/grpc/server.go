// Package grpcx exposes the standard grpc.health.v1 service for orchestrators.
package grpcx

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/cwrk-planet/call-service/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is reported next to the overall ("") status.
const ServiceName = "call-service"

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	addr   string
	gs     *grpc.Server
	health *health.Server
	ln     net.Listener
}

func New(addr string) *Server {
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(10*time.Second)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{addr: addr, gs: gs, health: hs}
}

// Start listens and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.ln = ln
	slog.InfoContext(ctx, "grpc listening", "addr", ln.Addr().String())
	go func() {
		if err := s.gs.Serve(ln); err != nil {
			slog.Error("grpc serve stopped", logger.Err(err))
		}
	}()
	return nil
}

// Addr is the bound address once Start returned.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

func (s *Server) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Watch flips the status with the result of p.Ping every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, p Pinger, every time.Duration) {
	check := func() {
		pctx, cancel := context.WithTimeout(ctx, every)
		defer cancel()

		err := p.Ping(pctx)
		if err != nil && ctx.Err() == nil {
			slog.Warn("grpc health: store ping failed", logger.Err(err))
		}
		s.SetServing(err == nil)
	}

	check()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			check()
		}
	}
}

// Stop reports NOT_SERVING to watchers, then stops gracefully, forcing after the timeout.
func (s *Server) Stop(timeout time.Duration) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		slog.Error("grpc graceful stop timeout; forcing stop")
		s.gs.Stop()
	}

	slog.Info("grpc stopped")
}
