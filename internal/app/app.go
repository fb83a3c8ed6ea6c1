// Package app assembles the coordinator from configuration and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/cwrk-planet/call-service/config"
	"github.com/cwrk-planet/call-service/internal/membership"
	"github.com/cwrk-planet/call-service/internal/registry"
	"github.com/cwrk-planet/call-service/internal/security"
	"github.com/cwrk-planet/call-service/internal/service"
	"github.com/cwrk-planet/call-service/internal/storage"
	grpcx "github.com/cwrk-planet/call-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/call-service/internal/transport/http"
	"github.com/cwrk-planet/call-service/internal/transport/ws"
	"github.com/cwrk-planet/call-service/pkg/logger"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg *config.Config
	log *slog.Logger

	Store   storage.Store
	Conns   *registry.Registry
	Rooms   *service.RoomService
	Chat    *service.ChatService
	Mentors *service.MentorService

	http   *httpx.Server
	grpc   *grpcx.Server            // nil when grpc.addr is empty
	traces *sdktrace.TracerProvider // nil unless logging.tracing
}

// NewSigner builds the token signer; without a configured secret a random one is used,
// so tokens do not survive a restart.
func NewSigner(cfg config.Auth, log *slog.Logger) (*security.TokenSigner, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		var err error
		if secret, err = security.RandomSecret(32); err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		log.Warn("auth.jwtSecret is empty, using a random secret for this process")
	}
	return security.NewTokenSigner(secret, cfg.Issuer, cfg.TokenTTL, cfg.ClockSkew), nil
}

// New opens the store and wires every component. Run owns the store from then on.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	store, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	signer, err := NewSigner(cfg.Auth, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	table := membership.New(cfg.Rooms.Capacity)
	conns := registry.New()

	rooms, err := service.NewRoomService(table, conns, log.With(logger.KeyComponent, "rooms"))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	signals := service.NewSignalService(table, conns, log.With(logger.KeyComponent, "signal"))
	chat := service.NewChatService(store, table, conns, cfg.Rooms.MaxMessageLength, log.With(logger.KeyComponent, "chat"))
	mentors := service.NewMentorService(store, signer, cfg.Auth.BcryptCost, log.With(logger.KeyComponent, "mentors"))

	var tokens ws.TokenParser
	if cfg.Auth.JWTSecret != "" {
		tokens = signer
	}
	wsSrv := ws.NewServer(conns, rooms, signals, chat, tokens, ws.Options{
		PingEvery:      cfg.WS.PingEvery,
		WriteWait:      cfg.WS.WriteWait,
		MaxMessageSize: cfg.WS.MaxMessageSize,
		SendBuffer:     cfg.WS.SendBuffer,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RequireToken:   cfg.Auth.RequireToken,
	}, log.With(logger.KeyComponent, "ws"))

	handler := httpx.NewHandler(rooms, chat, mentors, store)
	router := httpx.NewRouter(handler, wsSrv.HandleWS, httpx.RouterConfig{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RequestTimeout: cfg.HTTP.WriteTimeout,
	})

	a := &App{
		cfg:     cfg,
		log:     log,
		Store:   store,
		Conns:   conns,
		Rooms:   rooms,
		Chat:    chat,
		Mentors: mentors,
		http: httpx.NewServer(httpx.Config{
			Addr:            cfg.HTTP.Addr,
			ReadTimeout:     cfg.HTTP.ReadTimeout,
			WriteTimeout:    cfg.HTTP.WriteTimeout,
			IdleTimeout:     cfg.HTTP.IdleTimeout,
			ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		}, router),
	}
	if cfg.GRPC.Addr != "" {
		a.grpc = grpcx.New(cfg.GRPC.Addr)
	}
	if cfg.Logging.Tracing {
		// no exporter: spans only mint ids for log correlation
		a.traces = sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
		otel.SetTracerProvider(a.traces)
	}
	return a, nil
}

// Run serves until ctx is cancelled or a listener fails. Remaining websockets leave
// their rooms before the store is closed. httpLn may be nil to listen on cfg.HTTP.Addr.
func (a *App) Run(ctx context.Context, httpLn net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.grpc != nil {
		if err := a.grpc.Start(gctx); err != nil {
			a.Conns.Close()
			_ = a.Store.Close()
			if a.traces != nil {
				_ = a.traces.Shutdown(context.Background())
			}
			return fmt.Errorf("grpc listen: %w", err)
		}
		g.Go(func() error {
			a.grpc.Watch(gctx, a.Store, 10*time.Second)
			return nil
		})
	}

	g.Go(func() error {
		a.log.Info("http listening", "addr", a.cfg.HTTP.Addr)
		return a.http.Run(gctx, httpLn)
	})

	<-gctx.Done()
	a.log.Info("shutting down")

	if a.grpc != nil {
		a.grpc.Stop(a.cfg.HTTP.ShutdownTimeout)
	}
	err := g.Wait()

	a.Conns.Close()
	if cerr := a.Store.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close store: %w", cerr))
	}
	if a.traces != nil {
		if terr := a.traces.Shutdown(context.Background()); terr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown tracer provider: %w", terr))
		}
	}

	a.log.Info("stopped")
	return err
}
