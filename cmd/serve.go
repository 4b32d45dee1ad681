package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/watch-buddy/config"
	"github.com/cwrk-planet/watch-buddy/internal/events"
	"github.com/cwrk-planet/watch-buddy/internal/presence"
	"github.com/cwrk-planet/watch-buddy/internal/reaper"
	"github.com/cwrk-planet/watch-buddy/internal/service"
	"github.com/cwrk-planet/watch-buddy/internal/session"
	"github.com/cwrk-planet/watch-buddy/internal/signaling"
	"github.com/cwrk-planet/watch-buddy/internal/telemetry"
	grpcx "github.com/cwrk-planet/watch-buddy/internal/transport/grpc"
	httpx "github.com/cwrk-planet/watch-buddy/internal/transport/http"
	"github.com/cwrk-planet/watch-buddy/internal/transport/ws"

	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/WebSocket and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a.cfg)
		},
	}
}

func newPublisher(cfg *config.Config) (events.Publisher, func(), error) {
	if cfg.NATS.URL == "" {
		return events.Nop{}, func() {}, nil
	}
	nc, err := events.Connect(cfg.NATS.URL, cfg.Logging.Service)
	if err != nil {
		return nil, nil, fmt.Errorf("nats: %w", err)
	}
	return events.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix), func() {
		if err := nc.Drain(); err != nil {
			slog.Warn("nats drain failed", "err", err)
		}
	}, nil
}

func runServe(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting watch-buddy",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version, "store", cfg.Store.Backend)

	// --- telemetry ---
	shutdownOtel, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     cfg.Logging.Version,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(ctx); err != nil {
			slog.Warn("telemetry shutdown failed", "err", err)
		}
	}()
	metrics, err := telemetry.NewMetrics(nil)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- store ---
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()
	if cfg.Store.Migrate {
		if err := st.migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// --- events ---
	pub, closePub, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer closePub()

	// --- services ---
	roomSvc := service.NewRoomService(st.rooms, pub)
	chatSvc := service.NewChatService(st.chat)
	memberSvc := service.NewMemberService(st.members)

	// --- presence, signaling, sessions ---
	registry := presence.NewRegistry()
	coord := session.NewCoordinator(session.Deps{
		Rooms:    roomSvc,
		Chat:     chatSvc,
		Members:  memberSvc,
		Presence: registry,
		Router:   signaling.NewRouter(registry, metrics),
		Events:   pub,
		Metrics:  metrics,
	})
	wsServer := ws.NewServer(coord, ws.Config{
		PingEvery:       cfg.PingEvery(),
		ReadLimit:       cfg.WS.ReadLimit,
		SendBuffer:      cfg.WS.SendBuffer,
		WriteTimeout:    cfg.WriteTimeout(),
		EventsPerSecond: cfg.WS.EventsPerSecond,
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
	}, metrics)

	// --- HTTP ---
	handler := httpx.NewHandler(roomSvc, chatSvc, registry)
	router := httpx.NewRouter(handler, wsServer.HandleWS, httpx.RouterConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Timeout:        cfg.RequestTimeout(),
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// --- gRPC ---
	grpcSrv := grpcx.NewServer(roomSvc, cfg.ProbeEvery(), cfg.CallTimeout())

	// --- background ---
	go reaper.New(roomSvc, cfg.IdleThreshold(), cfg.ReapInterval(), metrics).Run(ctx)
	go grpcSrv.Watch(ctx)

	// --- run both servers ---
	errCh := make(chan error, 2)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go func() {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			errCh <- err
			return
		}
		slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal")
	case runErr = <-errCh:
		slog.Error("server error", "err", runErr)
	}
	stop()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcSrv.Stop(ctxShutdown)
	if err := httpSrv.Shutdown(ctxShutdown); err != nil {
		slog.Warn("http shutdown", "err", err)
	}
	rooms, handles := registry.Stats()
	slog.Info("stopped", "rooms_live", rooms, "connections", handles)
	return runErr
}
