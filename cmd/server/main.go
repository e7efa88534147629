// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/tomtom215/watchtower/docs" // swagger spec
	"github.com/tomtom215/watchtower/internal/api"
	"github.com/tomtom215/watchtower/internal/authz"
	"github.com/tomtom215/watchtower/internal/config"
	"github.com/tomtom215/watchtower/internal/controlplane"
	"github.com/tomtom215/watchtower/internal/lockdown"
	"github.com/tomtom215/watchtower/internal/logging"
	"github.com/tomtom215/watchtower/internal/middleware"
	"github.com/tomtom215/watchtower/internal/supervisor"
	"github.com/tomtom215/watchtower/internal/supervisor/services"
	"github.com/tomtom215/watchtower/internal/tokens"
	ws "github.com/tomtom215/watchtower/internal/websocket"
)

//nolint:gocyclo // sequential setup
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.LoggingInit())

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("addr", cfg.Server.Addr()).
		Bool("in_memory", cfg.Storage.InMemory).
		Msg("Starting Watchtower")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv, err := openBadger(cfg.Storage)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open key-value store")
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing badger")
		}
	}()

	logStore, duck, err := openLogStore(ctx, cfg.Storage)
	if err != nil {
		_ = kv.Close()
		logging.Fatal().Err(err).Msg("Failed to open log store")
	}
	if duck != nil {
		defer func() {
			if err := duck.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing duckdb")
			}
		}()
	}

	publisher, forwarder := initEventBus(cfg.NATS)
	if publisher != nil {
		defer func() {
			if err := publisher.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing NATS publisher")
			}
		}()
	}

	plane, err := controlplane.New(ctx, cfg.ControlPlane(), controlplane.Deps{
		LogStore:      logStore,
		TokenStore:    tokens.NewBadgerStore(kv),
		LockdownStore: lockdown.NewBadgerStore(kv),
		Forwarder:     forwarder,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize control plane")
	}
	// Runs before the store closers above.
	defer func() {
		if err := plane.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing control plane")
		}
	}()

	enforcer, err := authz.NewEnforcer(cfg.Authz)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization")
	}
	defer enforcer.Close()

	hub := ws.NewHub(plane.Logs)
	unsubscribe := plane.Logs.Subscribe(hub.BroadcastLog)
	defer unsubscribe()

	mw := api.DefaultChiMiddlewareConfig()
	mw.CORSAllowedOrigins = cfg.API.CORSOrigins
	mw.RateLimitRequests = cfg.API.RateLimitReqs
	mw.RateLimitWindow = cfg.API.RateLimitWindow
	mw.RateLimitDisabled = cfg.API.RateLimitDisabled

	trusted, err := middleware.ParseTrustedProxies(cfg.API.TrustedProxies)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid trusted proxies")
	}
	if len(cfg.API.TrustedProxies) == 0 {
		logging.Info().Msg("No trusted proxies configured; client IPs come from the connection peer")
	}

	router := api.NewRouter(plane, enforcer, hub, api.RouterConfig{
		Middleware:          mw,
		WebSocketOrigins:    cfg.API.WebSocketOrigins,
		LockdownExemptPaths: cfg.API.LockdownExemptPaths,
		SwaggerEnabled:      cfg.API.SwaggerEnabled,
		TrustedProxies:      trusted,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// === SUPERVISOR TREE ===

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddMaintenanceLoop("log-retention", plane.Logs.RunRetention)
	tree.AddMaintenanceLoop("token-sweep", plane.Tokens.Run)
	tree.AddMessagingService(hub)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout).
		OnDrain(plane.Logs.Flush))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	plane.Logs.Info(ctx, "system", "Watchtower started")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		err = <-errCh
	case err = <-errCh:
		cancel()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	tree.LogUnstopped()
	logging.Info().Msg("Watchtower stopped")
}
