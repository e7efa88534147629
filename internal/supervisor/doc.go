// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

/*
Package supervisor runs Watchtower's long-lived services under a suture v4
supervisor tree.

	watchtower
	├── maintenance-layer
	│   ├── log-retention   (Pipeline.RunRetention)
	│   └── token-sweep     (Ledger.Run)
	├── messaging-layer
	│   └── websocket-hub
	└── api-layer
	    └── http-server     (drains, then flushes the log pipeline)

Each layer restarts independently. Supervisor events are logged through
sutureslog into the process slog logger, which forwards to zerolog.

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddMaintenanceLoop("log-retention", plane.Logs.RunRetention)
	tree.AddMessagingService(hub)
	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Server.ShutdownTimeout))
	err = tree.Serve(ctx)
*/
package supervisor
