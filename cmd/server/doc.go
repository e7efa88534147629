// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

/*
Package main is the entry point for the Watchtower server.

Watchtower is the security and operational control plane: it keeps an
audited log pipeline, issues and revokes session tokens, and can place the
whole API under lockdown.

# Process Layout

	watchtower
	├── maintenance-layer
	│   ├── log-retention
	│   └── token-sweep
	├── messaging-layer
	│   └── websocket-hub
	└── api-layer
	    └── http-server

Startup order:

 1. Configuration: koanf v2 (defaults, config.yaml, environment)
 2. Logging: zerolog, bridged to slog for the supervisor
 3. Storage: BadgerDB for refresh tokens and lockdown state, DuckDB for log history
 4. Event bus (optional): NATS publisher behind a circuit breaker
 5. Control plane: log pipeline, token ledger, lockdown controller
 6. Authorization: Casbin enforcer
 7. HTTP: chi router, served under the supervisor tree

# Configuration

Required:
  - JWT_SECRET: at least 32 characters; access and refresh keys are derived from it

Common:
  - HTTP_PORT (default 8080)
  - BADGER_PATH, DUCKDB_PATH, STORAGE_IN_MEMORY
  - LOCKDOWN_WHITELIST: IPs or CIDRs that bypass lockdown
  - NATS_ENABLED, NATS_URL
  - CORS_ORIGINS (wildcard is rejected when ENVIRONMENT=production)

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains
in-flight requests, the log pipeline flushes queued records, and the
stores close in reverse order of opening.

# Example

	export JWT_SECRET=$(openssl rand -base64 48)
	export STORAGE_IN_MEMORY=true
	export DUCKDB_PATH=
	./watchtower
*/
package main
