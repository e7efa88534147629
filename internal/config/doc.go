// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

/*
Package config loads Watchtower configuration with Koanf v2.

Sources are layered, later ones overriding earlier ones:

 1. Built-in defaults (structs provider)
 2. A YAML file: $CONFIG_PATH, ./config.yaml, or /etc/watchtower/config.yaml
 3. Environment variables, mapped explicitly (see envMappings)

Comma-separated environment values become lists for CORS_ORIGINS,
WS_ORIGINS, LOCKDOWN_WHITELIST and LOCKDOWN_EXEMPT_PATHS.

# Sections

  - server: listen address and HTTP timeouts
  - logging: zerolog level and format
  - security: token secrets and lifetimes
  - logstore: ring, queue and retention of the log pipeline
  - lockdown: IP allow-list and denial audit throttling
  - authz: extra casbin policy and decision cache
  - storage: Badger and DuckDB locations
  - nats: optional forwarding of log records
  - api: CORS, rate limits, swagger and lockdown-exempt paths

# Minimal environment

	JWT_SECRET=$(openssl rand -base64 48)
	LOCKDOWN_WHITELIST=10.0.0.0/8,192.168.1.10
	CORS_ORIGINS=https://console.example.com
	./watchtower

Validate rejects short secrets, malformed allow-list entries, unknown log
levels and, when ENVIRONMENT=production, wildcard CORS.
*/
package config
