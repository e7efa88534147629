// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

// Package eventbus forwards persisted log records to NATS through Watermill
// so other services can react to security events. Publishing goes through
// a circuit breaker; a failing bus never blocks or fails the log pipeline.
package eventbus
