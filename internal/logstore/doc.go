// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

/*
Package logstore is the control plane's log pipeline.

Every security-relevant event (lockdown transitions, token rotation, denied
access, HTTP requests) is appended here. A record goes to three places:

  - a fixed-capacity ring holding the newest N records (Recent)
  - a background writer that persists it to a Store (GetLogs, GetLogStats,
    Search, Export read from the store)
  - every subscriber registered before the Append call

Durability is best-effort. The write queue is bounded; when it is full the
newest record is not persisted (it still reaches the ring and subscribers)
and watchtower_log_write_queue_dropped_total is incremented. A failed Save
is logged through internal/logging and counted, and a restart after such a
failure loses that record.

Each subscriber has its own goroutine and bounded queue. A slow subscriber
loses its oldest queued records rather than delaying Append or other
subscribers.

Stores:

  - DuckDBStore: system_logs table, production
  - MemoryStore: tests and development
*/
package logstore
