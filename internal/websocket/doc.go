// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

/*
Package websocket serves the live log channel.

A Hub owns the connected clients and fans out every appended log record
as a new_log message. Each Client runs a read pump that answers requests
and a write pump that drains its send queue and keeps the connection
alive with pings.

Protocol (JSON text frames, {"type": ..., "data": ...}):

	server → client
	  recent_logs    up to 100 newest records, sent once on connect
	  new_log        one record, for every append matching the client's filters
	  subscribed     {"success": true, "filters": {...}}
	  logs_response  {"logs": [...], "total": n}
	  log_stats      per-level aggregates
	  pong           reply to ping
	  error          {"message": "..."}

	client → server
	  subscribe_logs {"filters": {...}}
	  get_logs       {"filters": {...}, "limit": n, "offset": n}
	  get_log_stats
	  ping

Filters use the logstore.Filter JSON shape. A client that never subscribes
receives every new_log.

Wiring:

	hub := websocket.NewHub(pipeline)
	unsubscribe := pipeline.Subscribe(hub.BroadcastLog)
	go hub.RunWithContext(ctx)
	r.Get("/api/v1/ws/logs", websocket.ServeWS(hub, corsOrigins))
*/
package websocket
