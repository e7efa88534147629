// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package websocket

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/watchtower/internal/logging"
	"github.com/tomtom215/watchtower/internal/metrics"
)

// NewUpgrader returns an upgrader accepting only allowedOrigins ("*"
// allows any). Requests without an Origin header are rejected since
// browsers always send one.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			return checkOrigin(r.Header.Get("Origin"), allowedOrigins)
		},
	}
}

func checkOrigin(origin string, allowed []string) bool {
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	logging.Warn().Str("origin", logging.SanitizeValue("origin", origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// ServeWS upgrades the request, greets the client with recent_logs and
// hands it to the hub. The hub must be running.
func ServeWS(hub *Hub, allowedOrigins []string) http.HandlerFunc {
	upgrader := NewUpgrader(allowedOrigins)
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			metrics.WSErrors.WithLabelValues("upgrade").Inc()
			logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade error")
			return
		}

		// The request context ends when this handler returns.
		ctx := context.WithoutCancel(r.Context())
		client := NewClient(ctx, hub, conn)

		greetCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		client.queue(Message{Type: MessageTypeRecentLogs, Data: hub.recentLogs(greetCtx)})
		cancel()

		select {
		case hub.Register <- client:
			client.Start()
		case <-hub.done:
			_ = conn.Close()
		}
	}
}
