// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package api

import (
	"net/http"
	"time"
)

// HealthStatus is the health endpoint payload.
type HealthStatus struct {
	Status           string  `json:"status"`
	Version          string  `json:"version"`
	Uptime           float64 `json:"uptime"`
	LockdownActive   bool    `json:"lockdownActive"`
	LogSubscribers   int     `json:"logSubscribers"`
	WebSocketClients int     `json:"websocketClients"`
}

// Health handles health check requests. It stays reachable during a
// lockdown and reports "locked" instead of "healthy" while one is active.
//
// @Summary Get system health status
// @Description Returns uptime, lockdown state and live-channel counts
// @Tags Core
// @Produce json
// @Success 200 {object} APIResponse{data=HealthStatus} "Health status retrieved successfully"
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	locked := h.plane.Lockdown.IsActive()
	status := "healthy"
	if locked {
		status = "locked"
	}

	health := HealthStatus{
		Status:         status,
		Version:        Version,
		Uptime:         time.Since(h.startTime).Seconds(),
		LockdownActive: locked,
		LogSubscribers: h.plane.Logs.SubscriberCount(),
	}
	if h.clients != nil {
		health.WebSocketClients = h.clients.GetClientCount()
	}

	NewResponseWriter(w, r).Success(health)
}
