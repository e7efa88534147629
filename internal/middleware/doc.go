// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

/*
Package middleware provides the HTTP middleware shared by the API router.

Key Components:

  - RequestID: X-Request-ID propagation into the logging context
  - ResolveClientIP/ClientIP: client address; forwarding headers only from trusted proxies
  - SecurityHeaders: restrictive response headers for a JSON API
  - PrometheusMetrics: request counters and latency histograms
  - RequestLog: one log pipeline record per HTTP request

Middleware Stack:

The API router installs them in this order:

	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders)
	r.Use(cors)
	r.Use(rateLimit)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.RequestLog(pipeline))
	r.Use(lockdown.Middleware(controller, identify))

Handlers that authenticate a caller call SetActor so the request log and
any audit entries carry the user ID.
*/
package middleware
