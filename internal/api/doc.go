// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

/*
Package api exposes the control plane over HTTP using the Chi router.

Routes (all under /api/v1 unless noted):

	GET  /health                   liveness and lockdown summary
	GET  /lockdown/status          current lockdown state
	POST /lockdown/initiate        start a lockdown (admin)
	POST /lockdown/lift            end a lockdown (admin)
	GET  /logs                     filtered, paginated history (admin)
	GET  /logs/stats               per-level counts for the last 24h (admin)
	POST /logs/search              substring search (admin)
	POST /logs/export              CSV or JSON download (admin)
	POST /auth/refresh             rotate a refresh token
	POST /auth/logout              revoke a token family
	POST /auth/revoke-all/{userID} revoke every session of a user (admin)
	GET  /ws/logs                  live log channel (admin)
	GET  /metrics                  Prometheus exposition (root)
	GET  /swagger/*                API documentation (root)

Global middleware runs in this order: request ID, panic recovery,
security headers, CORS, per-IP rate limit, Prometheus metrics, request
logging into the log pipeline, lockdown gate. Authenticated routes then
verify the bearer access token and consult the casbin policy.

JSON responses use the APIResponse envelope. Credential failures are
always 401 with the message "unauthorized". Requests blocked by a
lockdown receive the lockdown package's 503 body instead of the envelope.
*/
package api
