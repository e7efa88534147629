// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

// @title Watchtower API
// @version 1.0
// @description Security and operational control plane: audit logs, session tokens and emergency lockdown.
// @description
// @description ## Authentication
// @description
// @description Protected endpoints require `Authorization: Bearer <access token>`.
// @description Refresh tokens are exchanged at `/auth/refresh`; each refresh token is single-use.
// @description
// @description ## Lockdown
// @description
// @description While a lockdown is active, non-exempt requests from callers that are neither
// @description administrators (when admin access is allowed) nor on the allow-list receive
// @description `503` with a `Retry-After` header.
// @description
// @description ## Rate Limiting
// @description
// @description Default rate limit: 100 requests per minute per client IP. Authentication and export
// @description endpoints are limited to 10 requests per minute.
//
// @contact.name Watchtower
// @contact.url https://github.com/tomtom215/watchtower
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @BasePath /api/v1
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer access token
//
// @tag.name health
// @tag.name lockdown
// @tag.name logs
// @tag.name auth
package main
