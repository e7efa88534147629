// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

/*
Package auth authenticates HTTP callers with access tokens issued by the
token ledger.

The Authenticator extracts a bearer token from the Authorization header
(or, for WebSocket upgrades only, the access_token query parameter),
verifies it through a Verifier and produces a Subject. Middleware stores
the Subject in the request context and rejects failures with 401. The
reason for a rejection is logged but never returned to the caller.

	authn := auth.NewAuthenticator(ledger)
	r.With(authn.Middleware(nil)).Post("/api/v1/auth/logout", h.Logout)

Identify adapts the Authenticator to lockdown.IdentifyFunc so the
lockdown gate can recognise administrators without requiring
authentication on every route.
*/
package auth
