// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

/*
Package tokens implements the token ledger: HS256 access/refresh JWT pairs
with a revocable refresh family per jti.

Access tokens are self-contained and checked by signature and expiry only.
Refresh tokens must additionally be live in an in-memory cache and
confirmed by the durable Store (BadgerDB in production). A cache hit the
store cannot confirm is treated as revoked.

Rotation is serialized per jti, so of several concurrent rotations of one
refresh token exactly one succeeds and the rest get ErrTokenRevoked.

Usage:

	ledger, err := tokens.NewLedger(tokens.NewBadgerStore(db), cfg,
		tokens.WithAuditor(pipeline))
	pair, err := ledger.Issue(ctx, userID, deviceID, "ADMIN")
	claims, err := ledger.Verify(ctx, pair.RefreshToken, tokens.KindRefresh)
	next, err := ledger.Rotate(ctx, pair.RefreshToken, "")
*/
package tokens
