// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package tokens

import "errors"

var (
	// ErrInvalidToken covers malformed tokens, bad signatures and wrong kinds.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired means the token is past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked means the refresh family is revoked, rotated away, or
	// cannot be confirmed by the durable store.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrTokenNotOwned means the token belongs to a different user.
	ErrTokenNotOwned = errors.New("token belongs to another user")

	// ErrRecordNotFound is returned by stores for unknown jtis.
	ErrRecordNotFound = errors.New("refresh record not found")

	// ErrStoreClosed is returned by a closed store.
	ErrStoreClosed = errors.New("token store is closed")
)
