// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package lockdown

import "errors"

var (
	// ErrLockdownConflict is returned by Initiate while a lockdown is active.
	ErrLockdownConflict = errors.New("lockdown already active")

	// ErrLockdownNotActive is returned by Lift when the system is not locked.
	ErrLockdownNotActive = errors.New("lockdown not active")

	// ErrInvalidOptions covers an empty reason or a negative duration.
	ErrInvalidOptions = errors.New("invalid lockdown options")
)
