// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

/*
Package lockdown implements the global lockdown state machine.

States are Normal and Locked. Initiate moves Normal to Locked and fails
with ErrLockdownConflict otherwise; Lift moves Locked to Normal and fails
with ErrLockdownNotActive otherwise. The active Config is persisted as a
single row (BadgerDB key "lockdown:config") and restored at startup with
its auto-lift timer re-armed for the remaining time.

While locked, CheckAccess allows admins (when the lockdown permits it) and
allow-listed addresses, and denies everyone else with the lockdown's reason
and message. Admin bypasses and denials are audited to the log pipeline;
denial entries are throttled per client IP.

Middleware turns denials into 503 responses:

	r.Use(lockdown.Middleware(ctrl, identify))
*/
package lockdown
