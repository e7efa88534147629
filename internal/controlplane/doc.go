// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

// Package controlplane composes the log pipeline, the token ledger and the
// lockdown controller into one explicitly owned Plane.
//
// A Plane is constructed once at process start and handed to every
// consumer. Nothing in this module is reachable through package globals:
// the ledger and the controller audit into the plane's own pipeline, and
// HTTP handlers receive the plane by injection.
//
//	plane, err := controlplane.New(ctx, cfg, controlplane.Deps{
//	    LogStore:      logstore.NewDuckDBStore(db),
//	    TokenStore:    tokens.NewBadgerStore(kv),
//	    LockdownStore: lockdown.NewBadgerStore(kv),
//	})
//	defer plane.Close()
package controlplane
