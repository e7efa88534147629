// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

// Package authz decides which roles may call which routes using a Casbin
// RBAC model over request paths and HTTP methods.
//
// The model and default policy are compiled in. Extra policy lines in the
// same "p, role, path, methods" / "g, role, parent" format may be supplied
// through Config.ExtraPolicy. Paths use keyMatch2 patterns (":id" and "*")
// and methods a regular expression such as "(GET)|(POST)".
//
// ADMIN inherits every USER permission.
package authz
