// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

/*
Package services adapts Watchtower components to suture.Service.

HTTPServerService translates http.Server's ListenAndServe/Shutdown pair
into a context-aware Serve, with drain hooks that run once in-flight
requests have finished. TaskService wraps blocking maintenance loops such
as log retention and the refresh-token sweep.

The websocket hub implements suture.Service directly and needs no wrapper.
*/
package services
