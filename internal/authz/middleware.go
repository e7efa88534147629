// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package authz

import (
	"net/http"

	"github.com/tomtom215/watchtower/internal/auth"
	"github.com/tomtom215/watchtower/internal/logging"
	"github.com/tomtom215/watchtower/internal/metrics"
)

// Authorize enforces the policy for the authenticated subject against the
// request path and method. It must run after auth's Middleware.
func Authorize(e *Enforcer, onError auth.ErrorWriter) func(http.Handler) http.Handler {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, status int) {
			http.Error(w, http.StatusText(status), status)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := auth.GetSubject(r.Context())
			if subject == nil {
				onError(w, r, http.StatusUnauthorized)
				return
			}

			allowed, err := e.EnforceRoles(subject.Roles, r.URL.Path, r.Method)
			if err != nil {
				metrics.AuthzDecisions.WithLabelValues("error").Inc()
				logging.Ctx(r.Context()).Error().Err(err).Msg("Authorization error")
				onError(w, r, http.StatusInternalServerError)
				return
			}
			if !allowed {
				metrics.AuthzDecisions.WithLabelValues("deny").Inc()
				onError(w, r, http.StatusForbidden)
				return
			}

			metrics.AuthzDecisions.WithLabelValues("allow").Inc()
			next.ServeHTTP(w, r)
		})
	}
}
