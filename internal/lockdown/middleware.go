// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package lockdown

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/watchtower/internal/logging"
	"github.com/tomtom215/watchtower/internal/middleware"
)

// IdentifyFunc extracts the caller's user ID and roles from a request.
// Anonymous callers return "" and nil.
type IdentifyFunc func(r *http.Request) (userID string, roles []string)

// DefaultExemptPaths stay reachable during a lockdown so admins can see
// and lift it and health checks keep working.
var DefaultExemptPaths = []string{
	"/api/v1/health",
	"/api/v1/lockdown/status",
	"/api/v1/lockdown/lift",
	"/metrics",
}

// DeniedResponse is the 503 body returned to blocked callers.
type DeniedResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Lockdown  bool      `json:"lockdown"`
	Reason    Reason    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Middleware gates requests on ctrl. Exempt paths match exactly or as a
// prefix followed by "/". A nil identify treats every caller as anonymous.
func Middleware(ctrl *Controller, identify IdentifyFunc, exempt ...string) func(http.Handler) http.Handler {
	if len(exempt) == 0 {
		exempt = DefaultExemptPaths
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ctrl.IsActive() || isExempt(r.URL.Path, exempt) {
				next.ServeHTTP(w, r)
				return
			}

			var userID string
			var roles []string
			if identify != nil {
				userID, roles = identify(r)
			}
			decision := ctrl.CheckAccess(r.Context(), AccessRequest{
				UserID:    userID,
				Roles:     roles,
				IPAddress: middleware.ClientIP(r),
				Method:    r.Method,
				Path:      r.URL.Path,
			})
			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}
			writeDenied(w, &decision)
		})
	}
}

func isExempt(path string, exempt []string) bool {
	for _, p := range exempt {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}

func writeDenied(w http.ResponseWriter, d *Decision) {
	if d.RetryAfter > 0 {
		secs := int64(math.Ceil(d.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)

	message := d.Message
	if message == "" {
		message = "System is currently under lockdown"
	}
	body := DeniedResponse{
		Error:     "Service Unavailable",
		Message:   message,
		Lockdown:  true,
		Reason:    d.Reason,
		Timestamp: time.Now().UTC(),
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Failed to encode lockdown response")
	}
}
