// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package middleware

import (
	"context"
	"net/http"

	"github.com/tomtom215/watchtower/internal/logging"
)

// maxRequestIDLength bounds IDs accepted from upstream proxies.
const maxRequestIDLength = 128

// RequestID reuses an upstream X-Request-ID or generates one, echoes it in
// the response and stores it in the logging context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = logging.GenerateRequestID()
		}

		w.Header().Set("X-Request-ID", requestID)
		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID extracts the request ID from context.
func GetRequestID(ctx context.Context) string {
	return logging.RequestIDFromContext(ctx)
}

type actorSlotKey struct{}

// actorSlot lets inner handlers report the authenticated user back to
// outer middleware that logs after the handler returns.
type actorSlot struct {
	userID string
}

// SetActor records the authenticated user on the request. The returned
// request carries the actor in its logging context.
func SetActor(r *http.Request, userID string) *http.Request {
	if slot, ok := r.Context().Value(actorSlotKey{}).(*actorSlot); ok {
		slot.userID = userID
	}
	return r.WithContext(logging.ContextWithActor(r.Context(), userID))
}

func withActorSlot(r *http.Request) (*http.Request, *actorSlot) {
	slot := &actorSlot{}
	return r.WithContext(context.WithValue(r.Context(), actorSlotKey{}, slot)), slot
}
