// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	actorKey     contextKey = "actor"
)

// GenerateRequestID creates a new request ID.
func GenerateRequestID() string {
	return uuid.New().String()
}

// ContextWithRequestID returns a context carrying the request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID, or "" when absent.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithActor records the authenticated subject acting in this request.
func ContextWithActor(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, actorKey, subject)
}

// ActorFromContext returns the authenticated subject, or "" when absent.
func ActorFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(actorKey).(string); ok {
		return s
	}
	return ""
}

// Ctx returns the global logger with request_id and actor attached when present.
//
//	logging.Ctx(ctx).Info().Msg("Lockdown lifted")
func Ctx(ctx context.Context) *zerolog.Logger {
	lc := Logger().With()
	if id := RequestIDFromContext(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}
	if actor := ActorFromContext(ctx); actor != "" {
		lc = lc.Str("actor", actor)
	}
	l := lc.Logger()
	return &l
}

// WithComponent creates a child logger tagged with a component name.
//
//	log := logging.WithComponent("tokens")
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
