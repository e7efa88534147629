// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/watchtower/internal/tokens"
)

var (
	// ErrNoCredentials is returned when the request carries no token.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredentials covers every verification failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Subject is the authenticated caller.
type Subject struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SubjectFromClaims converts verified access claims.
func SubjectFromClaims(c *tokens.Claims) *Subject {
	s := &Subject{
		ID:        c.Subject,
		DeviceID:  c.DeviceID,
		Roles:     append([]string(nil), c.Roles...),
		SessionID: c.ID,
	}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s
}

// HasRole reports whether the subject holds role.
func (s *Subject) HasRole(role string) bool {
	if role == "" {
		return false
	}
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the subject holds at least one of roles.
func (s *Subject) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if s.HasRole(role) {
			return true
		}
	}
	return false
}

type contextKey struct{}

// WithSubject returns a context carrying s.
func WithSubject(ctx context.Context, s *Subject) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// GetSubject returns the authenticated subject, or nil.
func GetSubject(ctx context.Context) *Subject {
	s, ok := ctx.Value(contextKey{}).(*Subject)
	if !ok {
		return nil
	}
	return s
}
