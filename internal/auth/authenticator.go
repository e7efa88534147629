// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tomtom215/watchtower/internal/logging"
	"github.com/tomtom215/watchtower/internal/middleware"
	"github.com/tomtom215/watchtower/internal/tokens"
)

// Verifier checks a raw token. *tokens.Ledger implements it.
type Verifier interface {
	Verify(ctx context.Context, raw string, kind tokens.Kind) (*tokens.Claims, error)
}

// ErrorWriter renders an authentication or authorization failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int)

// Authenticator turns bearer access tokens into Subjects.
type Authenticator struct {
	verifier Verifier
}

// NewAuthenticator creates an Authenticator backed by v.
func NewAuthenticator(v Verifier) *Authenticator {
	return &Authenticator{verifier: v}
}

// BearerToken extracts the access token from r. The access_token query
// parameter is honoured only on WebSocket upgrades since browsers cannot
// set headers there.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// Authenticate verifies the request's access token.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*Subject, error) {
	raw := BearerToken(r)
	if raw == "" {
		return nil, ErrNoCredentials
	}
	claims, err := a.verifier.Verify(ctx, raw, tokens.KindAccess)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	return SubjectFromClaims(claims), nil
}

// Identify returns the caller's ID and roles, or "" and nil when the
// request is anonymous or its token does not verify.
func (a *Authenticator) Identify(r *http.Request) (string, []string) {
	if s := GetSubject(r.Context()); s != nil {
		return s.ID, s.Roles
	}
	s, err := a.Authenticate(r.Context(), r)
	if err != nil {
		return "", nil
	}
	return s.ID, s.Roles
}

// Middleware requires a valid access token. A nil onError writes a plain
// "unauthorized" body.
func (a *Authenticator) Middleware(onError ErrorWriter) func(http.Handler) http.Handler {
	if onError == nil {
		onError = plainError
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, err := a.Authenticate(r.Context(), r)
			if err != nil {
				logging.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("Authentication failed")
				onError(w, r, http.StatusUnauthorized)
				return
			}

			r = middleware.SetActor(r, subject.ID)
			ctx := WithSubject(r.Context(), subject)
			ctx = logging.ContextWithActor(ctx, subject.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated subjects lacking every listed role
// with 403. It must run after Middleware.
func RequireRole(onError ErrorWriter, roles ...string) func(http.Handler) http.Handler {
	if onError == nil {
		onError = plainError
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := GetSubject(r.Context())
			if subject == nil {
				onError(w, r, http.StatusUnauthorized)
				return
			}
			if !subject.HasAnyRole(roles...) {
				onError(w, r, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func plainError(w http.ResponseWriter, _ *http.Request, status int) {
	if status == http.StatusForbidden {
		http.Error(w, "forbidden", status)
		return
	}
	http.Error(w, "unauthorized", status)
}
