// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/watchtower/internal/auth"
	"github.com/tomtom215/watchtower/internal/logging"
	"github.com/tomtom215/watchtower/internal/tokens"
)

// RevokeAllResult is the payload of POST /auth/revoke-all/{userID}.
type RevokeAllResult struct {
	UserID  string `json:"userId"`
	Revoked int    `json:"revoked"`

	// Persisted is false when the durable store rejected the revocation.
	// The sessions are still refused by this process.
	Persisted bool `json:"persisted"`
}

// isTokenError reports whether err describes a bad credential rather
// than an internal failure.
func isTokenError(err error) bool {
	return errors.Is(err, tokens.ErrInvalidToken) ||
		errors.Is(err, tokens.ErrTokenExpired) ||
		errors.Is(err, tokens.ErrTokenRevoked) ||
		errors.Is(err, tokens.ErrRecordNotFound)
}

// RefreshToken rotates a refresh token into a new pair. The old token is
// unusable afterwards.
//
// @Summary Rotate a refresh token
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} APIResponse{data=tokens.Pair}
// @Failure 400 {object} APIResponse "Validation failed"
// @Failure 401 {object} APIResponse "Unauthorized"
// @Router /auth/refresh [post]
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req RefreshRequest
	if !decodeBody(rw, r, &req, false) {
		return
	}

	pair, err := h.plane.Tokens.Rotate(r.Context(), req.RefreshToken, req.DeviceID)
	switch {
	case err == nil:
		rw.Success(pair)
	case isTokenError(err):
		rw.Unauthorized()
	default:
		rw.InternalError("Failed to rotate token", err)
	}
}

// Logout revokes the given refresh token, or the bearer token's own
// family when the body is empty.
//
// @Summary Revoke a session
// @Tags Auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body LogoutRequest false "Refresh token to revoke"
// @Success 200 {object} APIResponse
// @Failure 401 {object} APIResponse "Unauthorized"
// @Failure 403 {object} APIResponse "Token belongs to another user"
// @Router /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	subject := auth.GetSubject(r.Context())
	if subject == nil {
		rw.Unauthorized()
		return
	}

	var req LogoutRequest
	if !decodeBody(rw, r, &req, true) {
		return
	}
	raw := req.RefreshToken
	if raw == "" {
		raw = auth.BearerToken(r)
	}

	if err := h.plane.Tokens.RevokeOwned(r.Context(), raw, subject.ID); err != nil {
		if errors.Is(err, tokens.ErrTokenNotOwned) {
			rw.Forbidden("token belongs to another user")
			return
		}
		if isTokenError(err) {
			rw.Unauthorized()
			return
		}
		rw.InternalError("Failed to revoke token", err)
		return
	}
	rw.Success(map[string]bool{"revoked": true})
}

// RevokeAll signs a user out of every device.
//
// @Summary Revoke every session of a user
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Success 200 {object} APIResponse{data=RevokeAllResult}
// @Failure 401 {object} APIResponse "Unauthorized"
// @Failure 403 {object} APIResponse "Forbidden"
// @Router /auth/revoke-all/{userID} [post]
func (h *Handler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		rw.BadRequest("userID is required")
		return
	}

	n, err := h.plane.Tokens.RevokeAll(r.Context(), userID)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("user_id", userID).Msg("Revocation not persisted")
	}
	rw.Success(RevokeAllResult{UserID: userID, Revoked: n, Persisted: err == nil})
}
