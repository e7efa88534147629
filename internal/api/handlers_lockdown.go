// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/watchtower/internal/auth"
	"github.com/tomtom215/watchtower/internal/controlplane"
	"github.com/tomtom215/watchtower/internal/lockdown"
)

// LockdownStatus is the payload of GET /lockdown/status.
type LockdownStatus struct {
	IsActive bool             `json:"isActive"`
	Config   *lockdown.Config `json:"config,omitempty"`
}

// LockdownStatus reports whether a lockdown is active.
//
// @Summary Get lockdown status
// @Tags Lockdown
// @Produce json
// @Success 200 {object} APIResponse{data=LockdownStatus}
// @Router /lockdown/status [get]
func (h *Handler) LockdownStatus(w http.ResponseWriter, r *http.Request) {
	cfg := h.plane.Lockdown.CurrentConfig()
	NewResponseWriter(w, r).Success(LockdownStatus{IsActive: cfg != nil, Config: cfg})
}

// InitiateLockdown starts a lockdown on behalf of the calling admin.
//
// @Summary Initiate a lockdown
// @Description Blocks non-exempt traffic until lifted or until the estimated duration elapses. Security incidents also sign out the listed users.
// @Tags Lockdown
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body InitiateLockdownRequest true "Lockdown parameters"
// @Success 201 {object} APIResponse{data=controlplane.InitiateResult}
// @Failure 400 {object} APIResponse "Validation failed"
// @Failure 401 {object} APIResponse "Unauthorized"
// @Failure 403 {object} APIResponse "Forbidden"
// @Failure 409 {object} APIResponse "Lockdown already active"
// @Router /lockdown/initiate [post]
func (h *Handler) InitiateLockdown(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	subject := auth.GetSubject(r.Context())
	if subject == nil {
		rw.Unauthorized()
		return
	}

	var req InitiateLockdownRequest
	if !decodeBody(rw, r, &req, false) {
		return
	}

	result, err := h.plane.InitiateLockdown(r.Context(), controlplane.InitiateRequest{
		Reason:      lockdown.Reason(req.Reason),
		InitiatedBy: subject.ID,
		Options: lockdown.Options{
			EstimatedDuration: time.Duration(req.EstimatedDurationMs) * time.Millisecond,
			AffectedServices:  req.AffectedServices,
			AllowAdminAccess:  req.AllowAdminAccess,
			CustomMessage:     req.CustomMessage,
		},
	}, req.RevokeUsers...)
	switch {
	case err == nil:
		rw.Created(result)
	case errors.Is(err, lockdown.ErrLockdownConflict):
		rw.Conflict(ErrCodeLockdownActive, "A lockdown is already active")
	case errors.Is(err, lockdown.ErrInvalidOptions):
		rw.ValidationError(err.Error(), nil)
	default:
		rw.InternalError("Failed to initiate lockdown", err)
	}
}

// LiftLockdown ends the active lockdown.
//
// @Summary Lift the active lockdown
// @Tags Lockdown
// @Produce json
// @Security BearerAuth
// @Success 200 {object} APIResponse{data=LockdownStatus}
// @Failure 401 {object} APIResponse "Unauthorized"
// @Failure 403 {object} APIResponse "Forbidden"
// @Failure 404 {object} APIResponse "No lockdown is active"
// @Router /lockdown/lift [post]
func (h *Handler) LiftLockdown(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	subject := auth.GetSubject(r.Context())
	if subject == nil {
		rw.Unauthorized()
		return
	}

	err := h.plane.LiftLockdown(r.Context(), subject.ID)
	switch {
	case err == nil:
		rw.Success(LockdownStatus{IsActive: false})
	case errors.Is(err, lockdown.ErrLockdownNotActive):
		rw.NotFound(ErrCodeLockdownNotActive, "No lockdown is active")
	default:
		rw.InternalError("Failed to lift lockdown", err)
	}
}
