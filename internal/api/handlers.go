// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/watchtower/internal/controlplane"
	"github.com/tomtom215/watchtower/internal/validation"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Version is reported by the health endpoint. Set at build time.
var Version = "dev"

// ClientCounter reports connected live-log clients.
type ClientCounter interface {
	GetClientCount() int
}

// Handler serves the control-plane endpoints.
type Handler struct {
	plane     *controlplane.Plane
	clients   ClientCounter
	startTime time.Time
}

// NewHandler creates a handler over plane. clients may be nil.
func NewHandler(plane *controlplane.Plane, clients ClientCounter) *Handler {
	return &Handler{
		plane:     plane,
		clients:   clients,
		startTime: time.Now(),
	}
}

var errEmptyBody = errors.New("request body is empty")

// decodeBody reads a bounded JSON body into dst and validates it. It
// writes the 400 response itself and reports false on failure.
func decodeBody(rw *ResponseWriter, r *http.Request, dst interface{}, allowEmpty bool) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		rw.BadRequest("Failed to read request body")
		return false
	}
	if len(body) > maxBodyBytes {
		rw.BadRequest("Request body too large")
		return false
	}
	if len(body) == 0 {
		if !allowEmpty {
			rw.BadRequest(errEmptyBody.Error())
			return false
		}
	} else if err := json.Unmarshal(body, dst); err != nil {
		rw.BadRequest("Invalid JSON body")
		return false
	}
	return validate(rw, dst)
}

func validate(rw *ResponseWriter, v interface{}) bool {
	if verr := validation.ValidateStruct(v); verr != nil {
		apiErr := verr.ToAPIError()
		var details interface{}
		if len(apiErr.Details) > 0 {
			details = apiErr.Details
		}
		rw.ValidationError(apiErr.Message, details)
		return false
	}
	return true
}
