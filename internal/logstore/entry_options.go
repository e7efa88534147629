// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package logstore

import "time"

// EntryOption sets optional fields on the convenience wrappers.
type EntryOption func(*Entry)

// WithAction sets the action tag.
func WithAction(action string) EntryOption {
	return func(e *Entry) { e.Action = action }
}

// WithUser sets the acting user.
func WithUser(userID string) EntryOption {
	return func(e *Entry) { e.UserID = userID }
}

// WithClient sets the client address and user agent.
func WithClient(ip, userAgent string) EntryOption {
	return func(e *Entry) {
		e.IPAddress = ip
		e.UserAgent = userAgent
	}
}

// WithRequest sets the HTTP method and path.
func WithRequest(method, path string) EntryOption {
	return func(e *Entry) {
		e.Method = method
		e.Path = path
	}
}

// WithResponse sets the HTTP status and latency.
func WithResponse(status int, elapsed time.Duration) EntryOption {
	return func(e *Entry) {
		e.StatusCode = status
		e.ResponseTimeMs = elapsed.Milliseconds()
	}
}

// WithMeta adds one metadata value.
func WithMeta(key string, v Value) EntryOption {
	return func(e *Entry) {
		if e.Metadata == nil {
			e.Metadata = Metadata{}
		}
		e.Metadata[key] = v
	}
}

func buildEntry(level Level, module, message string, opts []EntryOption) Entry {
	e := Entry{Level: level, Module: module, Message: message}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}
