// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package websocket

import (
	"github.com/goccy/go-json"

	"github.com/tomtom215/watchtower/internal/logstore"
)

// Outbound message types.
const (
	MessageTypeRecentLogs   = "recent_logs"
	MessageTypeNewLog       = "new_log"
	MessageTypeSubscribed   = "subscribed"
	MessageTypeLogsResponse = "logs_response"
	MessageTypeLogStats     = "log_stats"
	MessageTypePong         = "pong"
	MessageTypeError        = "error"
)

// Inbound request types.
const (
	RequestSubscribeLogs = "subscribe_logs"
	RequestGetLogs       = "get_logs"
	RequestGetLogStats   = "get_log_stats"
	RequestPing          = "ping"
)

// RecentLogsOnConnect is the size of the recent_logs greeting.
const RecentLogsOnConnect = 100

// Message is a server-to-client frame.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Request is a client-to-server frame. Data is decoded per Type.
type Request struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SubscribePayload is the data of subscribe_logs.
type SubscribePayload struct {
	Filters logstore.Filter `json:"filters"`
}

// SubscribedPayload acknowledges subscribe_logs.
type SubscribedPayload struct {
	Success bool            `json:"success"`
	Filters logstore.Filter `json:"filters"`
}

// GetLogsPayload is the data of get_logs.
type GetLogsPayload struct {
	Filters logstore.Filter `json:"filters"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ErrorPayload is the data of error.
type ErrorPayload struct {
	Message string `json:"message"`
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

func errorMessage(text string) Message {
	return Message{Type: MessageTypeError, Data: ErrorPayload{Message: text}}
}
