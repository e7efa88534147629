// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/watchtower/internal/logging"
	"github.com/tomtom215/watchtower/internal/logstore"
	"github.com/tomtom215/watchtower/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
	requestTimeout = 10 * time.Second
)

// clientIDCounter orders clients for deterministic broadcast.
var clientIDCounter atomic.Uint64

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	ctx  context.Context

	mu     sync.Mutex
	send   chan Message
	closed bool
	filter *logstore.Filter
}

// NewClient creates a client. ctx carries request-scoped logging values
// and must not be canceled when the upgrade handler returns.
func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		conn: conn,
		ctx:  ctx,
		send: make(chan Message, sendBuffer),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// queue enqueues msg without blocking. It reports false when the queue is
// full or closed.
func (c *Client) queue(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close stops the write pump. Safe to call more than once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) wants(rec *logstore.LogRecord) bool {
	c.mu.Lock()
	f := c.filter
	c.mu.Unlock()
	return f == nil || f.Matches(rec)
}

func (c *Client) setFilter(f logstore.Filter) {
	c.mu.Lock()
	c.filter = &f
	c.mu.Unlock()
}

// readPump reads requests until the connection fails, then unregisters.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.Unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close() // best-effort cleanup
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				metrics.WSErrors.WithLabelValues("unexpected_close").Inc()
				logging.Error().Err(err).Msg("unexpected websocket close error")
			}
			return
		}
		metrics.WSMessagesReceived.Inc()

		if reply, ok := c.handle(data); ok {
			c.queue(reply)
		}
	}
}

// handle answers one request frame. ok is false when no reply is due.
func (c *Client) handle(data []byte) (reply Message, ok bool) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil || req.Type == "" {
		metrics.WSErrors.WithLabelValues("bad_request").Inc()
		return errorMessage("invalid message"), true
	}

	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()

	switch req.Type {
	case RequestPing:
		return Message{Type: MessageTypePong}, true

	case RequestSubscribeLogs:
		var p SubscribePayload
		if !decodePayload(req.Data, &p) || !validFilter(&p.Filters) {
			return errorMessage("invalid filters"), true
		}
		c.setFilter(p.Filters)
		logging.Ctx(ctx).Debug().Uint64("client_id", c.id).Msg("websocket client subscribed to logs")
		return Message{Type: MessageTypeSubscribed, Data: SubscribedPayload{Success: true, Filters: p.Filters}}, true

	case RequestGetLogs:
		var p GetLogsPayload
		if !decodePayload(req.Data, &p) || !validFilter(&p.Filters) {
			return errorMessage("invalid filters"), true
		}
		if p.Limit <= 0 {
			p.Limit = logstore.DefaultPageLimit
		}
		res, err := c.hub.source.GetLogs(ctx, p.Filters, logstore.Page{Limit: p.Limit, Offset: p.Offset})
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("websocket get_logs failed")
			return errorMessage("Failed to fetch logs"), true
		}
		if res.Logs == nil {
			res.Logs = []logstore.LogRecord{}
		}
		return Message{Type: MessageTypeLogsResponse, Data: res}, true

	case RequestGetLogStats:
		stats, err := c.hub.source.GetLogStats(ctx)
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("websocket get_log_stats failed")
			return errorMessage("Failed to fetch log stats"), true
		}
		return Message{Type: MessageTypeLogStats, Data: stats}, true

	default:
		metrics.WSErrors.WithLabelValues("unknown_type").Inc()
		return errorMessage("unknown message type"), true
	}
}

// decodePayload accepts an absent payload as the zero value.
func decodePayload(raw json.RawMessage, v interface{}) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return true
	}
	return json.Unmarshal(raw, v) == nil
}

func validFilter(f *logstore.Filter) bool {
	if f.Level == "" {
		return true
	}
	level, err := logstore.ParseLevel(string(f.Level))
	if err != nil {
		return false
	}
	f.Level = level
	return true
}

// writePump drains the send queue and pings the peer.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // best-effort cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				// The hub closed the channel.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Debug().Err(err).Msg("failed to write close message")
				}
				return
			}

			data, err := MarshalMessage(message)
			if err != nil {
				metrics.WSErrors.WithLabelValues("marshal").Inc()
				logging.Error().Err(err).Str("type", message.Type).Msg("failed to marshal websocket message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				metrics.WSErrors.WithLabelValues("write").Inc()
				logging.Debug().Err(err).Msg("failed to write websocket message")
				return
			}
			metrics.WSMessagesSent.Inc()

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
