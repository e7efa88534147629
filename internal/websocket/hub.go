// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/watchtower/internal/logging"
	"github.com/tomtom215/watchtower/internal/logstore"
	"github.com/tomtom215/watchtower/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

const broadcastBuffer = 256

// LogSource answers client queries. *logstore.Pipeline implements it.
type LogSource interface {
	Recent(n int) []logstore.LogRecord
	GetLogs(ctx context.Context, filter logstore.Filter, page logstore.Page) (logstore.Result, error)
	GetLogStats(ctx context.Context) ([]logstore.LevelStats, error)
}

// Hub maintains the set of active clients and fans out new log records.
type Hub struct {
	source     LogSource
	clients    map[*Client]bool
	broadcast  chan logstore.LogRecord
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	// done is closed once the hub has shut down so pumps stop waiting on
	// Register and Unregister.
	done     chan struct{}
	doneOnce sync.Once
}

// NewHub creates a Hub answering queries from source.
func NewHub(source LogSource) *Hub {
	return &Hub{
		source:     source,
		broadcast:  make(chan logstore.LogRecord, broadcastBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
	}
}

// RunWithContext runs the hub until ctx ends, then closes every client.
//
// Shutdown is checked first, then client lifecycle events, then
// broadcasts, so client state is settled before a record is delivered.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case rec := <-h.broadcast:
			h.broadcastToClients(&rec)
		}
	}
}

// Serve implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	return h.RunWithContext(ctx)
}

// String names the service in supervisor logs.
func (h *Hub) String() string {
	return "websocket-hub"
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logging.Info().Uint64("client_id", client.id).Int("total_clients", n).Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.close()
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logging.Info().Uint64("client_id", client.id).Int("total_clients", n).Msg("websocket client disconnected")
}

// logGracefulShutdown closes all clients and logs why. ctx.Err() is not
// logged as an error since cancellation is the expected shutdown path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()
	h.doneOnce.Do(func() { close(h.done) })

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// sortedClients returns the clients in ID order. Caller holds h.mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToClients delivers rec to every client whose filter matches,
// in client ID order. Clients whose queue is full are disconnected.
func (h *Hub) broadcastToClients(rec *logstore.LogRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	message := Message{Type: MessageTypeNewLog, Data: rec}
	var toRemove []*Client
	for _, client := range h.sortedClients() {
		if !client.wants(rec) {
			continue
		}
		if !client.queue(message) {
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		metrics.WSErrors.WithLabelValues("slow_client").Inc()
		logging.Warn().Uint64("client_id", client.id).Msg("websocket client too slow, disconnecting")
		client.close()
		delete(h.clients, client)
	}
	if len(toRemove) > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
	}
}

// closeAllClients closes every client in ID order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClients() {
		client.close()
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(0)
}

// BroadcastLog queues rec for delivery. It never blocks; when the hub is
// saturated the record is dropped for live clients only. Its signature
// matches logstore.Pipeline.Subscribe.
func (h *Hub) BroadcastLog(rec logstore.LogRecord) {
	select {
	case h.broadcast <- rec:
	default:
		metrics.WSErrors.WithLabelValues("broadcast_dropped").Inc()
		logging.Warn().Str("log_id", rec.ID).Msg("broadcast channel full, dropping new_log message")
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// recentLogs returns the greeting for a new client. The durable store is
// preferred; the in-memory window is used when it fails.
func (h *Hub) recentLogs(ctx context.Context) []logstore.LogRecord {
	res, err := h.source.GetLogs(ctx, logstore.Filter{}, logstore.Page{Limit: RecentLogsOnConnect})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to load recent logs, using in-memory window")
		return h.source.Recent(RecentLogsOnConnect)
	}
	if res.Logs == nil {
		return []logstore.LogRecord{}
	}
	return res.Logs
}
