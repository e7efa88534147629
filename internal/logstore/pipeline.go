// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package logstore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/watchtower/internal/logging"
	"github.com/tomtom215/watchtower/internal/metrics"
)

// Config tunes the pipeline.
type Config struct {
	// RingSize is the in-memory window capacity.
	RingSize int `koanf:"ring_size"`

	// QueueSize bounds the durable write queue. When it is full new
	// records skip persistence (drop-newest) but still reach the ring and
	// subscribers.
	QueueSize int `koanf:"queue_size"`

	// SubscriberBuffer bounds each subscriber queue (drop-oldest).
	SubscriberBuffer int `koanf:"subscriber_buffer"`

	// WriteTimeout bounds a single durable write.
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// RetentionDays is the durable history horizon.
	RetentionDays int `koanf:"retention_days"`

	// RetentionInterval is how often the retention sweep runs.
	RetentionInterval time.Duration `koanf:"retention_interval"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		RingSize:          1000,
		QueueSize:         4096,
		SubscriberBuffer:  256,
		WriteTimeout:      5 * time.Second,
		RetentionDays:     30,
		RetentionInterval: 24 * time.Hour,
	}
}

// Forwarder receives each record after it has been handed to the store.
type Forwarder interface {
	Forward(ctx context.Context, rec LogRecord) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithForwarder sets a downstream forwarder.
func WithForwarder(f Forwarder) Option {
	return func(p *Pipeline) { p.forwarder = f }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline ingests log records: it keeps the last N in a ring, persists every
// record through a background writer, and fans records out to subscribers.
// Append never fails and never blocks on I/O.
type Pipeline struct {
	cfg       Config
	store     Store
	forwarder Forwarder
	now       func() time.Time

	// mu guards ring, subs and nextSubID. Subscriber offers happen under
	// it so registration order is exact with respect to Append.
	mu        sync.Mutex
	ring      *ring
	subs      map[uint64]*subscriber
	nextSubID uint64

	// lifeMu guards closed against concurrent enqueue.
	lifeMu   sync.RWMutex
	closed   bool
	queue    chan *LogRecord
	pending  atomic.Int64
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a pipeline over store and starts its durable writer.
func New(store Store, cfg Config, opts ...Option) *Pipeline {
	def := DefaultConfig()
	if cfg.RingSize <= 0 {
		cfg.RingSize = def.RingSize
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = def.SubscriberBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = def.RetentionDays
	}
	if cfg.RetentionInterval <= 0 {
		cfg.RetentionInterval = def.RetentionInterval
	}

	p := &Pipeline{
		cfg:      cfg,
		store:    store,
		now:      time.Now,
		ring:     newRing(cfg.RingSize),
		subs:     make(map[uint64]*subscriber),
		queue:    make(chan *LogRecord, cfg.QueueSize),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.wg.Add(1)
	go p.writer()
	return p
}

// Append records an entry and returns the stored record.
func (p *Pipeline) Append(ctx context.Context, e Entry) LogRecord {
	if !e.Level.Valid() {
		e.Level = LevelInfo
	}
	rec := LogRecord{
		Level:          e.Level,
		Module:         e.Module,
		Message:        e.Message,
		Action:         e.Action,
		UserID:         e.UserID,
		IPAddress:      e.IPAddress,
		UserAgent:      e.UserAgent,
		Method:         e.Method,
		Path:           e.Path,
		StatusCode:     e.StatusCode,
		ResponseTimeMs: e.ResponseTimeMs,
		Metadata:       e.Metadata.Redact(),
	}
	if rec.Module == "" {
		rec.Module = "system"
	}
	if id := logging.RequestIDFromContext(ctx); id != "" {
		if rec.Metadata == nil {
			rec.Metadata = Metadata{}
		}
		rec.Metadata["requestId"] = String(id)
	}

	// ID and timestamp are assigned under the lock so ring order, ID order
	// and timestamp order agree.
	p.mu.Lock()
	rec.Timestamp = p.now()
	rec.ID = newRecordID(rec.Timestamp)
	p.ring.push(rec)
	for _, s := range p.subs {
		s.offer(rec)
	}
	p.mu.Unlock()

	metrics.LogRecordsAppended.WithLabelValues(string(rec.Level)).Inc()
	p.enqueue(&rec)
	return rec
}

// enqueue hands rec to the writer without blocking.
func (p *Pipeline) enqueue(rec *LogRecord) {
	p.lifeMu.RLock()
	defer p.lifeMu.RUnlock()

	if p.closed {
		logging.Warn().Str("log_id", rec.ID).Msg("Log pipeline closed, record kept in memory only")
		return
	}

	p.pending.Add(1)
	select {
	case p.queue <- rec:
		metrics.LogWriteQueueDepth.Set(float64(len(p.queue)))
	default:
		p.pending.Add(-1)
		metrics.LogWriteQueueDropped.Inc()
		logging.Warn().
			Str("log_id", rec.ID).
			Str("module", rec.Module).
			Msg("Log write queue full, record kept in memory only")
	}
}

// Debug appends a debug-level record.
func (p *Pipeline) Debug(ctx context.Context, module, message string, opts ...EntryOption) LogRecord {
	return p.Append(ctx, buildEntry(LevelDebug, module, message, opts))
}

// Info appends an info-level record.
func (p *Pipeline) Info(ctx context.Context, module, message string, opts ...EntryOption) LogRecord {
	return p.Append(ctx, buildEntry(LevelInfo, module, message, opts))
}

// Warn appends a warn-level record.
func (p *Pipeline) Warn(ctx context.Context, module, message string, opts ...EntryOption) LogRecord {
	return p.Append(ctx, buildEntry(LevelWarn, module, message, opts))
}

// Error appends an error-level record.
func (p *Pipeline) Error(ctx context.Context, module, message string, opts ...EntryOption) LogRecord {
	return p.Append(ctx, buildEntry(LevelError, module, message, opts))
}

// Recent returns up to n of the newest in-memory records, newest first.
func (p *Pipeline) Recent(n int) []LogRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ring.recent(n)
}

// Subscribe registers fn for every record appended after Subscribe returns.
// fn runs on a dedicated goroutine; a panic in fn is recovered and logged.
// The returned function unregisters fn and is safe to call more than once.
func (p *Pipeline) Subscribe(fn func(LogRecord)) (unsubscribe func()) {
	p.mu.Lock()
	p.nextSubID++
	s := newSubscriber(p.nextSubID, fn, p.cfg.SubscriberBuffer)
	p.subs[s.id] = s
	metrics.LogSubscribers.Set(float64(len(p.subs)))
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		if _, ok := p.subs[s.id]; ok {
			delete(p.subs, s.id)
			metrics.LogSubscribers.Set(float64(len(p.subs)))
		}
		p.mu.Unlock()
		s.stop()
	}
}

// SubscriberCount returns the number of registered subscribers.
func (p *Pipeline) SubscriberCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// GetLogs reads the durable store. Total counts every record matching the
// filter regardless of page.
func (p *Pipeline) GetLogs(ctx context.Context, filter Filter, page Page) (Result, error) {
	logs, err := p.store.Query(ctx, filter, page)
	if err != nil {
		return Result{}, err
	}
	total, err := p.store.Count(ctx, filter)
	if err != nil {
		return Result{}, err
	}
	return Result{Logs: logs, Total: total}, nil
}

// GetLogStats aggregates the last 24 hours per level; RecentCount covers
// the last hour.
func (p *Pipeline) GetLogStats(ctx context.Context) ([]LevelStats, error) {
	now := p.now()
	stats, err := p.store.Stats(ctx, now.Add(-24*time.Hour), now.Add(-time.Hour))
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = []LevelStats{}
	}
	return stats, nil
}

// Search matches query against message and metadata, newest first.
func (p *Pipeline) Search(ctx context.Context, query string, filter Filter) ([]LogRecord, error) {
	filter.Search = query
	return p.store.Query(ctx, filter, Page{Limit: SearchLimit})
}

// Flush waits until every enqueued record has been written or ctx ends.
func (p *Pipeline) Flush(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for p.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Close stops accepting durable writes, drains the queue and stops every
// subscriber.
func (p *Pipeline) Close() error {
	p.lifeMu.Lock()
	if p.closed {
		p.lifeMu.Unlock()
		return nil
	}
	p.closed = true
	p.lifeMu.Unlock()

	close(p.stopChan)
	p.wg.Wait()

	p.mu.Lock()
	for id, s := range p.subs {
		s.stop()
		delete(p.subs, id)
	}
	metrics.LogSubscribers.Set(0)
	p.mu.Unlock()
	return nil
}

func (p *Pipeline) writer() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			for {
				select {
				case rec := <-p.queue:
					p.persist(rec)
				default:
					return
				}
			}
		case rec := <-p.queue:
			p.persist(rec)
		}
	}
}

// persist writes one record. Failures are logged to the process log and
// never reach the producer.
func (p *Pipeline) persist(rec *LogRecord) {
	defer p.pending.Add(-1)
	metrics.LogWriteQueueDepth.Set(float64(len(p.queue)))

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.WriteTimeout)
	defer cancel()

	if err := p.store.Save(ctx, rec); err != nil {
		metrics.LogPersistFailures.Inc()
		logging.Error().
			Err(err).
			Str("log_id", rec.ID).
			Str("level", string(rec.Level)).
			Str("module", rec.Module).
			Str("message", rec.Message).
			Msg("Failed to persist log record")
	}

	if p.forwarder != nil {
		if err := p.forwarder.Forward(ctx, *rec); err != nil {
			logging.Debug().Err(err).Str("log_id", rec.ID).Msg("Failed to forward log record")
		}
	}
}
