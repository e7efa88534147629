// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package logstore

import (
	"sync"

	"github.com/tomtom215/watchtower/internal/logging"
	"github.com/tomtom215/watchtower/internal/metrics"
)

// subscriber delivers records to one callback from its own goroutine.
// Its queue is bounded; when full the oldest queued record is discarded.
type subscriber struct {
	id    uint64
	fn    func(LogRecord)
	queue chan LogRecord
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newSubscriber(id uint64, fn func(LogRecord), buffer int) *subscriber {
	if buffer < 1 {
		buffer = 1
	}
	s := &subscriber{
		id:    id,
		fn:    fn,
		queue: make(chan LogRecord, buffer),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// offer never blocks. Callers serialize offers to the same subscriber.
func (s *subscriber) offer(rec LogRecord) {
	for {
		select {
		case s.queue <- rec:
			return
		default:
		}
		select {
		case <-s.queue:
			metrics.LogSubscriberDropped.Inc()
		default:
		}
	}
}

func (s *subscriber) run() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case rec := <-s.queue:
			select {
			case <-s.quit:
				return
			default:
			}
			s.deliver(rec)
		}
	}
}

func (s *subscriber) deliver(rec LogRecord) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Uint64("subscriber", s.id).
				Interface("panic", r).
				Str("log_id", rec.ID).
				Msg("Log subscriber panicked")
		}
	}()
	s.fn(rec)
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.quit) })
}
