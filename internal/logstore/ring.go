// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package logstore

// ring is a fixed-capacity buffer of the most recent records. Not safe for
// concurrent use; the pipeline guards it.
type ring struct {
	buf   []LogRecord
	start int
	size  int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{buf: make([]LogRecord, capacity)}
}

// push inserts rec, evicting the oldest record when full.
func (r *ring) push(rec LogRecord) {
	capacity := len(r.buf)
	if r.size < capacity {
		r.buf[(r.start+r.size)%capacity] = rec
		r.size++
		return
	}
	r.buf[r.start] = rec
	r.start = (r.start + 1) % capacity
}

// recent returns up to n records, newest first. n <= 0 returns all.
func (r *ring) recent(n int) []LogRecord {
	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([]LogRecord, n)
	capacity := len(r.buf)
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.start+r.size-1-i)%capacity]
	}
	return out
}

func (r *ring) len() int { return r.size }
