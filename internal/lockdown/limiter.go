// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package lockdown

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedIPs bounds the limiter map during a wide flood.
const maxTrackedIPs = 10000

// auditLimiter throttles denial audit entries per IP and counts what it
// suppressed so the next emitted entry can report it.
type auditLimiter struct {
	mu       sync.Mutex
	limiters map[string]*auditLimiterEntry
	rate     rate.Limit
	burst    int
	idle     time.Duration
}

type auditLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
	suppressed int
}

// newAuditLimiter allows burst entries per IP, refilling one per interval.
// A non-positive interval disables throttling.
func newAuditLimiter(interval time.Duration, burst int) *auditLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &auditLimiter{
		limiters: make(map[string]*auditLimiterEntry),
		rate:     limit,
		burst:    burst,
		idle:     time.Hour,
	}
}

// allow reports whether an entry for ip may be written now. When it may,
// suppressed is the number of entries dropped for ip since the last one.
func (l *auditLimiter) allow(ip string, now time.Time) (ok bool, suppressed int) {
	if l.rate == rate.Inf {
		return true, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.limiters[ip]
	if !exists {
		if len(l.limiters) >= maxTrackedIPs {
			l.cleanup(now)
		}
		entry = &auditLimiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastAccess = now

	if !entry.limiter.AllowN(now, 1) {
		entry.suppressed++
		return false, 0
	}
	suppressed = entry.suppressed
	entry.suppressed = 0
	return true, suppressed
}

// cleanup drops limiters idle for longer than l.idle.
func (l *auditLimiter) cleanup(now time.Time) {
	threshold := now.Add(-l.idle)
	for ip, entry := range l.limiters {
		if entry.lastAccess.Before(threshold) {
			delete(l.limiters, ip)
		}
	}
}
