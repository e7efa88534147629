// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tomtom215/watchtower/internal/logging"
	"github.com/tomtom215/watchtower/internal/logstore"
)

// Appender is the part of the log pipeline the request logger needs.
type Appender interface {
	Append(ctx context.Context, e logstore.Entry) logstore.LogRecord
}

// RequestLog appends one "http" record per request once it completes.
// The level follows the status: 5xx error, 4xx warn, otherwise info.
func RequestLog(logs Appender) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			r, slot := withActorSlot(r)

			next.ServeHTTP(ww, r)

			status := statusOf(ww)
			logs.Append(r.Context(), HTTPEntry(r, slot.userID, status, time.Since(start)))
		})
	}
}

// HTTPEntry builds the log entry describing a completed request.
func HTTPEntry(r *http.Request, userID string, status int, elapsed time.Duration) logstore.Entry {
	level := logstore.LevelInfo
	switch {
	case status >= http.StatusInternalServerError:
		level = logstore.LevelError
	case status >= http.StatusBadRequest:
		level = logstore.LevelWarn
	}

	meta := logstore.Metadata{}
	if q := r.URL.Query(); len(q) > 0 {
		query := make(logstore.Metadata, len(q))
		for k, vs := range q {
			query[k] = logstore.String(logging.SanitizeValue(k, strings.Join(vs, ",")))
		}
		meta["query"] = logstore.Map(query)
	}
	headers := logging.SanitizeHeaders(r.Header)
	if len(headers) > 0 {
		hm := make(logstore.Metadata, len(headers))
		for k, v := range headers {
			hm[k] = logstore.String(v)
		}
		meta["headers"] = logstore.Map(hm)
	}

	return logstore.Entry{
		Level:          level,
		Module:         "http",
		Message:        "HTTP Request",
		Action:         r.Method + " " + r.URL.Path,
		UserID:         userID,
		IPAddress:      ClientIP(r),
		UserAgent:      r.UserAgent(),
		Method:         r.Method,
		Path:           r.URL.Path,
		StatusCode:     status,
		ResponseTimeMs: elapsed.Milliseconds(),
		Metadata:       meta,
	}
}
