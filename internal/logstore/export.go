// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package logstore

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// ExportFormat selects the export encoding.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportJSON ExportFormat = "json"
)

// ContentType returns the MIME type for the format.
func (f ExportFormat) ContentType() string {
	if f == ExportCSV {
		return "text/csv"
	}
	return "application/json"
}

var csvHeader = []string{
	"Timestamp", "Level", "Message", "Module", "Action", "User ID",
	"IP Address", "Method", "Path", "Status Code", "Response Time",
}

// Export writes up to ExportLimit matching records to w.
func (p *Pipeline) Export(ctx context.Context, w io.Writer, format ExportFormat, filter Filter) (int, error) {
	records, err := p.store.Query(ctx, filter, Page{Limit: ExportLimit})
	if err != nil {
		return 0, err
	}

	switch format {
	case ExportCSV:
		return len(records), writeCSV(w, records)
	case ExportJSON:
		if records == nil {
			records = []LogRecord{}
		}
		return len(records), json.NewEncoder(w).Encode(records)
	default:
		return 0, fmt.Errorf("unsupported export format %q", format)
	}
}

func writeCSV(w io.Writer, records []LogRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i := range records {
		r := &records[i]
		row := []string{
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			string(r.Level),
			r.Message,
			r.Module,
			r.Action,
			r.UserID,
			r.IPAddress,
			r.Method,
			r.Path,
			optionalInt(int64(r.StatusCode)),
			optionalInt(r.ResponseTimeMs),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func optionalInt(n int64) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatInt(n, 10)
}
