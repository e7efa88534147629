// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package logstore

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestPipeline_ExportCSV(t *testing.T) {
	p := newTestPipeline(t, NewMemoryStore(0), Config{})
	ctx := context.Background()

	p.Info(ctx, "http", "GET /a, with comma",
		WithRequest("GET", "/a"),
		WithResponse(200, 12*time.Millisecond),
		WithClient("10.0.0.1", "curl"),
		WithUser("u1"),
	)
	p.Error(ctx, "auth", "failed")
	flush(t, p)

	var buf bytes.Buffer
	n, err := p.Export(ctx, &buf, ExportCSV, Filter{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 exported records, got %d", n)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], "|") != strings.Join(csvHeader, "|") {
		t.Errorf("unexpected header %v", rows[0])
	}
	httpRow := rows[2]
	if httpRow[2] != "GET /a, with comma" || httpRow[5] != "u1" || httpRow[9] != "200" || httpRow[10] != "12" {
		t.Errorf("unexpected row %v", httpRow)
	}
}

func TestPipeline_ExportJSON(t *testing.T) {
	p := newTestPipeline(t, NewMemoryStore(0), Config{})
	ctx := context.Background()

	var buf bytes.Buffer
	if _, err := p.Export(ctx, &buf, ExportJSON, Filter{}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("expected empty array, got %s", buf.String())
	}

	p.Warn(ctx, "lockdown", "hello", WithMeta("reason", String("maintenance")))
	flush(t, p)
	buf.Reset()
	if _, err := p.Export(ctx, &buf, ExportJSON, Filter{Level: LevelWarn}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	var got []LogRecord
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got) != 1 || got[0].Metadata["reason"].Str() != "maintenance" {
		t.Errorf("unexpected export %s", buf.String())
	}
}

func TestPipeline_ExportUnknownFormat(t *testing.T) {
	p := newTestPipeline(t, NewMemoryStore(0), Config{})
	if _, err := p.Export(context.Background(), &bytes.Buffer{}, "xml", Filter{}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestPipeline_Search(t *testing.T) {
	p := newTestPipeline(t, NewMemoryStore(0), Config{})
	ctx := context.Background()

	p.Info(ctx, "auth", "user logged in", WithMeta("provider", String("GitHub")))
	p.Info(ctx, "auth", "user logged out")
	flush(t, p)

	got, err := p.Search(ctx, "github", Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Message != "user logged in" {
		t.Errorf("metadata search failed: %v", got)
	}

	got, _ = p.Search(ctx, "LOGGED", Filter{})
	if len(got) != 2 {
		t.Errorf("expected 2 message matches, got %d", len(got))
	}
}
