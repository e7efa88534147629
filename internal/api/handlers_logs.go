// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/watchtower/internal/logging"
	"github.com/tomtom215/watchtower/internal/logstore"
)

// SearchResult is the payload of POST /logs/search.
type SearchResult struct {
	Logs  []logstore.LogRecord `json:"logs"`
	Count int                  `json:"count"`
}

// GetLogs returns a filtered page of log history, newest first.
//
// @Summary List log records
// @Tags Logs
// @Produce json
// @Security BearerAuth
// @Param level query string false "debug, info, warn or error"
// @Param module query string false "Module name"
// @Param userId query string false "User ID"
// @Param startDate query string false "RFC 3339 lower bound"
// @Param endDate query string false "RFC 3339 upper bound"
// @Param search query string false "Case-insensitive substring"
// @Param limit query int false "Page size (1-10000, default 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} APIResponse{data=[]logstore.LogRecord}
// @Failure 400 {object} APIResponse "Invalid parameters"
// @Router /logs [get]
func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	req, err := listLogsFromQuery(r)
	if err != nil {
		rw.ValidationError("Invalid query parameter: "+err.Error(), nil)
		return
	}
	if !validate(rw, &req) {
		return
	}
	filter, err := req.Filter()
	if err != nil {
		rw.ValidationError(err.Error(), nil)
		return
	}

	page := logstore.Page{Limit: req.Limit, Offset: req.Offset}
	result, err := h.plane.Logs.GetLogs(r.Context(), filter, page)
	if err != nil {
		rw.InternalError("Failed to fetch logs", err)
		return
	}

	rw.SuccessWithPagination(result.Logs, &PaginationMeta{
		Total:   result.Total,
		Count:   len(result.Logs),
		Offset:  req.Offset,
		Limit:   req.Limit,
		HasMore: int64(req.Offset+len(result.Logs)) < result.Total,
	})
}

// GetLogStats returns per-level counts for the last 24 hours.
//
// @Summary Log statistics
// @Tags Logs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} APIResponse{data=[]logstore.LevelStats}
// @Router /logs/stats [get]
func (h *Handler) GetLogStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	stats, err := h.plane.Logs.GetLogStats(r.Context())
	if err != nil {
		rw.InternalError("Failed to fetch log statistics", err)
		return
	}
	if stats == nil {
		stats = []logstore.LevelStats{}
	}
	rw.Success(stats)
}

// SearchLogs matches the query against message and metadata.
//
// @Summary Search log records
// @Tags Logs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SearchLogsRequest true "Query and filters"
// @Success 200 {object} APIResponse{data=SearchResult}
// @Failure 400 {object} APIResponse "Validation failed"
// @Router /logs/search [post]
func (h *Handler) SearchLogs(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req SearchLogsRequest
	if !decodeBody(rw, r, &req, false) {
		return
	}
	filter, err := req.Filters.Filter()
	if err != nil {
		rw.ValidationError(err.Error(), nil)
		return
	}

	records, err := h.plane.Logs.Search(r.Context(), req.Query, filter)
	if err != nil {
		rw.InternalError("Failed to search logs", err)
		return
	}
	if records == nil {
		records = []logstore.LogRecord{}
	}
	rw.Success(SearchResult{Logs: records, Count: len(records)})
}

// ExportLogs streams matching records as a CSV or JSON attachment.
//
// @Summary Export log records
// @Tags Logs
// @Accept json
// @Produce text/csv
// @Produce json
// @Security BearerAuth
// @Param request body ExportLogsRequest false "Format (csv default) and filters"
// @Success 200 {file} file
// @Failure 400 {object} APIResponse "Validation failed"
// @Router /logs/export [post]
func (h *Handler) ExportLogs(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req ExportLogsRequest
	if !decodeBody(rw, r, &req, true) {
		return
	}
	filter, err := req.Filters.Filter()
	if err != nil {
		rw.ValidationError(err.Error(), nil)
		return
	}
	format := logstore.ExportCSV
	if req.Format != "" {
		format = logstore.ExportFormat(req.Format)
	}

	// Buffered so a store failure can still produce an error response.
	var buf bytes.Buffer
	n, err := h.plane.Logs.Export(r.Context(), &buf, format, filter)
	if err != nil {
		rw.InternalError("Failed to export logs", err)
		return
	}

	filename := fmt.Sprintf("watchtower-logs-%s.%s", time.Now().UTC().Format("20060102-150405"), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("X-Export-Count", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Failed to write log export")
	}
}
