// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package logstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// Registers the "duckdb" database/sql driver.
	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/watchtower/internal/logging"
)

// DuckDBStore persists records in the system_logs table.
type DuckDBStore struct {
	db *sql.DB
}

// OpenDuckDB opens (or creates) a DuckDB database file. Use ":memory:"
// or "" for an in-process database.
func OpenDuckDB(path string) (*sql.DB, error) {
	if path == ":memory:" {
		path = ""
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}
	return db, nil
}

// NewDuckDBStore wraps db. Call CreateTable before use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTable creates system_logs and its indexes if missing.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS system_logs (
			id TEXT PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			level TEXT NOT NULL,
			module TEXT NOT NULL,
			message TEXT NOT NULL,
			action TEXT,
			user_id TEXT,
			ip_address TEXT,
			user_agent TEXT,
			method TEXT,
			path TEXT,
			status_code INTEGER,
			response_time_ms BIGINT,
			metadata JSON
		);

		CREATE INDEX IF NOT EXISTS idx_system_logs_timestamp ON system_logs(timestamp);
		CREATE INDEX IF NOT EXISTS idx_system_logs_level ON system_logs(level);
		CREATE INDEX IF NOT EXISTS idx_system_logs_module ON system_logs(module);
		CREATE INDEX IF NOT EXISTS idx_system_logs_user_id ON system_logs(user_id);
	`

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	logging.Info().Msg("system_logs table created/verified")
	return nil
}

// Save inserts one record.
func (s *DuckDBStore) Save(ctx context.Context, rec *LogRecord) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}

	const query = `
		INSERT INTO system_logs (
			id, timestamp, level, module, message,
			action, user_id, ip_address, user_agent,
			method, path, status_code, response_time_ms, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Timestamp.UTC(),
		string(rec.Level),
		rec.Module,
		rec.Message,
		nullString(rec.Action),
		nullString(rec.UserID),
		nullString(rec.IPAddress),
		nullString(rec.UserAgent),
		nullString(rec.Method),
		nullString(rec.Path),
		nullInt(int64(rec.StatusCode)),
		nullInt(rec.ResponseTimeMs),
		nullString(rec.Metadata.String()),
	)
	if err != nil {
		return fmt.Errorf("failed to save log record: %w", err)
	}
	return nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int64) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

// Query returns one page of matching records.
func (s *DuckDBStore) Query(ctx context.Context, filter Filter, page Page) ([]LogRecord, error) {
	page = page.normalize()
	conditions, args := buildFilterConditions(filter)

	query := `
		SELECT
			id, timestamp, level, module, message,
			action, user_id, ip_address, user_agent,
			method, path, status_code, response_time_ms,
			CAST(metadata AS VARCHAR) AS metadata
		FROM system_logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY timestamp DESC, id DESC LIMIT %d OFFSET %d", page.Limit, page.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query log records: %w", err)
	}
	defer rows.Close()

	records := make([]LogRecord, 0, page.Limit)
	for rows.Next() {
		var data scannedRecord
		if err := rows.Scan(data.scanDestinations()...); err != nil {
			logging.Warn().Err(err).Msg("Failed to scan log record row")
			continue
		}
		records = append(records, data.toRecord())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log records: %w", err)
	}
	return records, nil
}

// Count returns the number of matching records.
func (s *DuckDBStore) Count(ctx context.Context, filter Filter) (int64, error) {
	conditions, args := buildFilterConditions(filter)
	query := "SELECT COUNT(*) FROM system_logs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count log records: %w", err)
	}
	return count, nil
}

// Stats aggregates per level over [since, now].
func (s *DuckDBStore) Stats(ctx context.Context, since, recentSince time.Time) ([]LevelStats, error) {
	const query = `
		SELECT
			level,
			COUNT(*) AS count,
			COUNT(DISTINCT user_id) AS unique_users,
			COUNT(*) FILTER (WHERE timestamp >= ?) AS recent_count
		FROM system_logs
		WHERE timestamp >= ?
		GROUP BY level
		ORDER BY level
	`

	rows, err := s.db.QueryContext(ctx, query, recentSince.UTC(), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get log stats: %w", err)
	}
	defer rows.Close()

	var stats []LevelStats
	for rows.Next() {
		var st LevelStats
		var level string
		if err := rows.Scan(&level, &st.Count, &st.UniqueUsers, &st.RecentCount); err != nil {
			return nil, fmt.Errorf("failed to scan log stats: %w", err)
		}
		st.Level = Level(level)
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log stats: %w", err)
	}
	return stats, nil
}

// DeleteOlderThan removes records with a timestamp before cutoff.
func (s *DuckDBStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM system_logs WHERE timestamp < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old log records: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}
	return count, nil
}

// buildFilterConditions builds WHERE conditions and their arguments.
func buildFilterConditions(filter Filter) ([]string, []interface{}) {
	var conditions []string
	var args []interface{}

	conditions, args = appendStringCondition(conditions, args, "level", string(filter.Level))
	conditions, args = appendStringCondition(conditions, args, "module", filter.Module)
	conditions, args = appendStringCondition(conditions, args, "user_id", filter.UserID)

	if filter.StartDate != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, filter.EndDate.UTC())
	}
	if filter.Search != "" {
		pattern := "%" + escapeLike(filter.Search) + "%"
		conditions = append(conditions,
			`(message ILIKE ? ESCAPE '\' OR COALESCE(CAST(metadata AS VARCHAR), '') ILIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	return conditions, args
}

// appendStringCondition adds an equality condition if value is non-empty.
func appendStringCondition(conditions []string, args []interface{}, column, value string) ([]string, []interface{}) {
	if value != "" {
		conditions = append(conditions, column+" = ?")
		args = append(args, value)
	}
	return conditions, args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// scannedRecord holds nullable columns as scanned.
type scannedRecord struct {
	rec        LogRecord
	level      string
	action     sql.NullString
	userID     sql.NullString
	ipAddress  sql.NullString
	userAgent  sql.NullString
	method     sql.NullString
	path       sql.NullString
	statusCode sql.NullInt64
	respTimeMs sql.NullInt64
	metadata   sql.NullString
}

func (d *scannedRecord) scanDestinations() []interface{} {
	return []interface{}{
		&d.rec.ID,
		&d.rec.Timestamp,
		&d.level,
		&d.rec.Module,
		&d.rec.Message,
		&d.action,
		&d.userID,
		&d.ipAddress,
		&d.userAgent,
		&d.method,
		&d.path,
		&d.statusCode,
		&d.respTimeMs,
		&d.metadata,
	}
}

func (d *scannedRecord) toRecord() LogRecord {
	d.rec.Level = Level(d.level)
	d.rec.Action = d.action.String
	d.rec.UserID = d.userID.String
	d.rec.IPAddress = d.ipAddress.String
	d.rec.UserAgent = d.userAgent.String
	d.rec.Method = d.method.String
	d.rec.Path = d.path.String
	d.rec.StatusCode = int(d.statusCode.Int64)
	d.rec.ResponseTimeMs = d.respTimeMs.Int64
	if d.metadata.Valid {
		md, err := ParseMetadata(d.metadata.String)
		if err != nil {
			logging.Debug().Err(err).Str("log_id", d.rec.ID).Msg("Failed to parse log metadata")
		}
		d.rec.Metadata = md
	}
	return d.rec
}
