package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/powertag-monitor/internal/alert"
	"github.com/nerrad567/powertag-monitor/internal/infrastructure/database"
	"github.com/nerrad567/powertag-monitor/internal/powertag"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	// timestampLayout is fixed-width so stored timestamps sort as text.
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// HistoryEntry is one stored row.
type HistoryEntry struct {
	ID  int64        `json:"id"`
	Row powertag.Row `json:"row"`
}

// AlertRecord is one logged alert.
type AlertRecord struct {
	ID          string    `json:"id"`
	Tag         string    `json:"tag"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"`
	CreatedAt   time.Time `json:"created_at"`
}

// storedValue keeps schema order in the readings column.
type storedValue struct {
	Key   string         `json:"key"`
	Value powertag.Value `json:"value"`
}

// SQLiteSink stores rows in the readings table and alerts in the alerts
// table. The schema comes from the embedded migrations.
type SQLiteSink struct {
	db *database.DB
}

// NewSQLiteSink wraps a migrated database.
func NewSQLiteSink(db *database.DB) *SQLiteSink {
	return &SQLiteSink{db: db}
}

// Name implements Sink.
func (s *SQLiteSink) Name() string { return "sqlite" }

// Append implements Sink.
func (s *SQLiteSink) Append(ctx context.Context, row powertag.Row) error {
	values := make([]storedValue, len(row.Keys))
	for i, k := range row.Keys {
		values[i] = storedValue{Key: k, Value: row.Values[i]}
	}
	valuesJSON, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshalling readings: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO readings (tag, gateway, device_id, readings, recorded_at) VALUES (?, ?, ?, ?, ?)",
		row.Tag,
		row.Gateway,
		int(row.DeviceID),
		string(valuesJSON),
		formatTimestamp(row.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}
	return nil
}

// History returns the newest stored rows for tag, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - tag: PowerTag name
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []HistoryEntry: entries ordered by recorded_at DESC
//   - error: ErrTagRequired, or the underlying query error
func (s *SQLiteSink) History(ctx context.Context, tag string, limit int) ([]HistoryEntry, error) {
	if tag == "" {
		return nil, ErrTagRequired
	}
	limit = clampLimit(limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tag, gateway, device_id, readings, recorded_at
		 FROM readings
		 WHERE tag = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		tag,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var (
			entry      HistoryEntry
			deviceID   int
			valuesJSON string
			recordedAt string
		)
		if err := rows.Scan(&entry.ID, &entry.Row.Tag, &entry.Row.Gateway, &deviceID, &valuesJSON, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}

		var values []storedValue
		if err := json.Unmarshal([]byte(valuesJSON), &values); err != nil {
			return nil, fmt.Errorf("unmarshalling readings: %w", err)
		}
		entry.Row.DeviceID = uint8(deviceID) //nolint:gosec // Stored from a uint8
		entry.Row.Keys = make([]string, len(values))
		entry.Row.Values = make([]powertag.Value, len(values))
		for i, v := range values {
			entry.Row.Keys[i] = v.Key
			entry.Row.Values[i] = v.Value
		}

		if entry.Row.Timestamp, err = parseTimestamp(recordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}
	return entries, nil
}

// Prune deletes readings and alerts older than olderThan.
//
// Returns:
//   - int64: Number of rows deleted across both tables
//   - error: nil on success, otherwise the underlying database error
func (s *SQLiteSink) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}
	cutoff := formatTimestamp(time.Now().Add(-olderThan))

	var total int64
	for _, stmt := range []string{
		"DELETE FROM readings WHERE recorded_at < ?",
		"DELETE FROM alerts WHERE created_at < ?",
	} {
		result, err := s.db.ExecContext(ctx, stmt, cutoff)
		if err != nil {
			return total, fmt.Errorf("pruning history: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("checking rows affected: %w", err)
		}
		total += n
	}
	return total, nil
}

// RecordAlert logs a dispatched alert event. Service events (no tag) are
// ignored. It has the notify.Func signature.
func (s *SQLiteSink) RecordAlert(ctx context.Context, evt alert.Event) error {
	if evt.Tag == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, tag, title, description, severity, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		evt.ID,
		evt.Tag,
		evt.Title,
		evt.Description,
		evt.Severity,
		formatTimestamp(evt.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	return nil
}

// RecentAlerts returns logged alerts newest first. An empty tag returns
// alerts for every device.
func (s *SQLiteSink) RecentAlerts(ctx context.Context, tag string, limit int) ([]AlertRecord, error) {
	limit = clampLimit(limit)

	query := `SELECT id, tag, title, description, severity, created_at FROM alerts`
	args := []any{}
	if tag != "" {
		query += ` WHERE tag = ?`
		args = append(args, tag)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var records []AlertRecord
	for rows.Next() {
		var r AlertRecord
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Tag, &r.Title, &r.Description, &r.Severity, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		if r.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alerts: %w", err)
	}
	return records, nil
}

// Close implements Sink. The database is owned by the caller.
func (s *SQLiteSink) Close() error { return nil }

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// parseTimestamp parses a stored timestamp.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	t, err := time.Parse(timestampLayout, value)
	if err == nil {
		return t, nil
	}
	if fallback, fallbackErr := time.Parse(time.RFC3339, value); fallbackErr == nil {
		return fallback, nil
	}
	return time.Time{}, fmt.Errorf("parsing timestamp: %w", err)
}
