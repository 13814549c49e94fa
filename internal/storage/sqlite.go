package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv_store (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS rate_samples (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	cycle_id    TEXT NOT NULL,
	currency    TEXT NOT NULL,
	sample      REAL NOT NULL,
	smoothed    TEXT NOT NULL,
	recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rate_samples_currency_ts ON rate_samples (currency, recorded_at);
`

// SQLite persists the alert state and rate history in a local database file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and applies the schema.
func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; WAL keeps readers (show/export) unblocked
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Get reads a value; missing keys report found=false.
func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts a value.
func (s *SQLite) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// AppendSamples inserts samples in one transaction.
func (s *SQLite) AppendSamples(ctx context.Context, samples []RateSample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO rate_samples (cycle_id, currency, sample, smoothed, recorded_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert sample: %w", err)
	}
	defer stmt.Close()

	for _, sample := range samples {
		if _, err := stmt.ExecContext(ctx,
			sample.CycleID.String(),
			sample.Currency,
			sample.Sample,
			sample.Smoothed.String(),
			sample.RecordedAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert sample %s: %w", sample.Currency, err)
		}
	}
	return tx.Commit()
}

// ListRecentSamples lists the newest samples first.
func (s *SQLite) ListRecentSamples(ctx context.Context, currency string, limit int) ([]RateSample, error) {
	query := "SELECT cycle_id, currency, sample, smoothed, recorded_at FROM rate_samples"
	args := []any{}
	if currency != "" {
		query += " WHERE currency = ?"
		args = append(args, currency)
	}
	query += " ORDER BY recorded_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	return s.querySamples(ctx, query, args...)
}

// ListSamplesBetween lists samples in [from, to) in chronological order.
func (s *SQLite) ListSamplesBetween(ctx context.Context, currency string, from, to time.Time) ([]RateSample, error) {
	query := "SELECT cycle_id, currency, sample, smoothed, recorded_at FROM rate_samples WHERE recorded_at >= ? AND recorded_at < ?"
	args := []any{from.UTC().UnixMilli(), to.UTC().UnixMilli()}
	if currency != "" {
		query += " AND currency = ?"
		args = append(args, currency)
	}
	query += " ORDER BY recorded_at, id"

	return s.querySamples(ctx, query, args...)
}

func (s *SQLite) querySamples(ctx context.Context, query string, args ...any) ([]RateSample, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	samples := make([]RateSample, 0)
	for rows.Next() {
		var (
			cycleID    string
			smoothed   string
			recordedAt int64
			sample     RateSample
		)
		if err := rows.Scan(&cycleID, &sample.Currency, &sample.Sample, &smoothed, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		if sample.CycleID, err = uuid.Parse(cycleID); err != nil {
			return nil, fmt.Errorf("parse cycle id: %w", err)
		}
		if sample.Smoothed, err = decimal.NewFromString(smoothed); err != nil {
			return nil, fmt.Errorf("parse smoothed rate: %w", err)
		}
		sample.RecordedAt = time.UnixMilli(recordedAt).UTC()
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

var _ Backend = (*SQLite)(nil)
