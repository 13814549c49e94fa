package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	createSchemaSQL = `
CREATE TABLE IF NOT EXISTS kv_store (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS rate_samples (
    id          BIGSERIAL PRIMARY KEY,
    cycle_id    UUID NOT NULL,
    currency    TEXT NOT NULL,
    sample      DOUBLE PRECISION NOT NULL,
    smoothed    NUMERIC NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rate_samples_currency_ts ON rate_samples (currency, recorded_at);`

	getValueSQL = `SELECT value FROM kv_store WHERE key = $1;`

	upsertValueSQL = `INSERT INTO kv_store (key, value, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (key) DO UPDATE
    SET value      = EXCLUDED.value,
        updated_at = EXCLUDED.updated_at;`

	insertRateSampleSQL = `INSERT INTO rate_samples (
        cycle_id,
        currency,
        sample,
        smoothed,
        recorded_at
    ) VALUES (
        $1::uuid,$2,$3,$4::numeric,$5
    );`

	listRecentSamplesSQL = `SELECT
        cycle_id::text,
        currency,
        sample,
        smoothed::text,
        recorded_at
    FROM rate_samples
    WHERE ($1 = '' OR currency = $1)
    ORDER BY recorded_at DESC, id DESC
    LIMIT $2;`

	listSamplesBetweenSQL = `SELECT
        cycle_id::text,
        currency,
        sample,
        smoothed::text,
        recorded_at
    FROM rate_samples
    WHERE ($1 = '' OR currency = $1)
      AND recorded_at >= $2
      AND recorded_at < $3
    ORDER BY recorded_at, id;`
)

// Postgres stores the alert state and rate history in PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wires a pgx pool into a Postgres backend.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the tables when they do not exist yet.
func (s *Postgres) Migrate(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createSchemaSQL); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Postgres) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *Postgres) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Get reads a persisted value.
func (s *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return "", false, err
	}

	var value string
	scanErr := pool.QueryRow(ctx, getValueSQL, key).Scan(&value)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return "", false, nil
	}
	if scanErr != nil {
		return "", false, fmt.Errorf("get %s: %w", key, scanErr)
	}
	return value, true, nil
}

// Set upserts a value.
func (s *Postgres) Set(ctx context.Context, key, value string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, upsertValueSQL, key, value); execErr != nil {
		return fmt.Errorf("set %s: %w", key, execErr)
	}
	return nil
}

// AppendSamples writes one refresh cycle in a single batch.
func (s *Postgres) AppendSamples(ctx context.Context, samples []RateSample) error {
	if len(samples) == 0 {
		return nil
	}
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, sample := range samples {
		batch.Queue(insertRateSampleSQL,
			sample.CycleID.String(),
			sample.Currency,
			sample.Sample,
			sample.Smoothed.String(),
			sample.RecordedAt.UTC(),
		)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()
	for _, sample := range samples {
		if _, execErr := results.Exec(); execErr != nil {
			return fmt.Errorf("insert rate sample %s: %w", sample.Currency, execErr)
		}
	}
	return nil
}

// ListRecentSamples lists the most recent samples ordered newest first.
func (s *Postgres) ListRecentSamples(ctx context.Context, currency string, limit int) ([]RateSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, currency, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	return collectSamples(rows)
}

// ListSamplesBetween lists samples within [from, to).
func (s *Postgres) ListSamplesBetween(ctx context.Context, currency string, from, to time.Time) ([]RateSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, currency, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	return collectSamples(rows)
}

func collectSamples(rows pgx.Rows) ([]RateSample, error) {
	defer rows.Close()

	samples := make([]RateSample, 0)
	for rows.Next() {
		sample, scanErr := scanRateSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

func scanRateSample(rows pgx.Rows) (RateSample, error) {
	var (
		cycleStr    string
		smoothedStr string
		sample      RateSample
	)

	if err := rows.Scan(
		&cycleStr,
		&sample.Currency,
		&sample.Sample,
		&smoothedStr,
		&sample.RecordedAt,
	); err != nil {
		return RateSample{}, err
	}

	cycleID, err := uuid.Parse(cycleStr)
	if err != nil {
		return RateSample{}, fmt.Errorf("parse cycle id: %w", err)
	}
	smoothed, err := decimal.NewFromString(smoothedStr)
	if err != nil {
		return RateSample{}, fmt.Errorf("parse smoothed rate: %w", err)
	}

	sample.CycleID = cycleID
	sample.Smoothed = smoothed
	sample.RecordedAt = sample.RecordedAt.UTC()
	return sample, nil
}

var _ Backend = (*Postgres)(nil)
