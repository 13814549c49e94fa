package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the backend was not initialised.
	ErrNotConfigured = errors.New("storage: backend not configured")
)

// RateSample is one accepted fetch, stored for history views and export.
type RateSample struct {
	CycleID    uuid.UUID
	Currency   string
	Sample     float64
	Smoothed   decimal.Decimal
	RecordedAt time.Time
}

// KV is the process-external key-value store the alert ledger persists into.
type KV interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// History records smoothed rate samples. An empty currency matches all.
type History interface {
	AppendSamples(ctx context.Context, samples []RateSample) error
	ListRecentSamples(ctx context.Context, currency string, limit int) ([]RateSample, error)
	ListSamplesBetween(ctx context.Context, currency string, from, to time.Time) ([]RateSample, error)
}

// Backend bundles every storage concern behind one handle.
type Backend interface {
	KV
	History
	Close() error
}
