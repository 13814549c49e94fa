package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is a process-local Backend. Nothing survives a restart.
type Memory struct {
	mu      sync.RWMutex
	values  map[string]string
	samples []RateSample
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) AppendSamples(_ context.Context, samples []RateSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, samples...)
	return nil
}

func (m *Memory) ListRecentSamples(_ context.Context, currency string, limit int) ([]RateSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RateSample, 0, limit)
	for i := len(m.samples) - 1; i >= 0 && len(out) < limit; i-- {
		if currency == "" || m.samples[i].Currency == currency {
			out = append(out, m.samples[i])
		}
	}
	return out, nil
}

func (m *Memory) ListSamplesBetween(_ context.Context, currency string, from, to time.Time) ([]RateSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RateSample, 0)
	for _, s := range m.samples {
		if currency != "" && s.Currency != currency {
			continue
		}
		if s.RecordedAt.Before(from) || !s.RecordedAt.Before(to) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}

var _ Backend = (*Memory)(nil)
