package rates

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	two   = decimal.NewFromInt(2)
	three = decimal.NewFromInt(3)
)

// Store keeps the latest smoothed rate per currency, quoted in the home
// currency. The home currency is pinned to 1.
type Store struct {
	home  string
	mu    sync.RWMutex
	rates map[string]decimal.Decimal
}

// NewStore seeds a store with home=1.
func NewStore(home string) *Store {
	return &Store{
		home:  home,
		rates: map[string]decimal.Decimal{home: decimal.NewFromInt(1)},
	}
}

// Home returns the home currency code.
func (s *Store) Home() string {
	return s.home
}

// SetSmoothed folds sample into the running value for currency.
// Non-finite and non-positive samples are rejected; the first accepted sample
// is stored verbatim, later ones as (2*prev + sample) / 3.
// It reports whether the store changed.
func (s *Store) SetSmoothed(currency string, sample float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.foldLocked(currency, sample)
}

// Apply folds a whole cycle of samples under one lock, so a Snapshot taken
// concurrently sees either none or all of them. It returns the accepted
// currencies in sorted order.
func (s *Store) Apply(samples map[string]float64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	accepted := make([]string, 0, len(samples))
	for currency, sample := range samples {
		if s.foldLocked(currency, sample) {
			accepted = append(accepted, currency)
		}
	}
	sort.Strings(accepted)
	return accepted
}

func (s *Store) foldLocked(currency string, sample float64) bool {
	if math.IsNaN(sample) || math.IsInf(sample, 0) || sample <= 0 {
		return false
	}
	if currency == s.home {
		return false
	}
	value := decimal.NewFromFloat(sample)
	if prev, ok := s.rates[currency]; ok {
		value = Smooth(prev, value)
	}
	s.rates[currency] = value
	return true
}

// Get returns the smoothed rate for currency, if any sample was accepted.
func (s *Store) Get(currency string) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rate, ok := s.rates[currency]
	return rate, ok
}

// Snapshot copies the current rates.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(Snapshot, len(s.rates))
	for k, v := range s.rates {
		snap[k] = v
	}
	return snap
}

// Text renders the rate line used by the board.
func (s *Store) Text(currency string) string {
	rate, ok := s.Get(currency)
	return FormatText(currency, s.home, rate, ok)
}

// Smooth applies the one-third weighted moving average.
func Smooth(prev, sample decimal.Decimal) decimal.Decimal {
	return prev.Mul(two).Add(sample).Div(three)
}

// FormatText renders "1 USD = 150.123 JPY", or a pending marker when the rate
// has not been fetched yet.
func FormatText(currency, home string, rate decimal.Decimal, known bool) string {
	if !known {
		return fmt.Sprintf("1 %s = 取得中...", currency)
	}
	return fmt.Sprintf("1 %s = %s %s", currency, rate.StringFixed(3), home)
}

// Snapshot is an immutable view of the store taken at one instant.
type Snapshot map[string]decimal.Decimal

// Rate looks up a currency in the snapshot.
func (s Snapshot) Rate(currency string) (decimal.Decimal, bool) {
	rate, ok := s[currency]
	return rate, ok
}
