package fetcher

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// RateSink receives the samples of one cycle in a single step and returns
// the currencies it accepted.
type RateSink interface {
	Apply(samples map[string]float64) []string
}

// Result summarises one refresh cycle.
type Result struct {
	Updated []string
	// Samples holds the raw accepted sample per updated currency.
	Samples map[string]float64
	Faults  []*Fault
}

// OK reports whether every fetch succeeded.
func (r Result) OK() bool {
	return len(r.Faults) == 0
}

// Refresher fans a refresh cycle out to the provider, one fetch per currency.
type Refresher struct {
	provider RateProvider
	sink     RateSink
	home     string
	logger   zerolog.Logger
}

// NewRefresher wires a provider to a sink. The home currency is never fetched.
func NewRefresher(provider RateProvider, sink RateSink, home string, logger zerolog.Logger) *Refresher {
	return &Refresher{
		provider: provider,
		sink:     sink,
		home:     home,
		logger:   logger.With().Str("component", "refresher").Logger(),
	}
}

// RefreshAll fetches every distinct currency concurrently and waits for all
// of them, then hands the successful samples to the sink together so readers
// never see a half-applied cycle. Successes stay applied when siblings fail;
// the returned error is the first fault observed.
func (r *Refresher) RefreshAll(ctx context.Context, currencies []string) (Result, error) {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		faults  []*Fault
		fetched = make(map[string]float64, len(currencies))
		order   = make([]string, 0, len(currencies))
	)

	seen := make(map[string]struct{}, len(currencies))
	for _, currency := range currencies {
		if _, dup := seen[currency]; dup || currency == r.home {
			continue
		}
		seen[currency] = struct{}{}
		order = append(order, currency)
	}

	for _, currency := range order {
		g.Go(func() error {
			rate, err := r.provider.FetchRate(ctx, currency)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fault := asFault(currency, err)
				faults = append(faults, fault)
				r.logger.Warn().Err(fault).Str("currency", currency).Str("reason", string(fault.Reason)).Msg("rate fetch failed")
				return fault
			}
			fetched[currency] = rate
			return nil
		})
	}
	firstErr := g.Wait()

	result := Result{Samples: make(map[string]float64, len(fetched)), Faults: faults}
	accepted := make(map[string]struct{}, len(fetched))
	if len(fetched) > 0 {
		for _, currency := range r.sink.Apply(fetched) {
			accepted[currency] = struct{}{}
		}
	}

	for _, currency := range order {
		rate, ok := fetched[currency]
		if !ok {
			continue
		}
		if _, ok := accepted[currency]; !ok {
			fault := &Fault{Currency: currency, Reason: ReasonPayload}
			result.Faults = append(result.Faults, fault)
			r.logger.Warn().Str("currency", currency).Float64("sample", rate).Msg("rate sample rejected")
			if firstErr == nil {
				firstErr = fault
			}
			continue
		}
		result.Updated = append(result.Updated, currency)
		result.Samples[currency] = rate
	}

	return result, firstErr
}

func asFault(currency string, err error) *Fault {
	var fault *Fault
	if errors.As(err, &fault) {
		return fault
	}
	return &Fault{Currency: currency, Reason: ReasonTransport, Err: err}
}
