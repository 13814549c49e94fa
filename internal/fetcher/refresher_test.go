package fetcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubProvider struct {
	mu    sync.Mutex
	rates map[string]float64
	fail  map[string]error
	delay map[string]time.Duration
	calls []string
}

func (s *stubProvider) FetchRate(ctx context.Context, currency string) (float64, error) {
	s.mu.Lock()
	s.calls = append(s.calls, currency)
	d := s.delay[currency]
	s.mu.Unlock()

	if d > 0 {
		time.Sleep(d)
	}
	if err, ok := s.fail[currency]; ok {
		return 0, err
	}
	return s.rates[currency], nil
}

type recordingSink struct {
	mu      sync.Mutex
	samples map[string]float64
	batches int
}

func (r *recordingSink) Apply(samples map[string]float64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches++
	if r.samples == nil {
		r.samples = make(map[string]float64)
	}
	var accepted []string
	for currency, sample := range samples {
		if sample <= 0 {
			continue
		}
		r.samples[currency] = sample
		accepted = append(accepted, currency)
	}
	return accepted
}

func TestRefreshAllSuccess(t *testing.T) {
	provider := &stubProvider{rates: map[string]float64{"USD": 150, "EUR": 162}}
	sink := &recordingSink{}
	r := NewRefresher(provider, sink, "JPY", noopLogger())

	res, err := r.RefreshAll(context.Background(), []string{"JPY", "USD", "EUR", "USD"})
	if err != nil {
		t.Fatalf("RefreshAll should succeed: %v", err)
	}
	if !res.OK() || len(res.Updated) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(provider.calls) != 2 {
		t.Fatalf("home currency and duplicates must not be fetched, calls=%v", provider.calls)
	}
	if sink.samples["USD"] != 150 || sink.samples["EUR"] != 162 {
		t.Fatalf("sink not updated: %v", sink.samples)
	}
	if res.Samples["USD"] != 150 {
		t.Fatalf("raw sample not reported: %v", res.Samples)
	}
	if sink.batches != 1 {
		t.Fatalf("cycle should reach the sink in one batch, got %d", sink.batches)
	}
}

func TestRefreshAllKeepsPartialUpdates(t *testing.T) {
	provider := &stubProvider{
		rates: map[string]float64{"USD": 150, "GBP": 190},
		fail: map[string]error{
			"EUR": &Fault{Currency: "EUR", Reason: ReasonStatus, Status: 500},
			"TRY": errors.New("connection reset"),
		},
		delay: map[string]time.Duration{"TRY": 30 * time.Millisecond},
	}
	sink := &recordingSink{}
	r := NewRefresher(provider, sink, "JPY", noopLogger())

	res, err := r.RefreshAll(context.Background(), []string{"USD", "EUR", "GBP", "TRY"})
	if err == nil {
		t.Fatal("aggregate error expected when a fetch fails")
	}

	var fault *Fault
	if !errors.As(err, &fault) || fault.Currency != "EUR" {
		t.Fatalf("first fault should be EUR, got %v", err)
	}
	if len(res.Faults) != 2 {
		t.Fatalf("expected two faults, got %d", len(res.Faults))
	}
	if sink.samples["USD"] != 150 || sink.samples["GBP"] != 190 {
		t.Fatalf("successful siblings must be retained: %v", sink.samples)
	}
	for _, f := range res.Faults {
		if f.Currency == "TRY" && f.Reason != ReasonTransport {
			t.Fatalf("plain errors should classify as transport, got %s", f.Reason)
		}
	}
}

func TestRefreshAllRejectedSampleIsFault(t *testing.T) {
	provider := &stubProvider{rates: map[string]float64{"AUD": -1}}
	r := NewRefresher(provider, &recordingSink{}, "JPY", noopLogger())

	res, err := r.RefreshAll(context.Background(), []string{"AUD"})
	if err == nil || len(res.Faults) != 1 || res.Faults[0].Reason != ReasonPayload {
		t.Fatalf("rejected sample should surface as payload fault: %v %+v", err, res)
	}
	if len(res.Updated) != 0 || len(res.Samples) != 0 {
		t.Fatalf("rejected sample must not count as updated: %+v", res)
	}
}

func TestRefreshAllSkipsSinkWhenNothingFetched(t *testing.T) {
	provider := &stubProvider{fail: map[string]error{"USD": errors.New("dns")}}
	sink := &recordingSink{}
	r := NewRefresher(provider, sink, "JPY", noopLogger())

	if _, err := r.RefreshAll(context.Background(), []string{"USD"}); err == nil {
		t.Fatal("expected error")
	}
	if sink.batches != 0 {
		t.Fatalf("sink should not be called without samples, got %d", sink.batches)
	}
}
