package rates

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSetSmoothedColdStart(t *testing.T) {
	s := NewStore("JPY")
	if !s.SetSmoothed("USD", 150.25) {
		t.Fatal("first valid sample should be accepted")
	}
	got, ok := s.Get("USD")
	if !ok || !got.Equal(decimal.NewFromFloat(150.25)) {
		t.Fatalf("expected 150.25, got %s (ok=%v)", got, ok)
	}
}

func TestSetSmoothedTwice(t *testing.T) {
	s := NewStore("JPY")
	s.SetSmoothed("USD", 160)
	s.SetSmoothed("USD", 140)

	want := decimal.NewFromInt(2*160 + 140).Div(decimal.NewFromInt(3))
	got, _ := s.Get("USD")
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if got.StringFixed(2) != "153.33" {
		t.Fatalf("expected 153.33, got %s", got.StringFixed(2))
	}
}

func TestSetSmoothedRejectsInvalid(t *testing.T) {
	s := NewStore("JPY")
	s.SetSmoothed("EUR", 162)

	for _, bad := range []float64{0, -4, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if s.SetSmoothed("EUR", bad) {
			t.Fatalf("sample %v should be rejected", bad)
		}
		if s.SetSmoothed("GBP", bad) {
			t.Fatalf("sample %v should be rejected on empty currency", bad)
		}
	}

	got, _ := s.Get("EUR")
	if !got.Equal(decimal.NewFromInt(162)) {
		t.Fatalf("rejected samples changed EUR to %s", got)
	}
	if _, ok := s.Get("GBP"); ok {
		t.Fatal("rejected samples must not create a rate")
	}
}

func TestHomeCurrencyPinned(t *testing.T) {
	s := NewStore("JPY")
	if s.SetSmoothed("JPY", 5) {
		t.Fatal("home currency must not be updated")
	}
	got, ok := s.Get("JPY")
	if !ok || !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("home currency should be 1, got %s", got)
	}
}

func TestSnapshotIsolated(t *testing.T) {
	s := NewStore("JPY")
	s.SetSmoothed("USD", 150)
	snap := s.Snapshot()
	s.SetSmoothed("USD", 120)

	rate, ok := snap.Rate("USD")
	if !ok || !rate.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("snapshot changed after later write: %s", rate)
	}
}

func TestText(t *testing.T) {
	s := NewStore("JPY")
	if got := s.Text("TRY"); got != "1 TRY = 取得中..." {
		t.Fatalf("unexpected pending text: %s", got)
	}
	if got := s.Text("JPY"); got != "1 JPY = 1.000 JPY" {
		t.Fatalf("unexpected home text: %s", got)
	}
	s.SetSmoothed("USD", 149.5)
	if got := s.Text("USD"); got != "1 USD = 149.500 JPY" {
		t.Fatalf("unexpected USD text: %s", got)
	}
}

func TestApplyFoldsWholeCycle(t *testing.T) {
	s := NewStore("JPY")
	s.SetSmoothed("USD", 160)

	accepted := s.Apply(map[string]float64{"USD": 140, "EUR": 162, "GBP": -1, "JPY": 2})
	if len(accepted) != 2 || accepted[0] != "EUR" || accepted[1] != "USD" {
		t.Fatalf("unexpected accepted set %v", accepted)
	}
	if got, _ := s.Get("USD"); got.StringFixed(3) != "153.333" {
		t.Fatalf("USD should be smoothed, got %s", got)
	}
	if _, ok := s.Get("GBP"); ok {
		t.Fatal("rejected sample must not be stored")
	}
	if got, _ := s.Get("JPY"); !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("home currency must stay 1, got %s", got)
	}
}
