package fetcher

import (
	"context"
	"fmt"
)

// RateProvider returns the home-currency price of one unit of currency.
type RateProvider interface {
	FetchRate(ctx context.Context, currency string) (float64, error)
}

// Reason classifies a provider fault.
type Reason string

const (
	ReasonTransport Reason = "transport"
	ReasonStatus    Reason = "status"
	ReasonPayload   Reason = "payload"
)

// Fault is a non-fatal failure fetching one currency.
type Fault struct {
	Currency string
	Reason   Reason
	Status   int
	Err      error
}

func (f *Fault) Error() string {
	switch f.Reason {
	case ReasonStatus:
		return fmt.Sprintf("%s: HTTP %d", f.Currency, f.Status)
	case ReasonPayload:
		return fmt.Sprintf("%s: invalid payload", f.Currency)
	default:
		if f.Err != nil {
			return fmt.Sprintf("%s: %v", f.Currency, f.Err)
		}
		return fmt.Sprintf("%s: fetch failed", f.Currency)
	}
}

func (f *Fault) Unwrap() error {
	return f.Err
}
