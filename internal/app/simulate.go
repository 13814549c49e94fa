package app

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"worldclock-fx/internal/alerting"
	"worldclock-fx/internal/city"
	"worldclock-fx/internal/notify"
	"worldclock-fx/internal/rates"
)

// SimulateAlert sweeps a scratch copy of the ledger against a synthetic rate
// for currency and delivers any triggers through the configured channels.
// The stored ledger is left untouched.
func (a *App) SimulateAlert(ctx context.Context, currency string, rate float64) error {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return &alerting.ValidationError{Field: "currency", Reason: "required"}
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return &alerting.ValidationError{Field: "rate", Reason: "must be a positive number"}
	}

	var state alerting.State
	if err := a.withLedger(ctx, func(ledger *alerting.Ledger) error {
		state = ledger.Persist()
		return nil
	}); err != nil {
		return err
	}

	catalog := city.Default()
	scratch := alerting.NewLedger(alerting.LedgerOptions{Max: a.Config.Alerts.Max, Catalog: catalog}, a.Logger)
	scratch.LoadFromPersisted(state)

	channels := notify.Build(a.Config, a.Out, a.Logger)
	if len(channels.FanOut.Names()) == 0 {
		return fmt.Errorf("no notification channel available")
	}
	evaluator := alerting.NewEvaluator(scratch, channels.FanOut, city.HomeCurrency, a.Logger)

	snap := rates.Snapshot{
		city.HomeCurrency: decimal.NewFromInt(1),
		currency:          decimal.NewFromFloat(rate),
	}
	triggers := evaluator.Sweep(ctx, snap)
	channels.FanOut.Wait()

	if len(triggers) == 0 {
		fmt.Fprintf(a.Out, "1 %s = %s %s: 発火なし\n", currency, decimal.NewFromFloat(rate).StringFixed(3), city.HomeCurrency)
		return nil
	}
	for _, trig := range triggers {
		fmt.Fprintf(a.Out, "為替アラート発火: #%d %s\n", trig.Record.ID, trig.Message)
	}
	return nil
}
