package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"worldclock-fx/internal/city"
	"worldclock-fx/internal/notify"
	"worldclock-fx/internal/rates"
)

// NotificationTitle heads every alert notification.
const NotificationTitle = "WorldClock 為替アラート"

// Dispatcher delivers a notification to the configured channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, note *notify.Notification)
}

// Trigger is one Active → Triggered transition from a sweep.
type Trigger struct {
	Record  Record
	Rate    decimal.Decimal
	Message string
}

// Evaluator sweeps the ledger against rate snapshots.
type Evaluator struct {
	ledger     *Ledger
	dispatcher Dispatcher
	home       string
	now        func() time.Time
	logger     zerolog.Logger
}

// NewEvaluator wires a ledger to a dispatcher. A nil dispatcher only records
// transitions.
func NewEvaluator(ledger *Ledger, dispatcher Dispatcher, home string, logger zerolog.Logger) *Evaluator {
	if home == "" {
		home = city.HomeCurrency
	}
	return &Evaluator{
		ledger:     ledger,
		dispatcher: dispatcher,
		home:       home,
		now:        time.Now,
		logger:     logger.With().Str("component", "alert_evaluator").Logger(),
	}
}

// Sweep reloads the stored ledger, then evaluates every active record, in
// ledger order, against snap.
// Transitions are persisted before any notification goes out, and each
// transition is dispatched exactly once.
func (e *Evaluator) Sweep(ctx context.Context, snap rates.Snapshot) []Trigger {
	triggers := e.commit(ctx, snap)

	for _, trig := range triggers {
		e.logger.Info().Int64("alert_id", trig.Record.ID).
			Str("currency", trig.Record.Currency).
			Str("rate", trig.Rate.StringFixed(3)).
			Msgf("為替アラート発火: #%d", trig.Record.ID)

		if e.dispatcher == nil {
			continue
		}
		e.dispatcher.Dispatch(ctx, &notify.Notification{
			AlertID:   trig.Record.ID,
			Title:     NotificationTitle,
			Message:   trig.Message,
			Timestamp: e.now(),
		})
	}
	return triggers
}

func (e *Evaluator) commit(ctx context.Context, snap rates.Snapshot) []Trigger {
	l := e.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	l.syncLocked(ctx)

	var triggers []Trigger
	for i := range l.records {
		rec := &l.records[i]
		if !rec.Active {
			continue
		}
		if _, ok := l.catalog.Lookup(rec.CityName); !ok {
			continue
		}
		rate, ok := e.rateFor(snap, rec.Currency)
		if !ok {
			continue
		}
		if !rec.Direction.Reached(rate, rec.TargetRate) {
			continue
		}

		rec.Active = false
		rec.Triggered = true
		triggers = append(triggers, Trigger{
			Record:  *rec,
			Rate:    rate,
			Message: FormatMessage(*rec, rate, e.home),
		})
	}

	if len(triggers) > 0 {
		l.persistLocked(ctx)
	}
	return triggers
}

func (e *Evaluator) rateFor(snap rates.Snapshot, currency string) (decimal.Decimal, bool) {
	if currency == e.home {
		return decimal.NewFromInt(1), true
	}
	return snap.Rate(currency)
}

// FormatMessage renders "アメリカ: 1 USD = 145.556 JPY (150.000 以下)".
func FormatMessage(rec Record, rate decimal.Decimal, home string) string {
	return fmt.Sprintf("%s: 1 %s = %s %s (%s %s)",
		rec.CityName, rec.Currency, rate.StringFixed(3), home, rec.TargetRate.StringFixed(3), rec.Direction.Label())
}
