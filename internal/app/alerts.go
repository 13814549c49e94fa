package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"worldclock-fx/internal/alerting"
	"worldclock-fx/internal/city"
	"worldclock-fx/internal/storage"
)

// Output formats for alert listings.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// AlertAddOptions describe a new alert.
type AlertAddOptions struct {
	City      string
	Direction string
	Rate      float64
}

// alertView is the listing shape shared by json and yaml output.
type alertView struct {
	ID         int64  `json:"id" yaml:"id"`
	City       string `json:"city" yaml:"city"`
	Currency   string `json:"currency" yaml:"currency"`
	Direction  string `json:"direction" yaml:"direction"`
	TargetRate string `json:"target_rate" yaml:"target_rate"`
	State      string `json:"state" yaml:"state"`
}

func (a *App) withLedger(ctx context.Context, fn func(*alerting.Ledger) error) error {
	backend, err := storage.Open(ctx, a.Config.Storage, a.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("close storage failed")
		}
	}()

	ledger, err := a.openLedger(ctx, backend, city.Default())
	if err != nil {
		return err
	}
	if err := fn(ledger); err != nil {
		return err
	}
	return ledger.Flush(ctx)
}

// AddAlert registers a new alert and prints it.
func (a *App) AddAlert(ctx context.Context, opts AlertAddOptions) error {
	direction, err := alerting.ParseDirection(opts.Direction)
	if err != nil {
		return err
	}
	return a.withLedger(ctx, func(ledger *alerting.Ledger) error {
		rec, err := ledger.Add(ctx, opts.City, direction, opts.Rate)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "予約追加: %s\n", rec.Describe(city.HomeCurrency))
		fmt.Fprintln(a.Out, ledger.StatusText())
		return nil
	})
}

// ListAlerts prints the ledger in the requested format.
func (a *App) ListAlerts(ctx context.Context, format string) error {
	return a.withLedger(ctx, func(ledger *alerting.Ledger) error {
		records := ledger.Records()
		switch strings.ToLower(format) {
		case "", FormatTable:
			return a.writeAlertTable(ledger, records)
		case FormatJSON:
			enc := json.NewEncoder(a.Out)
			enc.SetIndent("", "  ")
			return enc.Encode(alertViews(records))
		case FormatYAML:
			enc := yaml.NewEncoder(a.Out)
			enc.SetIndent(2)
			if err := enc.Encode(alertViews(records)); err != nil {
				return err
			}
			return enc.Close()
		default:
			return &alerting.ValidationError{Field: "output", Reason: fmt.Sprintf("unknown format %q", format)}
		}
	})
}

func (a *App) writeAlertTable(ledger *alerting.Ledger, records []alerting.Record) error {
	fmt.Fprintln(a.Out, ledger.StatusText())
	if len(records) == 0 {
		fmt.Fprintln(a.Out, "予約はありません")
		return nil
	}
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tCity\tCurrency\tCondition\tState")
	for _, rec := range records {
		fmt.Fprintf(writer, "#%d\t%s\t%s\t%s %s %s\t%s\n",
			rec.ID,
			rec.CityName,
			rec.Currency,
			rec.Direction.Label(),
			rec.TargetRate.StringFixed(3),
			city.HomeCurrency,
			rec.StateLabel(),
		)
	}
	return writer.Flush()
}

func alertViews(records []alerting.Record) []alertView {
	views := make([]alertView, 0, len(records))
	for _, rec := range records {
		views = append(views, alertView{
			ID:         rec.ID,
			City:       rec.CityName,
			Currency:   rec.Currency,
			Direction:  string(rec.Direction),
			TargetRate: rec.TargetRate.StringFixed(3),
			State:      rec.StateLabel(),
		})
	}
	return views
}

// CancelAlert deactivates one alert.
func (a *App) CancelAlert(ctx context.Context, id int64) error {
	return a.withLedger(ctx, func(ledger *alerting.Ledger) error {
		if _, err := ledger.Cancel(ctx, id); err != nil {
			return fmt.Errorf("#%d: %w", id, err)
		}
		fmt.Fprintf(a.Out, "予約解除: #%d\n", id)
		return nil
	})
}

// DeleteAlerts removes alerts by id; unknown ids are skipped.
func (a *App) DeleteAlerts(ctx context.Context, ids []int64) error {
	return a.withLedger(ctx, func(ledger *alerting.Ledger) error {
		n := ledger.DeleteMany(ctx, ids)
		fmt.Fprintf(a.Out, "%d件削除しました\n", n)
		return nil
	})
}

// SelectCity stores the default city for new alerts.
func (a *App) SelectCity(ctx context.Context, name string) error {
	return a.withLedger(ctx, func(ledger *alerting.Ledger) error {
		if err := ledger.SelectCity(ctx, name); err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "選択: %s\n", ledger.AlertCity().Name)
		return nil
	})
}
