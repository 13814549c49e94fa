package app

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"worldclock-fx/internal/storage"
)

// Show prints recent rate samples, newest first.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	backend, err := storage.Open(ctx, a.Config.Storage, a.Logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	samples, err := backend.ListRecentSamples(ctx, strings.ToUpper(opts.Currency), opts.Limit)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		fmt.Fprintln(a.Out, "no samples found")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tCurrency\tSample\tSmoothed\tCycle")

	for _, sample := range samples {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%.3f\t%s\t%s\n",
			sample.RecordedAt.UTC().Format(time.RFC3339),
			sample.Currency,
			sample.Sample,
			sample.Smoothed.StringFixed(3),
			shortCycle(sample.CycleID.String()),
		)
	}

	return writer.Flush()
}

func shortCycle(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
