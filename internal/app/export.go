package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"worldclock-fx/internal/city"
	"worldclock-fx/internal/storage"
)

const defaultMaxPoints = 500

// Export renders historical samples as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = defaultMaxPoints
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.RefreshInterval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	backend, err := storage.Open(ctx, a.Config.Storage, a.Logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	samples, err := backend.ListSamplesBetween(ctx, strings.ToUpper(opts.Currency), from, to)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		a.Logger.Info().Msg("no samples found for export window")
		return nil
	}

	series := groupByCurrency(samples)
	exported := 0
	for currency, s := range series {
		series[currency] = downsampleSamples(s, opts.MaxPoints)
		exported += len(series[currency])
	}
	a.Logger.Info().Int("total", len(samples)).Int("exported", exported).Int("currencies", len(series)).Msg("exporting samples")

	if opts.CSVPath != "" {
		if err := writeSamplesCSV(opts.CSVPath, series); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSamplesPNG(opts.PNGPath, series); err != nil {
			return err
		}
	}

	return nil
}

func groupByCurrency(samples []storage.RateSample) map[string][]storage.RateSample {
	out := make(map[string][]storage.RateSample)
	for _, s := range samples {
		out[s.Currency] = append(out[s.Currency], s)
	}
	return out
}

func sortedCurrencies(series map[string][]storage.RateSample) []string {
	keys := make([]string, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func downsampleSamples(samples []storage.RateSample, max int) []storage.RateSample {
	if max <= 0 || len(samples) <= max {
		return samples
	}
	if max == 1 {
		return samples[len(samples)-1:]
	}

	result := make([]storage.RateSample, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

func writeSamplesCSV(path string, series map[string][]storage.RateSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"recorded_at", "cycle_id", "currency", "sample_" + strings.ToLower(city.HomeCurrency), "smoothed_" + strings.ToLower(city.HomeCurrency)}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, currency := range sortedCurrencies(series) {
		for _, sample := range series[currency] {
			record := []string{
				sample.RecordedAt.UTC().Format(time.RFC3339),
				sample.CycleID.String(),
				sample.Currency,
				strconv.FormatFloat(sample.Sample, 'f', -1, 64),
				sample.Smoothed.String(),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeSamplesPNG(path string, series map[string][]storage.RateSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	rateFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.3f")
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Rate (" + city.HomeCurrency + ")",
			ValueFormatter: rateFormatter,
		},
	}

	for _, currency := range sortedCurrencies(series) {
		samples := series[currency]
		if len(samples) < 2 {
			continue
		}
		x := make([]time.Time, len(samples))
		smoothed := make([]float64, len(samples))
		for i, sample := range samples {
			x[i] = sample.RecordedAt
			smoothed[i] = sample.Smoothed.InexactFloat64()
		}
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name:    currency,
			XValues: x,
			YValues: smoothed,
		})
		if len(series) == 1 {
			raw := make([]float64, len(samples))
			for i, sample := range samples {
				raw[i] = sample.Sample
			}
			graph.Series = append(graph.Series, chart.TimeSeries{
				Name:    currency + " (raw)",
				XValues: x,
				YValues: raw,
			})
		}
	}
	if len(graph.Series) == 0 {
		return errors.New("not enough samples to draw a chart")
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
