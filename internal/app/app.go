package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"worldclock-fx/internal/alarm"
	"worldclock-fx/internal/alerting"
	"worldclock-fx/internal/city"
	"worldclock-fx/internal/clock"
	"worldclock-fx/internal/config"
	"worldclock-fx/internal/display"
	"worldclock-fx/internal/fetcher"
	"worldclock-fx/internal/notify"
	"worldclock-fx/internal/rates"
	"worldclock-fx/internal/scheduler"
	"worldclock-fx/internal/service"
	"worldclock-fx/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives command output and the board.
	Out io.Writer
	// Provider overrides the HTTP rate provider when set.
	Provider fetcher.RateProvider
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logger.With().Str("component", "app").Logger(),
		Out:    os.Stdout,
	}
}

// RunOptions adjust the interactive service at startup.
type RunOptions struct {
	City  string
	Alarm string
	Timer float64
}

// runtime is the wired object graph shared by the commands.
type runtime struct {
	backend   storage.Backend
	catalog   *city.Catalog
	engine    clock.Engine
	ledger    *alerting.Ledger
	rates     *rates.Store
	refresher *fetcher.Refresher
	channels  notify.Channels
	evaluator *alerting.Evaluator
	logger    zerolog.Logger
}

func (r *runtime) close() {
	if err := r.backend.Close(); err != nil {
		r.logger.Warn().Err(err).Msg("close storage failed")
	}
}

func (a *App) newProvider() fetcher.RateProvider {
	if a.Provider != nil {
		return a.Provider
	}
	return fetcher.NewERAPI(fetcher.ERAPIOptions{
		BaseURL:   a.Config.Provider.BaseURL,
		Quote:     city.HomeCurrency,
		Timeout:   a.Config.Provider.RequestTimeout,
		UserAgent: a.Config.Provider.UserAgent,
	}, a.Logger)
}

func (a *App) openLedger(ctx context.Context, kv storage.KV, catalog *city.Catalog) (*alerting.Ledger, error) {
	ledger := alerting.NewLedger(alerting.LedgerOptions{
		Store:   kv,
		Key:     a.Config.Alerts.StorageKey,
		Max:     a.Config.Alerts.Max,
		Catalog: catalog,
	}, a.Logger)
	if err := ledger.Load(ctx); err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}
	return ledger, nil
}

// build opens storage and wires every component except the schedulers.
func (a *App) build(ctx context.Context) (*runtime, error) {
	backend, err := storage.Open(ctx, a.Config.Storage, a.Logger)
	if err != nil {
		return nil, err
	}

	catalog := city.Default()
	ledger, err := a.openLedger(ctx, backend, catalog)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	store := rates.NewStore(city.HomeCurrency)
	channels := notify.Build(a.Config, a.Out, a.Logger)

	return &runtime{
		backend:   backend,
		catalog:   catalog,
		engine:    clock.NewEngine(city.HomeTimezone, city.HomeLabel),
		ledger:    ledger,
		rates:     store,
		refresher: fetcher.NewRefresher(a.newProvider(), store, city.HomeCurrency, a.Logger),
		channels:  channels,
		evaluator: alerting.NewEvaluator(ledger, channels.FanOut, city.HomeCurrency, a.Logger),
		logger:    a.Logger,
	}, nil
}

func (a *App) newService(rt *runtime, opts service.Options) *service.Service {
	opts.Catalog = rt.catalog
	opts.Engine = rt.engine
	opts.Rates = rt.rates
	opts.Refresher = rt.refresher
	opts.Ledger = rt.ledger
	opts.Evaluator = rt.evaluator
	opts.History = rt.backend
	opts.Banner = rt.channels.Banner
	opts.Chime = rt.channels.Audio
	opts.Out = a.Out
	opts.Deliveries = rt.channels.FanOut
	return service.New(opts, a.Logger)
}

// Run executes the long-running world clock service.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	sc := a.Config.Scheduler
	fast := scheduler.New(scheduler.Options{
		Name:         "fast",
		Interval:     sc.TickInterval,
		AlignToStart: sc.AlignToStart,
	}, a.Logger)
	slow := scheduler.New(scheduler.Options{
		Name:           "slow",
		Interval:       sc.RefreshInterval,
		AlignToStart:   sc.AlignToStart,
		StartupDelay:   sc.StartupDelay,
		RunImmediately: true,
	}, a.Logger)

	var board *display.Board
	if a.Config.Display.Enabled {
		board = display.NewBoard(display.Options{Clear: a.Config.Display.Clear, Color: a.Config.Display.Color})
	}

	var svc *service.Service
	alm := alarm.New(func(f alarm.Firing) { svc.OnAlarm(f) }, a.Logger)
	timer := &alarm.Countdown{}

	svc = a.newService(rt, service.Options{
		Alarm: alm,
		Timer: timer,
		Board: board,
		Fast:  fast,
		Slow:  slow,
	})

	if opts.City != "" {
		if err := svc.Select(ctx, opts.City); err != nil {
			return err
		}
	}
	if opts.Alarm != "" {
		if err := alm.Set(opts.Alarm, svc.Selected()); err != nil {
			return err
		}
	}
	if opts.Timer != 0 {
		if err := timer.Start(opts.Timer); err != nil {
			return err
		}
	}

	a.Logger.Info().
		Str("storage", a.Config.Storage.Driver).
		Strs("channels", rt.channels.FanOut.Names()).
		Dur("refresh_interval", sc.RefreshInterval).
		Msg("starting world clock service")
	if err := svc.Run(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("world clock service stopped")
	return nil
}

// Rates runs one refresh cycle and the sweep that follows it, then prints
// each city's rate line.
func (a *App) Rates(ctx context.Context) error {
	rt, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	svc := a.newService(rt, service.Options{})
	if err := svc.RefreshTick(ctx, time.Now().UTC()); err != nil {
		return err
	}
	svc.Shutdown()

	snap := rt.rates.Snapshot()
	for _, c := range rt.catalog.All() {
		rate, ok := snap.Rate(c.Currency)
		fmt.Fprintf(a.Out, "%s\t%s\n", c.Name, rates.FormatText(c.Currency, city.HomeCurrency, rate, ok))
	}
	if notice := svc.Notice(); notice != "" {
		fmt.Fprintln(a.Out, notice)
	}
	return nil
}

// Offsets renders a single board frame.
func (a *App) Offsets(ctx context.Context) error {
	rt, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	svc := a.newService(rt, service.Options{
		Board: display.NewBoard(display.Options{Color: a.Config.Display.Color}),
	})
	return svc.FastTick(ctx, time.Now())
}

// ExportOptions hold parameters for exporting historical samples.
type ExportOptions struct {
	Currency  string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Currency string
	Limit    int
}
