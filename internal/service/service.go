package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"worldclock-fx/internal/alarm"
	"worldclock-fx/internal/alerting"
	"worldclock-fx/internal/city"
	"worldclock-fx/internal/clock"
	"worldclock-fx/internal/display"
	"worldclock-fx/internal/fetcher"
	"worldclock-fx/internal/notify"
	"worldclock-fx/internal/rates"
	"worldclock-fx/internal/scheduler"
	"worldclock-fx/internal/storage"
)

// Chimer plays the short alarm and timer beep.
type Chimer interface {
	Chime(ctx context.Context) error
}

// Waiter joins in-flight notification deliveries.
type Waiter interface {
	Wait()
}

// Options wires a Service. History, Banner, Chime, Alarm, Timer, Board and
// Deliveries are optional.
type Options struct {
	Catalog    *city.Catalog
	Engine     clock.Engine
	Rates      *rates.Store
	Refresher  *fetcher.Refresher
	Ledger     *alerting.Ledger
	Evaluator  *alerting.Evaluator
	History    storage.History
	Banner     *notify.Banner
	Chime      Chimer
	Alarm      *alarm.Alarm
	Timer      *alarm.Countdown
	Board      *display.Board
	Out        io.Writer
	Deliveries Waiter
	Fast       *scheduler.Scheduler
	Slow       *scheduler.Scheduler
}

// Service is the application state: it owns the selected city and the
// notice line, and drives the fast (display, countdown) and slow (refresh,
// sweep) ticks.
type Service struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	selected city.City
	notice   string
	lastSync time.Time
}

// New constructs the service.
func New(opts Options, logger zerolog.Logger) *Service {
	if opts.Catalog == nil {
		opts.Catalog = city.Default()
	}
	if opts.Engine == nil {
		opts.Engine = clock.NewEngine(city.HomeTimezone, city.HomeLabel)
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	selected := opts.Catalog.First()
	if opts.Ledger != nil {
		selected = opts.Ledger.AlertCity()
	}
	return &Service{
		opts:     opts,
		logger:   logger.With().Str("component", "service").Logger(),
		now:      time.Now,
		selected: selected,
	}
}

// Select makes name the displayed city and the default alert city.
func (s *Service) Select(ctx context.Context, name string) error {
	c, ok := s.opts.Catalog.Lookup(name)
	if !ok {
		return &alerting.ValidationError{Field: "city", Reason: fmt.Sprintf("unknown city %q", name)}
	}
	if s.opts.Ledger != nil {
		if err := s.opts.Ledger.SelectCity(ctx, name); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.selected = c
	s.mu.Unlock()
	return nil
}

// Selected returns the displayed city.
func (s *Service) Selected() city.City {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// SetNotice replaces the status line.
func (s *Service) SetNotice(msg string) {
	s.mu.Lock()
	s.notice = msg
	s.mu.Unlock()
	s.logger.Debug().Str("notice", msg).Msg("notice")
}

// Notice returns the status line.
func (s *Service) Notice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notice
}

// Run starts both tick loops and blocks until ctx ends. The ledger is
// flushed and pending deliveries are joined before returning.
func (s *Service) Run(ctx context.Context) error {
	if s.opts.Fast == nil || s.opts.Slow == nil {
		return fmt.Errorf("scheduler not configured")
	}

	if s.opts.Alarm != nil {
		s.opts.Alarm.Start()
		defer s.opts.Alarm.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.opts.Fast.Run(gctx, s.FastTick) })
	g.Go(func() error { return s.opts.Slow.Run(gctx, s.RefreshTick) })
	err := g.Wait()

	s.Shutdown()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown flushes the ledger and waits for deliveries.
func (s *Service) Shutdown() {
	if s.opts.Ledger != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.opts.Ledger.Flush(flushCtx); err != nil {
			s.logger.Error().Err(err).Msg("flush alert state on shutdown failed")
		}
	}
	if s.opts.Deliveries != nil {
		s.opts.Deliveries.Wait()
	}
}

// FastTick advances the countdown and redraws the board.
func (s *Service) FastTick(ctx context.Context, _ time.Time) error {
	if s.opts.Timer != nil && s.opts.Timer.Tick() {
		s.SetNotice("タイマー終了")
		s.chime(ctx)
	}
	if s.opts.Board == nil {
		return nil
	}
	if err := s.opts.Board.Draw(s.opts.Out, s.View(s.now())); err != nil {
		return fmt.Errorf("draw board: %w", err)
	}
	return nil
}

// RefreshTick runs one refresh cycle: fetch all currencies, record the
// accepted samples, then sweep the ledger against the post-refresh snapshot.
// Provider faults become the notice and never abort the sweep.
func (s *Service) RefreshTick(ctx context.Context, at time.Time) error {
	cycle := uuid.New()
	result, err := s.opts.Refresher.RefreshAll(ctx, s.opts.Catalog.Currencies())

	if err != nil {
		s.SetNotice("為替更新エラー: " + err.Error())
	} else {
		s.mu.Lock()
		s.lastSync = s.now()
		s.mu.Unlock()
		s.SetNotice("為替更新(API): " + s.now().In(s.homeLocation()).Format("15:04:05"))
	}

	s.recordHistory(ctx, cycle, result, at)

	if s.opts.Evaluator == nil {
		return nil
	}
	triggers := s.opts.Evaluator.Sweep(ctx, s.opts.Rates.Snapshot())
	for _, trig := range triggers {
		s.SetNotice(fmt.Sprintf("為替アラート発火: #%d", trig.Record.ID))
	}

	s.logger.Debug().Str("cycle", cycle.String()).
		Int("updated", len(result.Updated)).
		Int("faults", len(result.Faults)).
		Int("triggers", len(triggers)).
		Msg("refresh cycle complete")
	return nil
}

// LastSync is the time of the last fault-free refresh.
func (s *Service) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

// OnAlarm is the alarm callback.
func (s *Service) OnAlarm(f alarm.Firing) {
	s.SetNotice(f.Notice())
	s.chime(context.Background())
}

// View composes the current board frame.
func (s *Service) View(now time.Time) display.View {
	selected := s.Selected()
	view := display.Compose(now, s.opts.Engine, s.opts.Catalog, s.opts.Rates.Snapshot(), selected)
	view.Notice = s.Notice()
	if s.opts.Ledger != nil {
		view.AlertStatus = s.opts.Ledger.StatusText()
	}
	if s.opts.Alarm != nil {
		if s.opts.Alarm.Armed() {
			view.Alarm = s.opts.Alarm.Status()
		} else {
			view.Alarm = fmt.Sprintf("未設定 (現在: %s)", s.opts.Engine.HourMinute(now, selected.Timezone))
		}
	}
	if s.opts.Timer != nil && (s.opts.Timer.Running() || s.opts.Timer.Remaining() > 0) {
		view.Timer = s.opts.Timer.Status()
	}
	if s.opts.Banner != nil {
		view.LiveAlerts = s.opts.Banner.Recent()
	}
	return view
}

func (s *Service) recordHistory(ctx context.Context, cycle uuid.UUID, result fetcher.Result, at time.Time) {
	if s.opts.History == nil || len(result.Updated) == 0 {
		return
	}
	samples := make([]storage.RateSample, 0, len(result.Updated))
	for _, currency := range result.Updated {
		smoothed, ok := s.opts.Rates.Get(currency)
		if !ok {
			continue
		}
		samples = append(samples, storage.RateSample{
			CycleID:    cycle,
			Currency:   currency,
			Sample:     result.Samples[currency],
			Smoothed:   smoothed,
			RecordedAt: at.UTC(),
		})
	}
	if err := s.opts.History.AppendSamples(ctx, samples); err != nil {
		s.logger.Error().Err(err).Str("cycle", cycle.String()).Msg("failed to record rate samples")
	}
}

func (s *Service) chime(ctx context.Context) {
	if s.opts.Chime == nil {
		return
	}
	if err := s.opts.Chime.Chime(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("chime failed")
	}
}

func (s *Service) homeLocation() *time.Location {
	loc, err := time.LoadLocation(city.HomeTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
