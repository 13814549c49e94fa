package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a single channel delivery.
const DefaultTimeout = 10 * time.Second

// FanOut delivers each notification to every available channel concurrently.
// Dispatch never blocks on delivery.
type FanOut struct {
	notifiers []Notifier
	timeout   time.Duration
	logger    zerolog.Logger
	wg        sync.WaitGroup
}

// NewFanOut composes channels. A non-positive timeout uses DefaultTimeout.
func NewFanOut(timeout time.Duration, logger zerolog.Logger, notifiers ...Notifier) *FanOut {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &FanOut{
		notifiers: notifiers,
		timeout:   timeout,
		logger:    logger.With().Str("component", "notify").Logger(),
	}
}

// Names lists the configured channels in order.
func (f *FanOut) Names() []string {
	names := make([]string, 0, len(f.notifiers))
	for _, n := range f.notifiers {
		names = append(names, n.Name())
	}
	return names
}

// Dispatch starts one delivery per channel and returns at once; unavailable
// channels are skipped inside the delivery.
// Deliveries outlive ctx cancellation up to the channel timeout so a shutdown
// right after a trigger still reaches the channels; use Wait to join them.
func (f *FanOut) Dispatch(ctx context.Context, note *Notification) {
	if note.Timestamp.IsZero() {
		note.Timestamp = time.Now()
	}
	base := context.WithoutCancel(ctx)

	for _, n := range f.notifiers {
		f.wg.Add(1)
		go f.deliver(base, n, note)
	}
}

// Wait blocks until every started delivery has finished.
func (f *FanOut) Wait() {
	f.wg.Wait()
}

func (f *FanOut) deliver(ctx context.Context, n Notifier, note *Notification) {
	defer f.wg.Done()

	log := f.logger.With().Str("channel", n.Name()).Int64("alert_id", note.AlertID).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Msg("notifier panicked")
		}
	}()

	if !n.Available() {
		log.Debug().Msg("channel unavailable, skipped")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	if err := n.Notify(ctx, note); err != nil {
		log.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("notification failed")
		return
	}
	log.Debug().Dur("elapsed", time.Since(start)).Msg("notification delivered")
}
