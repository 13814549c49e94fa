package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const (
	// WarningBeeps is the length of the alert pattern.
	WarningBeeps = 5
	// DefaultBeepGap spaces the beeps of the pattern.
	DefaultBeepGap = 220 * time.Millisecond
)

const bell = "\a"

// Audio rings the terminal bell. Alerts get the warning pattern; Chime is a
// single beep for the alarm and the countdown.
type Audio struct {
	mu    sync.Mutex
	out   io.Writer
	beeps int
	gap   time.Duration
}

// NewAudio writes to out (stderr when nil).
func NewAudio(out io.Writer, gap time.Duration) *Audio {
	if out == nil {
		out = os.Stderr
	}
	if gap <= 0 {
		gap = DefaultBeepGap
	}
	return &Audio{out: out, beeps: WarningBeeps, gap: gap}
}

func (a *Audio) Name() string {
	return "audio"
}

func (a *Audio) Available() bool {
	return true
}

// Notify plays the warning pattern, stopping early if ctx ends.
func (a *Audio) Notify(ctx context.Context, _ *Notification) error {
	return a.play(ctx, a.beeps)
}

// Chime plays one beep.
func (a *Audio) Chime(ctx context.Context) error {
	return a.play(ctx, 1)
}

func (a *Audio) play(ctx context.Context, beeps int) error {
	for i := 0; i < beeps; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(a.gap):
			}
		}
		a.mu.Lock()
		_, err := io.WriteString(a.out, bell)
		a.mu.Unlock()
		if err != nil {
			return fmt.Errorf("ring bell: %w", err)
		}
	}
	return nil
}

var _ Notifier = (*Audio)(nil)
