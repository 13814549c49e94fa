package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// DefaultBannerKeep is how many live alerts the banner retains.
const DefaultBannerKeep = 5

// Banner is the visual live-alert channel. It keeps the most recent alerts,
// newest first, for the board to render, and optionally prints each one.
type Banner struct {
	mu     sync.Mutex
	out    io.Writer
	keep   int
	recent []Notification
	style  lipgloss.Style
}

// NewBanner prints to out when non-nil. color toggles the highlight.
func NewBanner(out io.Writer, keep int, color bool) *Banner {
	if keep <= 0 {
		keep = DefaultBannerKeep
	}
	return &Banner{
		out:   out,
		keep:  keep,
		style: BannerStyle(color),
	}
}

// BannerStyle is the live-alert box style shared with the board.
func BannerStyle(color bool) lipgloss.Style {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1).
		Bold(true)
	if color {
		style = style.
			BorderForeground(lipgloss.Color("#E5484D")).
			Foreground(lipgloss.Color("#FFB224"))
	}
	return style
}

func (b *Banner) Name() string {
	return "banner"
}

func (b *Banner) Available() bool {
	return true
}

func (b *Banner) Notify(_ context.Context, note *Notification) error {
	b.mu.Lock()
	b.recent = append([]Notification{*note}, b.recent...)
	if len(b.recent) > b.keep {
		b.recent = b.recent[:b.keep]
	}
	b.mu.Unlock()

	if b.out == nil {
		return nil
	}
	if _, err := fmt.Fprintln(b.out, b.Render(note)); err != nil {
		return fmt.Errorf("write banner: %w", err)
	}
	return nil
}

// Render draws one live alert.
func (b *Banner) Render(note *Notification) string {
	return b.style.Render(fmt.Sprintf("%s  %s", note.Timestamp.Format("15:04:05"), note.Message))
}

// Recent returns the retained live alerts, newest first.
func (b *Banner) Recent() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Notification, len(b.recent))
	copy(out, b.recent)
	return out
}

// Dismiss drops the live alerts for alertID and reports whether any matched.
func (b *Banner) Dismiss(alertID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.recent[:0]
	for _, n := range b.recent {
		if n.AlertID != alertID {
			kept = append(kept, n)
		}
	}
	removed := len(kept) != len(b.recent)
	b.recent = kept
	return removed
}

var _ Notifier = (*Banner)(nil)
