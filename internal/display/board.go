package display

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"worldclock-fx/internal/city"
	"worldclock-fx/internal/clock"
	"worldclock-fx/internal/notify"
	"worldclock-fx/internal/rates"
)

const clearScreen = "\033[H\033[2J"

// Row is one city line of the board.
type Row struct {
	City     city.City
	Time     string
	Diff     string
	Class    clock.Class
	Rate     string
	Selected bool
}

// View is everything one frame shows.
type View struct {
	Selected     city.City
	SelectedDate string
	SelectedTime string
	SelectedRate string
	Rows         []Row
	AlertStatus  string
	Alarm        string
	Timer        string
	Notice       string
	LiveAlerts   []notify.Notification
}

// Compose builds a frame from one instant and one rate snapshot so every row
// agrees on both.
func Compose(now time.Time, engine clock.Engine, catalog *city.Catalog, snap rates.Snapshot, selected city.City) View {
	view := View{
		Selected:     selected,
		SelectedDate: engine.Date(now, selected.Timezone),
		SelectedTime: engine.Time(now, selected.Timezone),
		SelectedRate: rateText(snap, selected.Currency),
	}
	for _, c := range catalog.All() {
		hours := engine.OffsetHours(now, c.Timezone)
		view.Rows = append(view.Rows, Row{
			City:     c,
			Time:     engine.Time(now, c.Timezone),
			Diff:     engine.FormatDiff(hours),
			Class:    clock.Classify(hours),
			Rate:     rateText(snap, c.Currency),
			Selected: c.Name == selected.Name,
		})
	}
	return view
}

func rateText(snap rates.Snapshot, currency string) string {
	rate, ok := snap.Rate(currency)
	return rates.FormatText(currency, city.HomeCurrency, rate, ok)
}

// Options tune the board.
type Options struct {
	Clear bool
	Color bool
}

// Board renders frames to a terminal.
type Board struct {
	opts   Options
	styles styles
}

type styles struct {
	header   lipgloss.Style
	clock    lipgloss.Style
	name     lipgloss.Style
	selected lipgloss.Style
	plus     lipgloss.Style
	minus    lipgloss.Style
	zero     lipgloss.Style
	muted    lipgloss.Style
	notice   lipgloss.Style
	live     lipgloss.Style
}

func newStyles(color bool) styles {
	s := styles{
		header:   lipgloss.NewStyle().Bold(true),
		clock:    lipgloss.NewStyle().Bold(true),
		name:     lipgloss.NewStyle().Width(16),
		selected: lipgloss.NewStyle().Width(16).Bold(true),
		plus:     lipgloss.NewStyle().Width(12),
		minus:    lipgloss.NewStyle().Width(12),
		zero:     lipgloss.NewStyle().Width(12),
		muted:    lipgloss.NewStyle(),
		notice:   lipgloss.NewStyle(),
		live:     notify.BannerStyle(color),
	}
	if !color {
		return s
	}
	s.header = s.header.Foreground(lipgloss.Color("#7D56F4"))
	s.clock = s.clock.Foreground(lipgloss.Color("#FAFAFA"))
	s.selected = s.selected.Foreground(lipgloss.Color("#FFB224"))
	s.plus = s.plus.Foreground(lipgloss.Color("#30A46C"))
	s.minus = s.minus.Foreground(lipgloss.Color("#E5484D"))
	s.zero = s.zero.Foreground(lipgloss.Color("#8B8D98"))
	s.muted = s.muted.Foreground(lipgloss.Color("#8B8D98"))
	s.notice = s.notice.Foreground(lipgloss.Color("#0090FF"))
	return s
}

// NewBoard builds a board.
func NewBoard(opts Options) *Board {
	return &Board{opts: opts, styles: newStyles(opts.Color)}
}

// Render draws a frame.
func (b *Board) Render(v View) string {
	st := b.styles
	lines := []string{
		st.header.Render(fmt.Sprintf("WorldClock  %s (%s)", v.Selected.Timezone, v.Selected.Name)),
		st.clock.Render(fmt.Sprintf("%s %s", v.SelectedDate, v.SelectedTime)),
		v.SelectedRate,
		"",
	}

	for _, row := range v.Rows {
		nameStyle := st.name
		marker := "  "
		if row.Selected {
			nameStyle = st.selected
			marker = "> "
		}
		lines = append(lines, marker+nameStyle.Render(row.City.Name)+
			st.name.Width(10).Render(row.Time)+
			b.diffStyle(row.Class).Render(row.Diff)+
			row.Rate)
	}

	lines = append(lines, "")
	status := []string{v.AlertStatus}
	if v.Alarm != "" {
		status = append(status, "アラーム: "+v.Alarm)
	}
	if v.Timer != "" {
		status = append(status, "タイマー: "+v.Timer)
	}
	lines = append(lines, st.muted.Render(strings.Join(status, "  |  ")))
	if v.Notice != "" {
		lines = append(lines, st.notice.Render(v.Notice))
	}
	for _, note := range v.LiveAlerts {
		lines = append(lines, st.live.Render(fmt.Sprintf("#%d  %s", note.AlertID, note.Message)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// Draw writes a frame, clearing the screen first when configured.
func (b *Board) Draw(w io.Writer, v View) error {
	var sb strings.Builder
	if b.opts.Clear {
		sb.WriteString(clearScreen)
	}
	sb.WriteString(b.Render(v))
	sb.WriteString("\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func (b *Board) diffStyle(class clock.Class) lipgloss.Style {
	switch class {
	case clock.ClassPlus:
		return b.styles.plus
	case clock.ClassMinus:
		return b.styles.minus
	default:
		return b.styles.zero
	}
}
