package display

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worldclock-fx/internal/city"
	"worldclock-fx/internal/clock"
	"worldclock-fx/internal/notify"
	"worldclock-fx/internal/rates"
)

func TestComposeRows(t *testing.T) {
	catalog := city.Default()
	engine := clock.NewEngine(city.HomeTimezone, city.HomeLabel)
	now := time.Date(2026, 10, 14, 6, 30, 5, 0, time.UTC)
	snap := rates.Snapshot{"JPY": decimal.NewFromInt(1), "USD": decimal.RequireFromString("150.12345")}
	selected, _ := catalog.Lookup("アメリカ")

	view := Compose(now, engine, catalog, snap, selected)

	assert.Equal(t, "2026/10/14(水)", view.SelectedDate)
	assert.Equal(t, "02:30:05", view.SelectedTime)
	assert.Equal(t, "1 USD = 150.123 JPY", view.SelectedRate)
	require.Len(t, view.Rows, len(catalog.All()))

	home := view.Rows[0]
	assert.Equal(t, "JST +0h", home.Diff)
	assert.Equal(t, clock.ClassZero, home.Class)
	assert.Equal(t, "1 JPY = 1.000 JPY", home.Rate)

	for _, row := range view.Rows {
		switch row.City.Name {
		case "アメリカ":
			assert.True(t, row.Selected)
			assert.Equal(t, "JST -13h", row.Diff)
			assert.Equal(t, clock.ClassMinus, row.Class)
		case "中国":
			assert.Equal(t, "1 CNY = 取得中...", row.Rate)
			assert.Equal(t, "JST -1h", row.Diff)
		default:
			assert.False(t, row.Selected, row.City.Name)
		}
	}
}

func TestBoardRender(t *testing.T) {
	catalog := city.Default()
	engine := clock.NewEngine(city.HomeTimezone, city.HomeLabel)
	view := Compose(time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC), engine, catalog, rates.Snapshot{}, catalog.First())
	view.AlertStatus = "予約: 2 / 50"
	view.Alarm = "設定済み: 07:30 (ロンドン)"
	view.Notice = "為替アラート発火: #2"
	view.LiveAlerts = []notify.Notification{{AlertID: 2, Message: "アメリカ: 1 USD = 145.556 JPY (150.000 以下)"}}

	board := NewBoard(Options{Clear: true})
	var buf bytes.Buffer
	require.NoError(t, board.Draw(&buf, view))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, clearScreen))
	for _, want := range []string{"日本", "JST -14h", "1 USD = 取得中...", "予約: 2 / 50", "アラーム: 設定済み: 07:30 (ロンドン)", "為替アラート発火: #2", "#2  アメリカ"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "タイマー")
}
