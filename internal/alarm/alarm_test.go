package alarm

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"worldclock-fx/internal/city"
)

func london(t *testing.T) city.City {
	t.Helper()
	c, ok := city.Default().Lookup("ロンドン")
	if !ok {
		t.Fatal("london missing from catalog")
	}
	return c
}

func TestParseHM(t *testing.T) {
	valid := map[string][2]int{"07:30": {7, 30}, "00:00": {0, 0}, " 23:59 ": {23, 59}}
	for in, want := range valid {
		h, m, err := ParseHM(in)
		if err != nil || h != want[0] || m != want[1] {
			t.Fatalf("ParseHM(%q) = %d, %d, %v", in, h, m, err)
		}
	}
	for _, in := range []string{"", "7:30", "24:00", "12:60", "ab:cd", "12:30:00"} {
		if _, _, err := ParseHM(in); err == nil {
			t.Fatalf("ParseHM(%q) should fail", in)
		}
	}
}

func TestAlarmScheduleAndStatus(t *testing.T) {
	a := New(nil, zerolog.Nop())
	if a.Status() != "未設定" || a.Armed() {
		t.Fatalf("new alarm should be idle: %s", a.Status())
	}
	if err := a.Set("7:3", london(t)); err == nil {
		t.Fatal("malformed time should be rejected")
	}

	if err := a.Set("07:30", london(t)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if a.Status() != "設定済み: 07:30 (ロンドン)" {
		t.Fatalf("unexpected status %q", a.Status())
	}
	if Spec("Europe/London", 7, 30) != "CRON_TZ=Europe/London 0 30 7 * * *" {
		t.Fatalf("unexpected spec %q", Spec("Europe/London", 7, 30))
	}

	a.Start()
	defer a.Stop()
	deadline := time.Now().Add(time.Second)
	for a.Next().IsZero() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	next := a.Next()
	if next.IsZero() {
		t.Fatal("running alarm should report its next ring")
	}
	loc, _ := time.LoadLocation("Europe/London")
	if got := next.In(loc).Format("15:04:05"); got != "07:30:00" {
		t.Fatalf("next ring at %s London time", got)
	}

	a.Clear()
	if a.Armed() || !a.Next().IsZero() {
		t.Fatal("cleared alarm should be idle")
	}
}

func TestAlarmFiresOncePerMinute(t *testing.T) {
	a := New(nil, zerolog.Nop())
	if err := a.Set("07:30", london(t)); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2026, 10, 14, 6, 30, 0, 0, time.UTC) // 07:30 BST
	f, ok := a.fire(at)
	if !ok {
		t.Fatal("first ring should fire")
	}
	if f.Notice() != "アラーム: 07:30 (ロンドン)" {
		t.Fatalf("unexpected notice %q", f.Notice())
	}
	if _, ok := a.fire(at.Add(20 * time.Second)); ok {
		t.Fatal("second ring within the minute must be suppressed")
	}
	if _, ok := a.fire(at.Add(24 * time.Hour)); !ok {
		t.Fatal("next day should ring again")
	}
}

func TestCountdown(t *testing.T) {
	var c Countdown
	if err := c.Start(0); err == nil {
		t.Fatal("zero seconds should be rejected")
	}
	if err := c.Start(math.NaN()); err == nil {
		t.Fatal("NaN should be rejected")
	}

	if err := c.Start(62.9); err != nil {
		t.Fatal(err)
	}
	if c.Status() != "01:02" {
		t.Fatalf("unexpected status %q", c.Status())
	}

	finished := 0
	for i := 0; i < 70; i++ {
		if c.Tick() {
			finished++
		}
	}
	if finished != 1 || c.Running() || c.Status() != "00:00" {
		t.Fatalf("finished=%d running=%v status=%s", finished, c.Running(), c.Status())
	}

	// a fractional start below one second still completes on the next tick
	if err := c.Start(0.5); err != nil {
		t.Fatal(err)
	}
	if !c.Tick() {
		t.Fatal("sub-second countdown should finish on the first tick")
	}

	c.Start(10)
	c.Stop()
	if c.Tick() || c.Remaining() != 10 {
		t.Fatal("stopped countdown should not advance")
	}
}
