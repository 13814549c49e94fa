package alarm

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"worldclock-fx/internal/city"
)

// Firing describes one alarm ring.
type Firing struct {
	HourMinute string
	City       city.City
	At         time.Time
}

// Notice renders "アラーム: 07:30 (ロンドン)".
func (f Firing) Notice() string {
	return fmt.Sprintf("アラーム: %s (%s)", f.HourMinute, f.City.Name)
}

// Alarm rings once a day at HH:MM in a city's zone.
type Alarm struct {
	mu         sync.Mutex
	cron       *cron.Cron
	entry      cron.EntryID
	hm         string
	city       city.City
	lastMinute string
	onFire     func(Firing)
	now        func() time.Time
	logger     zerolog.Logger
}

// New builds an idle alarm. onFire runs on the cron goroutine.
func New(onFire func(Firing), logger zerolog.Logger) *Alarm {
	return &Alarm{
		cron:   cron.New(cron.WithSeconds()),
		onFire: onFire,
		now:    time.Now,
		logger: logger.With().Str("component", "alarm").Logger(),
	}
}

// ParseHM validates "HH:MM" in 24h form.
func ParseHM(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, fmt.Errorf("時刻を入力してください")
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("alarm time %q is not HH:MM", s)
	}
	hour, errH := strconv.Atoi(parts[0])
	minute, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("alarm time %q is out of range", s)
	}
	return hour, minute, nil
}

// Spec returns the cron expression for HH:MM in zone.
func Spec(zone string, hour, minute int) string {
	return fmt.Sprintf("CRON_TZ=%s 0 %d %d * * *", zone, minute, hour)
}

// Set replaces any previous alarm with HH:MM in c's zone.
func (a *Alarm) Set(hm string, c city.City) error {
	hour, minute, err := ParseHM(hm)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.entry != 0 {
		a.cron.Remove(a.entry)
		a.entry = 0
	}
	id, err := a.cron.AddFunc(Spec(c.Timezone, hour, minute), a.ring)
	if err != nil {
		return fmt.Errorf("schedule alarm: %w", err)
	}
	a.entry = id
	a.hm = fmt.Sprintf("%02d:%02d", hour, minute)
	a.city = c
	a.lastMinute = ""

	a.logger.Info().Str("time", a.hm).Str("city", c.Name).Str("zone", c.Timezone).Msg("alarm set")
	return nil
}

// Clear disarms the alarm.
func (a *Alarm) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.entry != 0 {
		a.cron.Remove(a.entry)
	}
	a.entry = 0
	a.hm = ""
	a.lastMinute = ""
}

// Armed reports whether an alarm is set.
func (a *Alarm) Armed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entry != 0
}

// Next is the next ring time, zero when disarmed or not started.
func (a *Alarm) Next() time.Time {
	a.mu.Lock()
	id := a.entry
	a.mu.Unlock()
	if id == 0 {
		return time.Time{}
	}
	return a.cron.Entry(id).Next
}

// Status renders "未設定" or "設定済み: 07:30 (ロンドン)".
func (a *Alarm) Status() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.entry == 0 {
		return "未設定"
	}
	return fmt.Sprintf("設定済み: %s (%s)", a.hm, a.city.Name)
}

// Start runs the cron loop in the background.
func (a *Alarm) Start() {
	a.cron.Start()
}

// Stop halts the cron loop and waits for a running ring to finish.
func (a *Alarm) Stop() {
	<-a.cron.Stop().Done()
}

func (a *Alarm) ring() {
	if f, ok := a.fire(a.now()); ok && a.onFire != nil {
		a.onFire(f)
	}
}

// fire rings at most once per wall-clock minute in the alarm's zone.
func (a *Alarm) fire(now time.Time) (Firing, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.entry == 0 {
		return Firing{}, false
	}

	loc, err := time.LoadLocation(a.city.Timezone)
	if err != nil {
		loc = time.UTC
	}
	minute := now.In(loc).Format("2006-01-02 15:04")
	if minute == a.lastMinute {
		return Firing{}, false
	}
	a.lastMinute = minute

	a.logger.Info().Str("time", a.hm).Str("city", a.city.Name).Msg("alarm ringing")
	return Firing{HourMinute: a.hm, City: a.city, At: now}, true
}
