package clock

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"
)

// Class buckets an offset for display styling.
type Class string

const (
	ClassPlus  Class = "plus"
	ClassMinus Class = "minus"
	ClassZero  Class = "zero"
)

// Engine computes zone offsets against a home zone and formats clock strings.
type Engine interface {
	OffsetHours(t time.Time, zone string) float64
	FormatDiff(hours float64) string
	Date(t time.Time, zone string) string
	Time(t time.Time, zone string) string
	HourMinute(t time.Time, zone string) string
}

// ZoneEngine is the tzdata-backed Engine.
type ZoneEngine struct {
	home  string
	label string
}

// NewEngine builds an engine for the given home zone. label is the token
// rendered in offsets, e.g. "JST".
func NewEngine(home, label string) *ZoneEngine {
	return &ZoneEngine{home: home, label: label}
}

// Home returns the home zone identifier.
func (e *ZoneEngine) Home() string {
	return e.home
}

// OffsetHours returns the signed offset of zone relative to the home zone at t.
func (e *ZoneEngine) OffsetHours(t time.Time, zone string) float64 {
	return Offset(t, zone, e.home)
}

// FormatDiff renders hours with the engine's label.
func (e *ZoneEngine) FormatDiff(hours float64) string {
	return FormatDiff(hours, e.label)
}

// Date formats t as 2006/01/02(曜) in zone.
func (e *ZoneEngine) Date(t time.Time, zone string) string {
	local := t.In(location(zone))
	return fmt.Sprintf("%s(%s)", local.Format("2006/01/02"), weekdays[local.Weekday()])
}

// Time formats t as 24h HH:MM:SS in zone.
func (e *ZoneEngine) Time(t time.Time, zone string) string {
	return t.In(location(zone)).Format("15:04:05")
}

// HourMinute formats t as 24h HH:MM in zone.
func (e *ZoneEngine) HourMinute(t time.Time, zone string) string {
	return t.In(location(zone)).Format("15:04")
}

var weekdays = [...]string{"日", "月", "火", "水", "木", "金", "土"}

// Offset returns (offsetMinutes(zone) - offsetMinutes(home)) / 60 at t.
func Offset(t time.Time, zone, home string) float64 {
	diff := OffsetMinutes(t, zone) - OffsetMinutes(t, home)
	return float64(diff) / 60
}

// OffsetMinutes returns the UTC offset of zone at t in whole minutes.
// Unknown zones report 0.
func OffsetMinutes(t time.Time, zone string) int {
	loc, ok := lookup(zone)
	if !ok {
		return 0
	}
	_, seconds := t.In(loc).Zone()
	return seconds / 60
}

// FormatDiff renders an hour offset as "JST +9h", "JST -3.5h" or "JST +0h".
func FormatDiff(hours float64, label string) string {
	if hours == 0 {
		return label + " +0h"
	}
	sign := "+"
	if hours < 0 {
		sign = "-"
	}
	abs := math.Abs(hours)

	var text string
	if abs == math.Trunc(abs) {
		text = strconv.FormatFloat(abs, 'f', -1, 64)
	} else {
		text = strconv.FormatFloat(abs, 'f', 1, 64)
	}
	return fmt.Sprintf("%s %s%sh", label, sign, text)
}

// Classify maps an offset to its display class.
func Classify(hours float64) Class {
	switch {
	case hours > 0:
		return ClassPlus
	case hours < 0:
		return ClassMinus
	default:
		return ClassZero
	}
}

var locations sync.Map

func lookup(zone string) (*time.Location, bool) {
	if cached, ok := locations.Load(zone); ok {
		return cached.(*time.Location), true
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, false
	}
	locations.Store(zone, loc)
	return loc, true
}

func location(zone string) *time.Location {
	if loc, ok := lookup(zone); ok {
		return loc
	}
	return time.UTC
}

var _ Engine = (*ZoneEngine)(nil)
