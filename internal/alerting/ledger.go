package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"worldclock-fx/internal/city"
	"worldclock-fx/internal/storage"
)

const (
	// DefaultMax caps the ledger when no limit is configured.
	DefaultMax = 50
	// DefaultKey is the persisted state key.
	DefaultKey = "worldclock_fx_alerts_v1"
)

// Direction is the comparison an alert waits for.
type Direction string

const (
	AtOrAbove Direction = "gte"
	AtOrBelow Direction = "lte"
)

// ParseDirection accepts gte/lte and their symbolic spellings.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gte", ">=", "above":
		return AtOrAbove, nil
	case "lte", "<=", "below":
		return AtOrBelow, nil
	}
	return "", &ValidationError{Field: "direction", Reason: fmt.Sprintf("%q is not gte or lte", s)}
}

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == AtOrAbove || d == AtOrBelow
}

// Label renders the condition as shown to users.
func (d Direction) Label() string {
	if d == AtOrAbove {
		return "以上"
	}
	return "以下"
}

// Reached reports whether rate satisfies the condition against target.
func (d Direction) Reached(rate, target decimal.Decimal) bool {
	switch d {
	case AtOrAbove:
		return rate.GreaterThanOrEqual(target)
	case AtOrBelow:
		return rate.LessThanOrEqual(target)
	}
	return false
}

// Record is one rate-threshold alert.
type Record struct {
	ID         int64
	CityName   string
	Currency   string
	Direction  Direction
	TargetRate decimal.Decimal
	Active     bool
	Triggered  bool
}

// StateLabel is 予約中 while active, then 通知済み or キャンセル済み.
func (r Record) StateLabel() string {
	switch {
	case r.Active:
		return "予約中"
	case r.Triggered:
		return "通知済み"
	default:
		return "キャンセル済み"
	}
}

// Describe renders the list line for a record.
func (r Record) Describe(home string) string {
	return fmt.Sprintf("#%d %s / 1 %s %s %s %s (%s)",
		r.ID, r.CityName, r.Currency, r.Direction.Label(), r.TargetRate.StringFixed(3), home, r.StateLabel())
}

// PersistedRecord is the stored shape of a Record.
type PersistedRecord struct {
	ID         int64   `json:"id"`
	CityName   string  `json:"cityName"`
	Currency   string  `json:"currency"`
	Direction  string  `json:"direction"`
	TargetRate float64 `json:"targetRate"`
	Active     bool    `json:"active"`
	Triggered  bool    `json:"triggered"`
}

// State is the persisted ledger payload.
type State struct {
	AlertCityName   string            `json:"alertCityName"`
	AlertIDSequence int64             `json:"alertIdSequence"`
	FXAlerts        []PersistedRecord `json:"fxAlerts"`
}

// LedgerOptions wires a Ledger.
type LedgerOptions struct {
	Store   storage.KV
	Key     string
	Max     int
	Catalog *city.Catalog
}

// Ledger owns the alert records and the id sequence. All methods are safe for
// concurrent use; every mutation is persisted before the lock is released.
// Other processes may write the same key: each mutation first folds the
// stored state in, so their records survive and the sequence never goes back.
type Ledger struct {
	mu        sync.Mutex
	store     storage.KV
	key       string
	max       int
	catalog   *city.Catalog
	logger    zerolog.Logger
	records   []Record
	nextID    int64
	alertCity string
}

// NewLedger builds an empty ledger. Call Load to restore persisted state.
func NewLedger(opts LedgerOptions, logger zerolog.Logger) *Ledger {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.Max <= 0 {
		opts.Max = DefaultMax
	}
	if opts.Catalog == nil {
		opts.Catalog = city.Default()
	}
	if opts.Store == nil {
		opts.Store = storage.NewMemory()
	}
	return &Ledger{
		store:     opts.Store,
		key:       opts.Key,
		max:       opts.Max,
		catalog:   opts.Catalog,
		logger:    logger.With().Str("component", "alert_ledger").Logger(),
		nextID:    1,
		alertCity: opts.Catalog.First().Name,
	}
}

// Max returns the capacity.
func (l *Ledger) Max() int {
	return l.max
}

// Len returns the number of records, including inactive ones.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// StatusText renders "予約: n / max".
func (l *Ledger) StatusText() string {
	return fmt.Sprintf("予約: %d / %d", l.Len(), l.max)
}

// Records returns a copy of the records in insertion order.
func (l *Ledger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Get returns the record with id.
func (l *Ledger) Get(id int64) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if idx := l.indexLocked(id); idx >= 0 {
		return l.records[idx], true
	}
	return Record{}, false
}

// NextID returns the id the next Add will assign.
func (l *Ledger) NextID() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextID
}

// AlertCity resolves the selected alert city, falling back to the first
// catalog city when the stored name is unknown.
func (l *Ledger) AlertCity() city.City {
	l.mu.Lock()
	name := l.alertCity
	l.mu.Unlock()
	if c, ok := l.catalog.Lookup(name); ok {
		return c
	}
	return l.catalog.First()
}

// SelectCity changes the default city for new alerts.
func (l *Ledger) SelectCity(ctx context.Context, name string) error {
	if _, ok := l.catalog.Lookup(name); !ok {
		return &ValidationError{Field: "city", Reason: fmt.Sprintf("unknown city %q", name)}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.syncLocked(ctx)
	l.alertCity = name
	l.persistLocked(ctx)
	return nil
}

// Add registers an active alert. Capacity is checked before the input; an
// empty cityName uses the selected alert city.
func (l *Ledger) Add(ctx context.Context, cityName string, direction Direction, target float64) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.syncLocked(ctx)

	if len(l.records) >= l.max {
		return Record{}, &CapacityError{Limit: l.max}
	}

	if strings.TrimSpace(cityName) == "" {
		cityName = l.alertCity
	}
	c, ok := l.catalog.Lookup(cityName)
	if !ok {
		return Record{}, &ValidationError{Field: "city", Reason: fmt.Sprintf("unknown city %q", cityName)}
	}
	if !direction.Valid() {
		return Record{}, &ValidationError{Field: "direction", Reason: fmt.Sprintf("%q is not gte or lte", direction)}
	}
	if math.IsNaN(target) || math.IsInf(target, 0) || target <= 0 {
		return Record{}, &ValidationError{Field: "targetRate", Reason: "通知レートを正しく入力してください"}
	}

	rec := Record{
		ID:         l.nextID,
		CityName:   c.Name,
		Currency:   c.Currency,
		Direction:  direction,
		TargetRate: decimal.NewFromFloat(target),
		Active:     true,
	}
	l.nextID++
	l.records = append(l.records, rec)
	l.persistLocked(ctx)

	l.logger.Info().Int64("alert_id", rec.ID).
		Str("city", rec.CityName).
		Str("currency", rec.Currency).
		Str("direction", string(rec.Direction)).
		Str("target", rec.TargetRate.StringFixed(3)).
		Msg("予約追加")
	return rec, nil
}

// Cancel deactivates an active alert without marking it triggered.
func (l *Ledger) Cancel(ctx context.Context, id int64) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.syncLocked(ctx)

	idx := l.indexLocked(id)
	if idx < 0 {
		return Record{}, ErrNotFound
	}
	if !l.records[idx].Active {
		return l.records[idx], ErrNotActive
	}
	l.records[idx].Active = false
	l.records[idx].Triggered = false
	l.persistLocked(ctx)

	l.logger.Info().Int64("alert_id", id).Msg("予約解除")
	return l.records[idx], nil
}

// Delete removes a record whatever its state.
func (l *Ledger) Delete(ctx context.Context, id int64) error {
	if l.DeleteMany(ctx, []int64{id}) == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMany removes every listed record and returns how many were removed.
func (l *Ledger) DeleteMany(ctx context.Context, ids []int64) int {
	if len(ids) == 0 {
		return 0
	}
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.syncLocked(ctx)

	kept := l.records[:0]
	removed := 0
	for _, rec := range l.records {
		if _, ok := drop[rec.ID]; ok {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	l.records = kept
	if removed > 0 {
		l.persistLocked(ctx)
		l.logger.Info().Int("count", removed).Msgf("%d件削除しました", removed)
	}
	return removed
}

// Load restores state from the store. A missing payload, or one that is not a
// JSON object, leaves the ledger empty with a fresh sequence; it is logged,
// never returned.
func (l *Ledger) Load(ctx context.Context) error {
	state, ok, err := l.readState(ctx)
	if err != nil {
		return fmt.Errorf("load alert state: %w", err)
	}
	if !ok {
		l.reset()
		return nil
	}
	l.LoadFromPersisted(state)
	return nil
}

// LoadFromPersisted replaces the ledger contents with state. Records beyond
// capacity and malformed records are dropped. The sequence is never lower
// than max(id)+1.
func (l *Ledger) LoadFromPersisted(state State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.restoreLocked(state, 1)
}

func (l *Ledger) restoreLocked(state State, floor int64) {
	records := make([]Record, 0, min(len(state.FXAlerts), l.max))
	seen := make(map[int64]struct{}, len(state.FXAlerts))
	var maxID int64

	for _, p := range state.FXAlerts {
		if len(records) >= l.max {
			break
		}
		rec, ok := fromPersisted(p)
		if !ok {
			l.logger.Warn().Int64("alert_id", p.ID).Msg("dropping malformed alert record")
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			l.logger.Warn().Int64("alert_id", rec.ID).Msg("dropping duplicate alert id")
			continue
		}
		seen[rec.ID] = struct{}{}
		maxID = max(maxID, rec.ID)
		records = append(records, rec)
	}

	next := max(state.AlertIDSequence, maxID+1, floor)

	l.records = records
	l.nextID = next
	if state.AlertCityName != "" {
		l.alertCity = state.AlertCityName
	}

	l.logger.Debug().Int("records", len(records)).Int64("next_id", next).Msg("alert state restored")
}

// syncLocked folds the stored state into the ledger ahead of a write. The
// in-memory state stands when the store is unreadable or empty.
func (l *Ledger) syncLocked(ctx context.Context) {
	state, ok, err := l.readState(ctx)
	if err != nil {
		l.logger.Warn().Err(err).Str("key", l.key).Msg("reload alert state failed")
		return
	}
	if ok {
		l.restoreLocked(state, l.nextID)
	}
}

func (l *Ledger) readState(ctx context.Context) (State, bool, error) {
	raw, found, err := l.store.Get(ctx, l.key)
	if err != nil {
		return State{}, false, err
	}
	if !found || strings.TrimSpace(raw) == "" {
		return State{}, false, nil
	}
	state, err := l.decodeState(raw)
	if err != nil {
		l.logger.Warn().Err(err).Str("key", l.key).Msg("ignoring unreadable alert state")
		return State{}, false, nil
	}
	return state, true, nil
}

// decodeState reads each top-level field on its own, so one mistyped field
// or record costs only itself. A non-positive or unreadable sequence is left
// zero and recomputed from the ids.
func (l *Ledger) decodeState(raw string) (State, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return State{}, err
	}
	if fields == nil {
		return State{}, errors.New("alert state is not an object")
	}

	var state State
	if v, ok := fields["alertCityName"]; ok {
		if err := json.Unmarshal(v, &state.AlertCityName); err != nil {
			l.logger.Warn().Err(err).Msg("ignoring unreadable alertCityName")
		}
	}
	if v, ok := fields["alertIdSequence"]; ok {
		var seq float64
		if err := json.Unmarshal(v, &seq); err == nil && seq >= 1 && seq < math.MaxInt64 {
			state.AlertIDSequence = int64(seq)
		} else {
			l.logger.Warn().RawJSON("value", v).Msg("recomputing alertIdSequence")
		}
	}
	if v, ok := fields["fxAlerts"]; ok {
		var items []json.RawMessage
		if err := json.Unmarshal(v, &items); err != nil {
			l.logger.Warn().Err(err).Msg("ignoring unreadable fxAlerts")
		}
		for _, item := range items {
			var p PersistedRecord
			if err := json.Unmarshal(item, &p); err != nil {
				l.logger.Warn().Err(err).Msg("dropping unreadable alert record")
				continue
			}
			state.FXAlerts = append(state.FXAlerts, p)
		}
	}
	return state, nil
}

// Persist snapshots the ledger into its stored shape.
func (l *Ledger) Persist() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked()
}

// Flush merges in the stored state and writes the result, reporting failures
// to the caller.
func (l *Ledger) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.syncLocked(ctx)
	return l.writeLocked(ctx)
}

func (l *Ledger) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
	l.nextID = 1
}

func (l *Ledger) indexLocked(id int64) int {
	for i, rec := range l.records {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) stateLocked() State {
	out := State{
		AlertCityName:   l.alertCity,
		AlertIDSequence: l.nextID,
		FXAlerts:        make([]PersistedRecord, 0, len(l.records)),
	}
	for i, rec := range l.records {
		if i >= l.max {
			break
		}
		out.FXAlerts = append(out.FXAlerts, toPersisted(rec))
	}
	return out
}

func (l *Ledger) writeLocked(ctx context.Context) error {
	payload, err := json.Marshal(l.stateLocked())
	if err != nil {
		return fmt.Errorf("encode alert state: %w", err)
	}
	if err := l.store.Set(ctx, l.key, string(payload)); err != nil {
		return fmt.Errorf("save alert state: %w", err)
	}
	return nil
}

// persistLocked saves after a mutation. The in-memory change stands even
// when the store is unavailable.
func (l *Ledger) persistLocked(ctx context.Context) {
	if err := l.writeLocked(ctx); err != nil {
		l.logger.Error().Err(err).Str("key", l.key).Msg("persist alert state failed")
	}
}

func toPersisted(rec Record) PersistedRecord {
	return PersistedRecord{
		ID:         rec.ID,
		CityName:   rec.CityName,
		Currency:   rec.Currency,
		Direction:  string(rec.Direction),
		TargetRate: rec.TargetRate.InexactFloat64(),
		Active:     rec.Active,
		Triggered:  rec.Triggered,
	}
}

func fromPersisted(p PersistedRecord) (Record, bool) {
	dir := Direction(p.Direction)
	if p.ID <= 0 || !dir.Valid() || p.CityName == "" || p.Currency == "" {
		return Record{}, false
	}
	if math.IsNaN(p.TargetRate) || math.IsInf(p.TargetRate, 0) || p.TargetRate <= 0 {
		return Record{}, false
	}
	rec := Record{
		ID:         p.ID,
		CityName:   p.CityName,
		Currency:   p.Currency,
		Direction:  dir,
		TargetRate: decimal.NewFromFloat(p.TargetRate),
		Active:     p.Active,
		Triggered:  p.Triggered,
	}
	// triggered implies inactive
	if rec.Triggered {
		rec.Active = false
	}
	return rec, true
}
