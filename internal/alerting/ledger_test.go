package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"worldclock-fx/internal/storage"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestLedger(t *testing.T, kv storage.KV, max int) *Ledger {
	t.Helper()
	ledger := NewLedger(LedgerOptions{Store: kv, Max: max}, testLogger())
	if err := ledger.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return ledger
}

func storedState(t *testing.T, kv storage.KV) State {
	t.Helper()
	raw, found, err := kv.Get(context.Background(), DefaultKey)
	if err != nil || !found {
		t.Fatalf("state not stored: found=%v err=%v", found, err)
	}
	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		t.Fatalf("stored state unreadable: %v", err)
	}
	return state
}

func TestAddPersistsRecord(t *testing.T) {
	kv := storage.NewMemory()
	ledger := newTestLedger(t, kv, 0)

	rec, err := ledger.Add(context.Background(), "アメリカ", AtOrBelow, 150)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if rec.ID != 1 || rec.Currency != "USD" || !rec.Active || rec.Triggered {
		t.Fatalf("unexpected record: %+v", rec)
	}

	state := storedState(t, kv)
	if state.AlertIDSequence != 2 || len(state.FXAlerts) != 1 {
		t.Fatalf("unexpected stored state: %+v", state)
	}
	got := state.FXAlerts[0]
	if got.Direction != "lte" || got.TargetRate != 150 || got.CityName != "アメリカ" {
		t.Fatalf("unexpected stored record: %+v", got)
	}
}

func TestAddDefaultsToSelectedCity(t *testing.T) {
	ledger := newTestLedger(t, storage.NewMemory(), 0)
	if err := ledger.SelectCity(context.Background(), "ロンドン"); err != nil {
		t.Fatalf("select: %v", err)
	}
	rec, err := ledger.Add(context.Background(), "", AtOrAbove, 190)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if rec.CityName != "ロンドン" || rec.Currency != "GBP" {
		t.Fatalf("expected London/GBP, got %+v", rec)
	}

	if err := ledger.SelectCity(context.Background(), "Atlantis"); err == nil {
		t.Fatal("unknown city should be rejected")
	}
}

func TestAddValidation(t *testing.T) {
	cases := []struct {
		name   string
		city   string
		dir    Direction
		target float64
		field  string
	}{
		{"negative", "アメリカ", AtOrBelow, -5, "targetRate"},
		{"zero", "アメリカ", AtOrBelow, 0, "targetRate"},
		{"nan", "アメリカ", AtOrBelow, math.NaN(), "targetRate"},
		{"inf", "アメリカ", AtOrAbove, math.Inf(1), "targetRate"},
		{"direction", "アメリカ", Direction("eq"), 150, "direction"},
		{"city", "Atlantis", AtOrAbove, 150, "city"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ledger := newTestLedger(t, storage.NewMemory(), 0)
			_, err := ledger.Add(context.Background(), tc.city, tc.dir, tc.target)

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, verr.Field)
			}
			if ledger.Len() != 0 || ledger.NextID() != 1 {
				t.Fatalf("ledger changed: len=%d next=%d", ledger.Len(), ledger.NextID())
			}
		})
	}
}

func TestAddCapacity(t *testing.T) {
	ledger := newTestLedger(t, storage.NewMemory(), 3)
	for i := 0; i < 3; i++ {
		if _, err := ledger.Add(context.Background(), "中国", AtOrAbove, 21); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	// capacity wins over invalid input
	_, err := ledger.Add(context.Background(), "中国", AtOrAbove, -1)
	var cerr *CapacityError
	if !errors.As(err, &cerr) || cerr.Limit != 3 {
		t.Fatalf("expected CapacityError(3), got %v", err)
	}
	if ledger.Len() != 3 {
		t.Fatalf("size changed to %d", ledger.Len())
	}
	if ledger.StatusText() != "予約: 3 / 3" {
		t.Fatalf("unexpected status %q", ledger.StatusText())
	}
}

func TestCancelAndDelete(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t, storage.NewMemory(), 0)
	a, _ := ledger.Add(ctx, "アメリカ", AtOrAbove, 160)
	b, _ := ledger.Add(ctx, "ユーロ圏", AtOrBelow, 150)
	c, _ := ledger.Add(ctx, "トルコ", AtOrBelow, 3)

	rec, err := ledger.Cancel(ctx, a.ID)
	if err != nil || rec.Active || rec.Triggered {
		t.Fatalf("cancel: rec=%+v err=%v", rec, err)
	}
	if rec.StateLabel() != "キャンセル済み" {
		t.Fatalf("unexpected label %q", rec.StateLabel())
	}
	if _, err := ledger.Cancel(ctx, a.ID); !errors.Is(err, ErrNotActive) {
		t.Fatalf("second cancel should be ErrNotActive, got %v", err)
	}
	if _, err := ledger.Cancel(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id should be ErrNotFound, got %v", err)
	}

	// cancelled records stay until deleted
	if ledger.Len() != 3 {
		t.Fatalf("cancel removed a record")
	}

	if err := ledger.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete cancelled: %v", err)
	}
	if err := ledger.Delete(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete twice should be ErrNotFound, got %v", err)
	}

	if n := ledger.DeleteMany(ctx, []int64{b.ID, c.ID, 42}); n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	if ledger.Len() != 0 {
		t.Fatalf("expected empty ledger, got %d", ledger.Len())
	}
}

func TestIDsNeverReused(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	ledger := newTestLedger(t, kv, 0)

	seen := make(map[int64]bool)
	add := func(l *Ledger) int64 {
		rec, err := l.Add(ctx, "日本", AtOrAbove, 1)
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		if seen[rec.ID] {
			t.Fatalf("id %d reused", rec.ID)
		}
		seen[rec.ID] = true
		return rec.ID
	}

	add(ledger)
	second := add(ledger)
	third := add(ledger)
	if err := ledger.Delete(ctx, third); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Delete(ctx, second); err != nil {
		t.Fatal(err)
	}

	reloaded := newTestLedger(t, kv, 0)
	if got := add(reloaded); got != 4 {
		t.Fatalf("expected id 4 after reload, got %d", got)
	}
	add(reloaded)
}

func TestLoadRecomputesSequence(t *testing.T) {
	ledger := newTestLedger(t, storage.NewMemory(), 2)
	ledger.LoadFromPersisted(State{
		AlertCityName:   "中国",
		AlertIDSequence: 0,
		FXAlerts: []PersistedRecord{
			{ID: 7, CityName: "中国", Currency: "CNY", Direction: "gte", TargetRate: 21, Active: true},
			{ID: 3, CityName: "中国", Currency: "CNY", Direction: "lte", TargetRate: 20, Triggered: true, Active: true},
			{ID: 12, CityName: "中国", Currency: "CNY", Direction: "lte", TargetRate: 19, Active: true},
		},
	})

	if ledger.Len() != 2 {
		t.Fatalf("expected truncation to 2, got %d", ledger.Len())
	}
	if ledger.NextID() != 8 {
		t.Fatalf("expected next id 8, got %d", ledger.NextID())
	}
	if rec, _ := ledger.Get(3); rec.Active {
		t.Fatal("triggered record must be inactive")
	}
	if ledger.AlertCity().Name != "中国" {
		t.Fatalf("alert city not restored: %s", ledger.AlertCity().Name)
	}

	// a stale sequence below the highest id is raised
	ledger.LoadFromPersisted(State{
		AlertIDSequence: 2,
		FXAlerts:        []PersistedRecord{{ID: 5, CityName: "中国", Currency: "CNY", Direction: "gte", TargetRate: 21, Active: true}},
	})
	if ledger.NextID() != 6 {
		t.Fatalf("expected next id 6, got %d", ledger.NextID())
	}
}

func TestLoadCorruptPayload(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	ledger := newTestLedger(t, kv, 0)
	if _, err := ledger.Add(ctx, "アメリカ", AtOrBelow, 150); err != nil {
		t.Fatal(err)
	}

	if err := kv.Set(ctx, DefaultKey, "{not json"); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Load(ctx); err != nil {
		t.Fatalf("corrupt payload must not be an error: %v", err)
	}
	if ledger.Len() != 0 || ledger.NextID() != 1 {
		t.Fatalf("expected empty ledger with sequence 1, got len=%d next=%d", ledger.Len(), ledger.NextID())
	}
}

func TestLoadKeepsRecordsPastMistypedFields(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	payload := `{
		"alertCityName": 42,
		"alertIdSequence": "7",
		"fxAlerts": [
			{"id": 3, "cityName": "アメリカ", "currency": "USD", "direction": "lte", "targetRate": 150, "active": true},
			{"id": "x", "cityName": "アメリカ", "currency": "USD", "direction": "lte", "targetRate": 150, "active": true},
			{"id": 5, "cityName": "ロンドン", "currency": "GBP", "direction": "gte", "targetRate": 190, "active": true}
		]
	}`
	if err := kv.Set(ctx, DefaultKey, payload); err != nil {
		t.Fatal(err)
	}

	ledger := newTestLedger(t, kv, 0)
	if ledger.Len() != 2 {
		t.Fatalf("expected 2 valid records, got %d", ledger.Len())
	}
	if ledger.NextID() != 6 {
		t.Fatalf("expected sequence recomputed to 6, got %d", ledger.NextID())
	}
	if ledger.AlertCity().Name != "日本" {
		t.Fatalf("unreadable city should fall back, got %s", ledger.AlertCity().Name)
	}

	if err := kv.Set(ctx, DefaultKey, `{"alertIdSequence": -4, "fxAlerts": {"id": 1}}`); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if ledger.Len() != 0 || ledger.NextID() != 1 {
		t.Fatalf("expected empty ledger, got len=%d next=%d", ledger.Len(), ledger.NextID())
	}
}

func TestLedgersSharingStoreKeepEachOthersWrites(t *testing.T) {
	ctx := context.Background()
	kv, err := storage.NewSQLite(filepath.Join(t.TempDir(), "alerts.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()

	running := newTestLedger(t, kv, 0)
	if _, err := running.Add(ctx, "アメリカ", AtOrBelow, 150); err != nil {
		t.Fatal(err)
	}

	other := newTestLedger(t, kv, 0)
	added, err := other.Add(ctx, "ロンドン", AtOrAbove, 200)
	if err != nil {
		t.Fatal(err)
	}
	if added.ID != 2 {
		t.Fatalf("expected id 2, got %d", added.ID)
	}
	if err := other.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	if err := running.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	state := storedState(t, kv)
	if len(state.FXAlerts) != 2 || state.AlertIDSequence != 3 {
		t.Fatalf("flush lost the other writer's alert: %+v", state)
	}

	rec, err := running.Add(ctx, "中国", AtOrAbove, 21)
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID != 3 {
		t.Fatalf("id %d reissued", rec.ID)
	}

	if err := newTestLedger(t, kv, 0).Delete(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := running.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := running.Get(1); ok {
		t.Fatal("deleted alert came back")
	}
	state = storedState(t, kv)
	if len(state.FXAlerts) != 2 || state.AlertIDSequence != 4 {
		t.Fatalf("unexpected stored state after delete: %+v", state)
	}
}

func TestPersistSnapshot(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	ledger := newTestLedger(t, kv, 0)
	rec, _ := ledger.Add(ctx, "オーストラリア", AtOrAbove, 99.5)

	state := ledger.Persist()
	if state.AlertIDSequence != 2 || len(state.FXAlerts) != 1 || state.FXAlerts[0].ID != rec.ID {
		t.Fatalf("unexpected snapshot: %+v", state)
	}
	if got := rec.Describe("JPY"); got != "#1 オーストラリア / 1 AUD 以上 99.500 JPY (予約中)" {
		t.Fatalf("unexpected description %q", got)
	}
	if err := ledger.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{"gte": AtOrAbove, ">=": AtOrAbove, "LTE": AtOrBelow, "below": AtOrBelow} {
		got, err := ParseDirection(in)
		if err != nil || got != want {
			t.Fatalf("ParseDirection(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseDirection("eq"); err == nil {
		t.Fatal("eq should be rejected")
	}
}
