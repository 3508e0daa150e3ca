package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"glowbudget/internal/core"
	"glowbudget/internal/log"
	"glowbudget/internal/storage"
	"glowbudget/internal/storage/memory"
	"glowbudget/internal/validate"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, kv storage.KV, opts ...Option) *Store {
	t.Helper()
	n := 0
	base := []Option{
		WithLogger(log.Discard()),
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("rec_%d", n) }),
	}
	s, err := Open(context.Background(), kv, append(base, opts...)...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func lunch() validate.RecordInput {
	return validate.RecordInput{Description: "Lunch", Amount: "6500", Date: "2025-03-10", Category: "Food"}
}

// failingKV fails every write after it has been armed.
type failingKV struct {
	*memory.Store
	fail bool
}

func (f *failingKV) PutAll(ctx context.Context, entries ...storage.Entry) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Store.PutAll(ctx, entries...)
}

func (f *failingKV) Delete(ctx context.Context, keys ...string) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Store.Delete(ctx, keys...)
}

func TestOpen_Defaults(t *testing.T) {
	s := newTestStore(t, memory.New())
	records, settings := s.Snapshot()
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
	if settings.DisplayCurrency != core.BaseCurrency || settings.Theme != core.ThemeLight {
		t.Fatalf("unexpected defaults %+v", settings)
	}
}

func TestOpen_CorruptAndPartialDocuments(t *testing.T) {
	kv := memory.New()
	ctx := context.Background()
	_ = kv.PutAll(ctx,
		storage.Entry{Key: storage.RecordsKey, Value: []byte("{not json")},
		storage.Entry{Key: storage.SettingsKey, Value: []byte(`{"theme":"neon","rates":{"USD":1250}}`)},
	)

	s := newTestStore(t, kv)
	records, settings := s.Snapshot()
	if len(records) != 0 {
		t.Fatalf("corrupt records should load empty, got %v", records)
	}
	if settings.Theme != core.ThemeLight {
		t.Errorf("theme = %q, want light", settings.Theme)
	}
	if settings.Rates[core.USD] != 1250 || settings.Rates[core.EUR] != 1400 {
		t.Errorf("rates not merged: %v", settings.Rates)
	}
}

func TestOpen_RepairsMissingCategories(t *testing.T) {
	kv := memory.New()
	ctx := context.Background()
	_ = kv.PutAll(ctx,
		storage.Entry{Key: storage.RecordsKey, Value: []byte(`[{"id":"a","description":"Bus","amount":500,"category":"Travel","date":"2025-03-01","createdAt":"x","updatedAt":"x"}]`)},
		storage.Entry{Key: storage.SettingsKey, Value: []byte(`{"categories":["Food"]}`)},
	)
	s := newTestStore(t, kv)
	if !s.Settings().HasCategory("Travel") {
		t.Fatalf("expected Travel to be restored, got %v", s.Settings().Categories)
	}
}

func TestAddRecord(t *testing.T) {
	kv := memory.New()
	s := newTestStore(t, kv)
	ctx := context.Background()

	in := lunch()
	in.Description = "Lunch   with  team"
	in.Category = "Street Food"
	rec, err := s.AddRecord(ctx, in)
	if err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	if rec.ID != "rec_1" || rec.Description != "Lunch with team" || rec.Amount != 6500 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.CreatedAt != "2025-03-10T12:00:00.000Z" || rec.UpdatedAt != rec.CreatedAt {
		t.Fatalf("unexpected timestamps %+v", rec)
	}
	if !s.Settings().HasCategory("Street Food") {
		t.Fatal("new category should be appended")
	}

	// Reopening reads back what was committed.
	again := newTestStore(t, kv)
	if got := again.Records(); len(got) != 1 || got[0].ID != "rec_1" {
		t.Fatalf("records not persisted: %+v", got)
	}
	if !again.Settings().HasCategory("Street Food") {
		t.Fatal("category not persisted")
	}
}

func TestAddRecord_ValidationErrors(t *testing.T) {
	s := newTestStore(t, memory.New())
	_, err := s.AddRecord(context.Background(), validate.RecordInput{Description: " x", Amount: "abc", Date: "2025-3-1", Category: "F00d"})

	var fe validate.FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	for _, f := range []string{validate.FieldDescription, validate.FieldAmount, validate.FieldDate, validate.FieldCategory} {
		if fe[f] == "" {
			t.Errorf("missing error for %s", f)
		}
	}
	if len(s.Records()) != 0 {
		t.Fatal("invalid input must not be committed")
	}
}

func TestUpdateRecord(t *testing.T) {
	s := newTestStore(t, memory.New())
	ctx := context.Background()
	rec, _ := s.AddRecord(ctx, lunch())

	in := lunch()
	in.Amount = "12.50"
	in.Notes = "with dessert"
	updated, err := s.UpdateRecord(ctx, rec.ID, in)
	if err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}
	if updated.ID != rec.ID || updated.CreatedAt != rec.CreatedAt || updated.Amount != 12.5 || updated.Notes != "with dessert" {
		t.Fatalf("unexpected update %+v", updated)
	}

	if _, err := s.UpdateRecord(ctx, "missing", in); !errors.Is(err, core.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestUpdateRecord_UpdatedAtNeverBeforeCreatedAt(t *testing.T) {
	kv := memory.New()
	_ = kv.PutAll(context.Background(), storage.Entry{Key: storage.RecordsKey, Value: []byte(
		`[{"id":"a","description":"Bus","amount":500,"category":"Food","date":"2025-03-01","createdAt":"2030-01-01T00:00:00.000Z","updatedAt":"2030-01-01T00:00:00.000Z"}]`)})
	s := newTestStore(t, kv)

	rec, err := s.UpdateRecord(context.Background(), "a", lunch())
	if err != nil {
		t.Fatal(err)
	}
	if rec.UpdatedAt < rec.CreatedAt {
		t.Fatalf("updatedAt %s before createdAt %s", rec.UpdatedAt, rec.CreatedAt)
	}
}

func TestDeleteRecord(t *testing.T) {
	s := newTestStore(t, memory.New())
	ctx := context.Background()
	rec, _ := s.AddRecord(ctx, lunch())

	if err := s.DeleteRecord(ctx, rec.ID, false); !errors.Is(err, core.ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	if len(s.Records()) != 1 {
		t.Fatal("unconfirmed delete must not remove the record")
	}
	if err := s.DeleteRecord(ctx, rec.ID, true); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if err := s.DeleteRecord(ctx, rec.ID, true); !errors.Is(err, core.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestFailedWriteLeavesStateUntouched(t *testing.T) {
	kv := &failingKV{Store: memory.New()}
	s := newTestStore(t, kv)
	ctx := context.Background()
	if _, err := s.AddRecord(ctx, lunch()); err != nil {
		t.Fatal(err)
	}

	kv.fail = true
	in := lunch()
	in.Category = "Gifts"
	if _, err := s.AddRecord(ctx, in); err == nil {
		t.Fatal("expected write error")
	}
	if err := s.SetMonthlyCap(ctx, "5000"); err == nil {
		t.Fatal("expected write error")
	}
	if err := s.Reset(ctx, true); err == nil {
		t.Fatal("expected write error")
	}

	records, settings := s.Snapshot()
	if len(records) != 1 || settings.HasCategory("Gifts") || settings.MonthlyCap != 0 {
		t.Fatalf("state changed after failed write: %d records, %+v", len(records), settings)
	}
}

func TestCategories(t *testing.T) {
	s := newTestStore(t, memory.New())
	ctx := context.Background()

	if err := s.AddCategory(ctx, "Health"); err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	if err := s.AddCategory(ctx, "Health"); !errors.Is(err, core.ErrCategoryExists) {
		t.Fatalf("expected ErrCategoryExists, got %v", err)
	}
	var fe validate.FieldErrors
	if err := s.AddCategory(ctx, "Health2"); !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}

	if _, err := s.AddRecord(ctx, lunch()); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveCategory(ctx, "Food"); !errors.Is(err, core.ErrCategoryInUse) {
		t.Fatalf("expected ErrCategoryInUse, got %v", err)
	}
	if err := s.RemoveCategory(ctx, "Nope"); !errors.Is(err, core.ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
	if err := s.RemoveCategory(ctx, "Health"); err != nil {
		t.Fatalf("RemoveCategory: %v", err)
	}
	if s.Settings().HasCategory("Health") {
		t.Fatal("Health should be gone")
	}
}

func TestSuggestCategory(t *testing.T) {
	s := newTestStore(t, memory.New())
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Fod", "Food", true},
		{"food", "Food", true},
		{"Trasnport", "Transport", true},
		{"Food", "", false},
		{"Groceries", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := s.SuggestCategory(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("SuggestCategory(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSettingsCommands(t *testing.T) {
	s := newTestStore(t, memory.New())
	ctx := context.Background()

	if err := s.SetTheme(ctx, "dark"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetDisplayCurrency(ctx, "usd"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetDisplayCurrency(ctx, "GBP"); !errors.Is(err, core.ErrUnknownCurrency) {
		t.Fatalf("expected ErrUnknownCurrency, got %v", err)
	}
	if err := s.SetRate(ctx, "EUR", "1500"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetRate(ctx, "RWF", "2"); !errors.Is(err, core.ErrUnknownCurrency) {
		t.Fatalf("base currency rate should be rejected, got %v", err)
	}
	var fe validate.FieldErrors
	if err := s.SetRate(ctx, "USD", "0"); !errors.As(err, &fe) || fe[validate.FieldRate] != validate.MsgRatePositive {
		t.Fatalf("expected rate error, got %v", err)
	}
	if err := s.SetMonthlyCap(ctx, "50000"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetMonthlyCap(ctx, "-1"); !errors.As(err, &fe) {
		t.Fatalf("expected cap error, got %v", err)
	}

	got := s.Settings()
	if got.Theme != core.ThemeDark || got.DisplayCurrency != core.USD || got.Rates[core.EUR] != 1500 || got.MonthlyCap != 50000 {
		t.Fatalf("unexpected settings %+v", got)
	}

	if err := s.SetMonthlyCap(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if s.Settings().MonthlyCap != 0 {
		t.Fatal("empty cap should disable it")
	}
}

func TestImport(t *testing.T) {
	s := newTestStore(t, memory.New())
	ctx := context.Background()
	if _, err := s.AddRecord(ctx, lunch()); err != nil {
		t.Fatal(err)
	}

	data := []byte(`[
		{"id":"x1","description":"Taxi","amount":3000,"category":"Rides","date":"2025-03-02","createdAt":"a","updatedAt":"a"},
		{"id":"x2","description":"Book","amount":12.5,"category":"Books","date":"2025-03-03","notes":"gift","createdAt":"b","updatedAt":"b"}
	]`)

	if _, err := s.Import(ctx, data, false); !errors.Is(err, core.ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}

	res, err := s.Import(ctx, data, true)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Records != 2 || len(res.CategoriesAdded) != 1 || res.CategoriesAdded[0] != "Rides" {
		t.Fatalf("unexpected result %+v", res)
	}
	records, settings := s.Snapshot()
	if len(records) != 2 || records[0].ID != "x1" || records[1].Notes != "gift" {
		t.Fatalf("records not replaced: %+v", records)
	}
	if !settings.HasCategory("Food") {
		t.Fatal("import must never remove categories")
	}
}

func TestImport_Rejections(t *testing.T) {
	valid := `{"id":"a","description":"d","amount":1,"category":"Food","date":"2025-01-01","createdAt":"c","updatedAt":"u"}`
	tests := []struct {
		name string
		data string
		want string
	}{
		{"not json", `[{`, "file is not valid JSON"},
		{"not array", `{"id":"a"}`, "expected a JSON array of records"},
		{"null", `null`, "expected a JSON array of records"},
		{"element not object", `[` + valid + `,3]`, "record 2: not an object"},
		{"missing id", `[{"description":"d","amount":1,"category":"c","date":"d","createdAt":"c","updatedAt":"u"}]`, "record 1: bad id"},
		{"empty id", `[{"id":"","description":"d","amount":1,"category":"c","date":"d","createdAt":"c","updatedAt":"u"}]`, "record 1: bad id"},
		{"string amount", `[{"id":"a","description":"d","amount":"1","category":"c","date":"d","createdAt":"c","updatedAt":"u"}]`, "record 1: bad amount"},
		{"null amount", `[{"id":"a","description":"d","amount":null,"category":"c","date":"d","createdAt":"c","updatedAt":"u"}]`, "record 1: bad amount"},
		{"huge amount", `[{"id":"a","description":"d","amount":1e999,"category":"c","date":"d","createdAt":"c","updatedAt":"u"}]`, "record 1: bad amount"},
		{"numeric category", `[{"id":"a","description":"d","amount":1,"category":5,"date":"d","createdAt":"c","updatedAt":"u"}]`, "record 1: bad category"},
		{"missing updatedAt", `[{"id":"a","description":"d","amount":1,"category":"c","date":"d","createdAt":"c"}]`, "record 1: bad updatedAt"},
		{"bad notes", `[{"id":"a","description":"d","amount":1,"category":"c","date":"d","notes":[],"createdAt":"c","updatedAt":"u"}]`, "record 1: bad notes"},
		{"duplicate id", `[` + valid + `,` + valid + `]`, "record 2: duplicate id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, memory.New())
			ctx := context.Background()
			if _, err := s.AddRecord(ctx, lunch()); err != nil {
				t.Fatal(err)
			}

			_, err := s.Import(ctx, []byte(tt.data), true)
			var ie *ImportError
			if !errors.As(err, &ie) {
				t.Fatalf("expected *ImportError, got %v", err)
			}
			if ie.Error() != tt.want {
				t.Errorf("message = %q, want %q", ie.Error(), tt.want)
			}
			if len(s.Records()) != 1 {
				t.Fatal("rejected import must leave records untouched")
			}
		})
	}
}

func TestImport_NullNotesAccepted(t *testing.T) {
	recs, err := DecodeImport([]byte(`[{"id":"a","description":"d","amount":0,"category":"c","date":"d","notes":null,"createdAt":"c","updatedAt":"u"}]`))
	if err != nil || len(recs) != 1 || recs[0].Notes != "" {
		t.Fatalf("got %v, %v", recs, err)
	}
}

func TestExportRoundTrip(t *testing.T) {
	s := newTestStore(t, memory.New())
	ctx := context.Background()

	empty, err := s.Export(ctx)
	if err != nil || string(empty) != "[]" {
		t.Fatalf("empty export = %q, %v", empty, err)
	}

	in := lunch()
	in.Notes = "team"
	if _, err := s.AddRecord(ctx, in); err != nil {
		t.Fatal(err)
	}
	data, err := s.Export(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\n  {\n    \"id\": \"rec_1\"") {
		t.Fatalf("export not indented with two spaces:\n%s", data)
	}

	other := newTestStore(t, memory.New())
	if _, err := other.Import(ctx, data, true); err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if got, want := other.Records(), s.Records(); len(got) != 1 || got[0] != want[0] {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, want)
	}
}

func TestReset(t *testing.T) {
	kv := memory.New()
	s := newTestStore(t, kv)
	ctx := context.Background()
	_, _ = s.AddRecord(ctx, lunch())
	_ = s.SetTheme(ctx, "dark")

	if err := s.Reset(ctx, false); !errors.Is(err, core.ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	if err := s.Reset(ctx, true); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	records, settings := s.Snapshot()
	if len(records) != 0 || settings.Theme != core.ThemeLight {
		t.Fatalf("state not reset: %v %+v", records, settings)
	}
	if _, err := kv.Get(ctx, storage.RecordsKey); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("records key should be deleted, got %v", err)
	}
}

func TestNotifier(t *testing.T) {
	var events []ChangeEvent
	n := NotifierFunc(func(_ context.Context, ev ChangeEvent) error {
		events = append(events, ev)
		return errors.New("broker down")
	})
	s := newTestStore(t, memory.New(), WithNotifier(n))
	ctx := context.Background()

	rec, err := s.AddRecord(ctx, lunch())
	if err != nil {
		t.Fatalf("notifier failure must not fail the commit: %v", err)
	}
	_ = s.SetTheme(ctx, "dark")
	_ = s.DeleteRecord(ctx, rec.ID, true)
	if _, err := s.AddRecord(ctx, validate.RecordInput{}); err == nil {
		t.Fatal("expected validation error")
	}

	kinds := make([]EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	want := []EventKind{EventRecordCreated, EventSettingsChanged, EventRecordDeleted}
	if fmt.Sprint(kinds) != fmt.Sprint(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	if events[0].RecordID != rec.ID || events[0].RecordCount != 1 || events[2].RecordCount != 0 {
		t.Fatalf("unexpected event payloads %+v", events)
	}

	body, _ := json.Marshal(events[0])
	if strings.Contains(string(body), "Lunch") {
		t.Fatal("events must not carry record content")
	}
}
