package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"glowbudget/internal/core"
	"glowbudget/internal/ledger"
	"glowbudget/internal/log"
	"glowbudget/internal/storage/memory"
	"glowbudget/internal/validate"
)

var fixedNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts ...Option) (*Server, *ledger.Store) {
	t.Helper()
	clock := func() time.Time { return fixedNow }
	store, err := ledger.Open(context.Background(), memory.New(),
		ledger.WithLogger(log.Discard()),
		ledger.WithClock(clock))
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	base := []Option{WithLogger(log.Discard()), WithClock(clock)}
	srv, err := NewServer(":0", store, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv, store
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func postForm(srv *Server, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return serve(srv, req)
}

func get(srv *Server, path string) *httptest.ResponseRecorder {
	return serve(srv, httptest.NewRequest(http.MethodGet, path, nil))
}

func mustAdd(t *testing.T, store *ledger.Store, desc, amount, date, category, notes string) core.Record {
	t.Helper()
	rec, err := store.AddRecord(context.Background(), validate.RecordInput{
		Description: desc, Amount: amount, Date: date, Category: category, Notes: notes,
	})
	if err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	return rec
}

func recordForm(desc, amount, date, category, notes string) url.Values {
	return url.Values{
		"description": {desc},
		"amount":      {amount},
		"date":        {date},
		"category":    {category},
		"notes":       {notes},
	}
}

func TestIndexAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := get(srv, "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"<h1>GlowBudget</h1>", `id="record-form"`, `data-theme="light"`, "No monthly cap set."} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("security headers not applied")
	}
	if !strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_") {
		t.Error("request id header missing")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := get(srv, path)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	if rr := get(srv, "/nope"); rr.Code != http.StatusNotFound {
		t.Errorf("unknown path status=%d, want 404", rr.Code)
	}
}

func TestStaticAssets(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := get(srv, "/static/app.css")
	if rr.Code != http.StatusOK {
		t.Fatalf("static status=%d", rr.Code)
	}
	if got := rr.Header().Get("Cache-Control"); got != "public, max-age=3600" {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestCreateRecordValidationAndSuccess(t *testing.T) {
	srv, store := newTestServer(t)

	// Wrong method
	if rr := get(srv, "/records"); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}

	// Every failing field is reported at once
	rr := postForm(srv, "/records", recordForm(" hi ", "0500", "2025-13-01", "Food1", "coffee coffee"))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, msg := range []string{validate.MsgEdgeSpaces, validate.MsgAmount, validate.MsgDate, validate.MsgCategory, validate.MsgRepeatedWord} {
		if !strings.Contains(body, msg) {
			t.Errorf("422 body missing %q", msg)
		}
	}
	if !strings.Contains(body, `value=" hi "`) {
		t.Error("rejected input should be kept in the form")
	}
	if n := len(store.Records()); n != 0 {
		t.Fatalf("rejected record was stored: %d records", n)
	}

	// Success
	rr = postForm(srv, "/records", recordForm("hi   there", "12.5", "2025-03-09", "Snacks", ""))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	for _, want := range []string{`"records:changed"`, `"form:reset"`, `"show-notification"`} {
		if !strings.Contains(trigger, want) {
			t.Errorf("HX-Trigger missing %s: %s", want, trigger)
		}
	}
	records := store.Records()
	if len(records) != 1 || records[0].Description != "hi there" || records[0].Amount != 12.5 {
		t.Fatalf("unexpected records %+v", records)
	}
	if !store.Settings().HasCategory("Snacks") {
		t.Error("new category should be added to settings")
	}
}

func TestCreateRecordJSONBody(t *testing.T) {
	srv, store := newTestServer(t)

	body := `{"description":"Bus ticket","amount":500,"date":"2025-03-10","category":"Transport"}`
	req := httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := serve(srv, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := store.Records()[0].Amount; got != 500 {
		t.Errorf("amount = %v", got)
	}
}

func TestUpdateRecord(t *testing.T) {
	srv, store := newTestServer(t)
	rec := mustAdd(t, store, "Lunch", "6500", "2025-03-10", "Food", "")

	rr := postForm(srv, "/records/"+rec.ID, recordForm("Dinner", "9000", "2025-03-10", "Food", "with friends"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	got, err := store.Record(rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Description != "Dinner" || got.Amount != 9000 || got.CreatedAt != rec.CreatedAt {
		t.Errorf("unexpected update result %+v", got)
	}

	rr = postForm(srv, "/records/"+rec.ID, recordForm("x", "9000", "2025-03-10", "Food", ""))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `hx-post="/records/`+rec.ID+`"`) {
		t.Error("edit form should keep posting to the record being edited")
	}

	rr = postForm(srv, "/records/rec_missing", recordForm("Dinner", "9000", "2025-03-10", "Food", ""))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestDeleteRecordRequiresConfirmation(t *testing.T) {
	srv, store := newTestServer(t)
	rec := mustAdd(t, store, "Lunch", "6500", "2025-03-10", "Food", "")
	path := "/records/" + rec.ID + "/delete"

	if rr := postForm(srv, path, url.Values{}); rr.Code != http.StatusBadRequest {
		t.Fatalf("unconfirmed delete: expected 400, got %d", rr.Code)
	}
	if len(store.Records()) != 1 {
		t.Fatal("unconfirmed delete removed the record")
	}

	rr := postForm(srv, path, url.Values{"confirm": {"1"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "records:changed") {
		t.Error("delete should refresh the table")
	}
	if len(store.Records()) != 0 {
		t.Fatal("record still present")
	}

	if rr := postForm(srv, path, url.Values{"confirm": {"1"}}); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rr.Code)
	}
}

func TestRecordsPartial(t *testing.T) {
	srv, store := newTestServer(t)
	mustAdd(t, store, "Morning coffee", "1500", "2025-03-08", "Food", "")
	mustAdd(t, store, "Train <b>pass</b>", "30000", "2025-03-01", "Transport", "")
	mustAdd(t, store, "Novel", "12000", "2025-03-05", "Books", "")

	tests := []struct {
		name     string
		query    string
		contains []string
		excludes []string
	}{
		{
			name:     "search highlights matches",
			query:    "q=COFFEE",
			contains: []string{"Morning <mark>coffee</mark>", "1 match."},
			excludes: []string{"Novel"},
		},
		{
			name:     "case sensitive search",
			query:    "q=COFFEE&cs=1",
			contains: []string{"0 matches."},
			excludes: []string{"Morning"},
		},
		{
			name:     "invalid pattern falls back to no search",
			query:    "q=co(ffee",
			contains: []string{"Pattern invalid", "Morning coffee", "Novel"},
		},
		{
			name:     "category filter",
			query:    "category=Books",
			contains: []string{"Novel"},
			excludes: []string{"Morning coffee"},
		},
		{
			name:     "markup in records is escaped",
			query:    "q=pass",
			contains: []string{"Train &lt;b&gt;<mark>pass</mark>&lt;/b&gt;"},
			excludes: []string{"<b>pass"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := get(srv, "/ui/records?"+tt.query)
			if rr.Code != http.StatusOK {
				t.Fatalf("status=%d", rr.Code)
			}
			body := rr.Body.String()
			for _, want := range tt.contains {
				if !strings.Contains(body, want) {
					t.Errorf("body missing %q:\n%s", want, body)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(body, bad) {
					t.Errorf("body should not contain %q", bad)
				}
			}
		})
	}

	// Default sort is newest first.
	body := get(srv, "/ui/records").Body.String()
	coffee, novel, train := strings.Index(body, "Morning"), strings.Index(body, "Novel"), strings.Index(body, "Train")
	if !(coffee < novel && novel < train) {
		t.Errorf("rows not sorted by date desc: coffee=%d novel=%d train=%d", coffee, novel, train)
	}
	if !strings.Contains(body, `hx-swap-oob="true"`) {
		t.Error("partial should refresh the category filter out of band")
	}
}

func TestStatsPartial(t *testing.T) {
	srv, store := newTestServer(t)
	mustAdd(t, store, "Rent share", "32000", "2025-03-02", "Fees", "")
	mustAdd(t, store, "Old bill", "5000", "2025-02-20", "Fees", "")

	if err := store.SetMonthlyCap(context.Background(), "50000"); err != nil {
		t.Fatal(err)
	}
	body := get(srv, "/ui/stats").Body.String()
	for _, want := range []string{"RWF 37,000.00", "RWF 18,000.00 left of the monthly cap of RWF 50,000.00", "Fees"} {
		if !strings.Contains(body, want) {
			t.Errorf("stats missing %q:\n%s", want, body)
		}
	}
	if n := strings.Count(body, `class="bar"`); n != 7 {
		t.Errorf("trend bars = %d, want 7", n)
	}

	if err := store.SetMonthlyCap(context.Background(), "30000"); err != nil {
		t.Fatal(err)
	}
	body = get(srv, "/ui/stats").Body.String()
	if !strings.Contains(body, "Over the monthly cap of RWF 30,000.00 by RWF 2,000.00") {
		t.Errorf("over-cap message missing:\n%s", body)
	}
}

func TestFormPartial(t *testing.T) {
	srv, store := newTestServer(t)
	rec := mustAdd(t, store, "Lunch", "6500.5", "2025-03-10", "Food", "quick")

	rr := get(srv, "/ui/form?id="+rec.ID)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{`value="Lunch"`, `value="6500.50"`, "Save changes"} {
		if !strings.Contains(body, want) {
			t.Errorf("edit form missing %q", want)
		}
	}

	if rr := get(srv, "/ui/form?id=rec_missing"); rr.Code != http.StatusNotFound {
		t.Errorf("missing record: status=%d, want 404", rr.Code)
	}
	if body := get(srv, "/ui/form").Body.String(); !strings.Contains(body, `value="2025-03-10"`) {
		t.Error("new form should default to today")
	}
}

func TestSettingsHandlers(t *testing.T) {
	srv, store := newTestServer(t)
	mustAdd(t, store, "Lunch", "6500", "2025-03-10", "Food", "")

	tests := []struct {
		name       string
		path       string
		form       url.Values
		wantStatus int
		wantBody   string
	}{
		{"dark theme", "/settings/theme", url.Values{"theme": {"dark"}}, http.StatusOK, "Switch to light"},
		{"display currency", "/settings/currency", url.Values{"currency": {"usd"}}, http.StatusOK, "Amounts now shown in USD."},
		{"unknown currency", "/settings/currency", url.Values{"currency": {"GBP"}}, http.StatusUnprocessableEntity, "Unknown currency."},
		{"rate", "/settings/rates", url.Values{"code": {"EUR"}, "rate": {"1500"}}, http.StatusOK, "1 EUR = 1500 RWF."},
		{"zero rate", "/settings/rates", url.Values{"code": {"USD"}, "rate": {"0"}}, http.StatusUnprocessableEntity, validate.MsgRatePositive},
		{"cap", "/settings/cap", url.Values{"cap": {"50000"}}, http.StatusOK, "Monthly cap set to RWF 50,000.00."},
		{"bad cap", "/settings/cap", url.Values{"cap": {"-5"}}, http.StatusUnprocessableEntity, validate.MsgCapFormat},
		{"cap disabled", "/settings/cap", url.Values{"cap": {""}}, http.StatusOK, "Monthly cap disabled."},
		{"add category", "/categories", url.Values{"name": {"Gifts"}}, http.StatusOK, "Category Gifts added."},
		{"similar category", "/categories", url.Values{"name": {"Fod"}}, http.StatusOK, "It looks similar to Food."},
		{"existing category", "/categories", url.Values{"name": {"Food"}}, http.StatusConflict, "already exists"},
		{"bad category", "/categories", url.Values{"name": {"F00d"}}, http.StatusUnprocessableEntity, validate.MsgCategory},
		{"category in use", "/categories/delete", url.Values{"name": {"Food"}}, http.StatusConflict, "used by at least one record"},
		{"missing category", "/categories/delete", url.Values{"name": {"Nope"}}, http.StatusNotFound, "does not exist"},
		{"remove category", "/categories/delete", url.Values{"name": {"Gifts"}}, http.StatusOK, "Category Gifts removed."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postForm(srv, tt.path, tt.form)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Errorf("body missing %q:\n%s", tt.wantBody, rr.Body.String())
			}
		})
	}

	st := store.Settings()
	if st.Theme != core.ThemeDark || st.DisplayCurrency != core.USD || st.Rates[core.EUR] != 1500 || st.MonthlyCap != 0 {
		t.Errorf("unexpected settings %+v", st)
	}
	if st.HasCategory("Gifts") || !st.HasCategory("Fod") {
		t.Errorf("unexpected categories %v", st.Categories)
	}
}

func TestSettingsChangedTrigger(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := postForm(srv, "/settings/theme", url.Values{"theme": {"dark"}})
	var trigger map[string]json.RawMessage
	if err := json.Unmarshal([]byte(rr.Header().Get("HX-Trigger")), &trigger); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	var detail map[string]string
	if err := json.Unmarshal(trigger[EventSettingsChanged], &detail); err != nil {
		t.Fatalf("settings:changed detail: %v", err)
	}
	if detail["theme"] != "dark" || detail["currency"] != "RWF" {
		t.Errorf("unexpected detail %v", detail)
	}
}

func multipartImport(t *testing.T, content string, confirm bool) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if confirm {
		if err := mw.WriteField("confirm", "1"); err != nil {
			t.Fatal(err)
		}
	}
	fw, err := mw.CreateFormFile("file", "backup.json")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

const validImport = `[
  {"id":"a1","description":"Imported lunch","amount":4200,"category":"Dining","date":"2025-03-01",
   "createdAt":"2025-03-01T10:00:00.000Z","updatedAt":"2025-03-01T10:00:00.000Z"}
]`

func TestExportImportReset(t *testing.T) {
	srv, store := newTestServer(t)
	mustAdd(t, store, "Lunch", "6500", "2025-03-10", "Food", "")

	rr := get(srv, "/export")
	if rr.Code != http.StatusOK {
		t.Fatalf("export status=%d", rr.Code)
	}
	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename="glowbudget-data.json"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	var exported []core.Record
	if err := json.Unmarshal(rr.Body.Bytes(), &exported); err != nil || len(exported) != 1 {
		t.Fatalf("export body: %v %s", err, rr.Body.String())
	}

	// Unconfirmed import changes nothing.
	if rr := serve(srv, multipartImport(t, validImport, false)); rr.Code != http.StatusBadRequest {
		t.Fatalf("unconfirmed import: status=%d", rr.Code)
	}

	// One bad field rejects the whole file.
	bad := `[{"id":"a","description":"x","amount":"10","category":"Food","date":"2025-03-01","createdAt":"t","updatedAt":"t"}]`
	rr = serve(srv, multipartImport(t, bad, true))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad import: status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "bad amount") {
		t.Errorf("bad import body: %s", rr.Body.String())
	}
	if recs := store.Records(); len(recs) != 1 || recs[0].Description != "Lunch" {
		t.Fatalf("rejected import changed state: %+v", recs)
	}

	rr = serve(srv, multipartImport(t, validImport, true))
	if rr.Code != http.StatusOK {
		t.Fatalf("import status=%d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "Imported 1 records. Added 1 new categories.") {
		t.Errorf("import body: %s", rr.Body.String())
	}
	recs := store.Records()
	if len(recs) != 1 || recs[0].ID != "a1" {
		t.Fatalf("import did not replace records: %+v", recs)
	}
	if !store.Settings().HasCategory("Dining") || !store.Settings().HasCategory("Food") {
		t.Error("import must add categories and keep existing ones")
	}

	// Reset needs confirmation too.
	if rr := postForm(srv, "/reset", url.Values{}); rr.Code != http.StatusBadRequest {
		t.Fatalf("unconfirmed reset: status=%d", rr.Code)
	}
	rr = postForm(srv, "/reset", url.Values{"confirm": {"1"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("reset status=%d", rr.Code)
	}
	if len(store.Records()) != 0 || store.Settings().HasCategory("Dining") {
		t.Error("reset should restore an empty ledger with default settings")
	}
}

func TestImportJSONBody(t *testing.T) {
	srv, store := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/import?confirm=1", strings.NewReader(validImport))
	req.Header.Set("Content-Type", "application/json")
	if rr := serve(srv, req); rr.Code != http.StatusOK {
		t.Fatalf("status=%d: %s", rr.Code, rr.Body.String())
	}
	if len(store.Records()) != 1 {
		t.Fatal("records not imported")
	}
}

func TestImportSizeLimit(t *testing.T) {
	srv, store := newTestServer(t, WithImportLimit(64))

	rr := serve(srv, multipartImport(t, validImport, true))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d, want 413", rr.Code)
	}
	if len(store.Records()) != 0 {
		t.Fatal("oversized import was applied")
	}

	rr = serve(srv, httptest.NewRequest(http.MethodPost, "/import", strings.NewReader("")))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("non-multipart body: status=%d, want 400", rr.Code)
	}
}

func TestRecordAndSettingsBodyLimit(t *testing.T) {
	srv, store := newTestServer(t)
	huge := strings.Repeat("x", maxFormBytes)
	form := url.Values{"description": {"Lunch"}, "amount": {"10"}, "date": {"2025-03-10"}, "category": {"Food"}, "notes": {huge}}

	if rr := postForm(srv, "/records", form); rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("create: status=%d, want 413", rr.Code)
	}
	if len(store.Records()) != 0 {
		t.Fatal("oversized record was stored")
	}
	if rr := postForm(srv, "/settings/cap", url.Values{"cap": {huge}}); rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("settings: status=%d, want 413", rr.Code)
	}
}

func TestMetrics(t *testing.T) {
	srv, store := newTestServer(t)
	mustAdd(t, store, "Lunch", "6500", "2025-03-10", "Food", "")
	get(srv, "/ui/records?q=lunch")

	body := get(srv, "/metrics").Body.String()
	for _, want := range []string{"http_requests_total 1", "ledger_records 1", "search_cache_entries 1"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q:\n%s", want, body)
		}
	}
}
