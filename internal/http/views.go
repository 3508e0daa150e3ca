package http

import (
	"html/template"
	"time"

	"glowbudget/internal/core"
	"glowbudget/internal/query"
	"glowbudget/internal/search"
	"glowbudget/internal/validate"
)

// recordRow is one table line. Text cells are pre-escaped, with search
// matches wrapped in <mark>.
type recordRow struct {
	ID          string
	Date        template.HTML
	Description template.HTML
	Category    template.HTML
	Notes       template.HTML
	Amount      string
}

type tableView struct {
	Rows       []recordRow
	State      query.State
	SortKeys   []query.SortKey
	Categories []string
	Known      []string
	Invalid    bool
	Status     string
	Shown      int
	Total      int
	// OOB refreshes the filter and category choices outside the table.
	OOB bool
}

type trendBar struct {
	Date   string
	Label  string
	Weight int
}

type statsView struct {
	Count       int
	Total       string
	TopCategory string
	MonthTotal  string
	CapStatus   query.CapStatus
	CapLimit    string
	CapAmount   string
	Trend       []trendBar
}

type formView struct {
	ID         string
	Values     validate.RecordInput
	Errors     validate.FieldErrors
	Categories []string
	Today      string
	// Amounts are always entered in the base currency.
	Currency core.Currency
}

// Action is the URL the form posts to.
func (f formView) Action() string {
	if f.ID == "" {
		return "/records"
	}
	return "/records/" + f.ID
}

type rateRow struct {
	Code  core.Currency
	Value string
	Error string
}

type categoryRow struct {
	Name  string
	InUse bool
}

type settingsView struct {
	Theme           core.Theme
	DisplayCurrency core.Currency
	Currencies      []core.Currency
	BaseCurrency    core.Currency
	Rates           []rateRow
	Cap             string
	Categories      []categoryRow

	// Set by the settings commands.
	Message string
	Errors  map[string]string
}

// Settings form keys for inline errors.
const (
	settingsCurrency = "currency"
	settingsCap      = "cap"
	settingsCategory = "category"
)

func rateKey(c core.Currency) string {
	return "rate:" + string(c)
}

// withError attaches msg to the input identified by key.
func (sv *settingsView) withError(key, msg string) {
	if sv.Errors == nil {
		sv.Errors = make(map[string]string)
	}
	sv.Errors[key] = msg
	for i := range sv.Rates {
		if rateKey(sv.Rates[i].Code) == key {
			sv.Rates[i].Error = msg
		}
	}
}

type pageData struct {
	Theme    core.Theme
	Table    tableView
	Stats    statsView
	Form     formView
	Settings settingsView
}

func buildTable(records []core.Record, settings core.Settings, st query.State, c query.Compiler) tableView {
	view := query.DeriveViewWith(records, st, c)

	rows := make([]recordRow, 0, len(view.Records))
	for _, r := range view.Records {
		rows = append(rows, recordRow{
			ID:          r.ID,
			Date:        search.Highlight(r.Date, view.Matcher),
			Description: search.Highlight(r.Description, view.Matcher),
			Category:    search.Highlight(r.Category, view.Matcher),
			Notes:       search.Highlight(r.Notes, view.Matcher),
			Amount:      money(settings, r.Amount),
		})
	}

	return tableView{
		Rows:       rows,
		State:      st,
		SortKeys:   query.SortKeys(),
		Categories: append([]string{core.CategoryAll}, settings.Categories...),
		Known:      settings.Categories,
		Invalid:    view.SearchStatus == search.StatusInvalid,
		Status:     searchStatusText(view.SearchStatus, len(rows), view.Considered),
		Shown:      len(rows),
		Total:      view.Considered,
	}
}

func buildStats(records []core.Record, settings core.Settings, now time.Time) statsView {
	st := query.ComputeStats(records, settings, now)

	top := st.TopCategory
	if top == "" {
		top = "-"
	}
	sv := statsView{
		Count:       st.Count,
		Total:       core.FormatMoney(st.DisplayTotal, st.DisplayCurrency),
		TopCategory: top,
		MonthTotal:  money(settings, st.MonthTotal),
		CapStatus:   st.Cap.Status,
	}
	if st.Cap.Status != query.CapDisabled {
		sv.CapLimit = money(settings, st.Cap.Limit)
		sv.CapAmount = money(settings, st.Cap.Amount)
	}
	for _, p := range st.Trend {
		sv.Trend = append(sv.Trend, trendBar{
			Date:   p.Date,
			Label:  p.Date + ": " + money(settings, p.Total),
			Weight: p.Weight,
		})
	}
	return sv
}

// newFormView prepares the record form. A nil record gives an empty form
// dated today.
func newFormView(settings core.Settings, rec *core.Record, now time.Time) formView {
	f := formView{
		Categories: settings.Categories,
		Today:      now.Format("2006-01-02"),
		Currency:   core.BaseCurrency,
	}
	if rec == nil {
		f.Values.Date = f.Today
		return f
	}
	f.ID = rec.ID
	f.Values = validate.RecordInput{
		Description: rec.Description,
		Amount:      core.FormatAmount(rec.Amount),
		Date:        rec.Date,
		Category:    rec.Category,
		Notes:       rec.Notes,
	}
	return f
}

func buildSettings(records []core.Record, settings core.Settings) settingsView {
	used := core.CategoriesInUse(records)

	sv := settingsView{
		Theme:           settings.Theme,
		DisplayCurrency: settings.DisplayCurrency,
		Currencies:      core.Currencies(),
		BaseCurrency:    core.BaseCurrency,
		Cap:             core.FormatAmount(settings.MonthlyCap),
	}
	for _, c := range core.Currencies() {
		if c == core.BaseCurrency {
			continue
		}
		sv.Rates = append(sv.Rates, rateRow{Code: c, Value: core.FormatAmount(settings.Rate(c))})
	}
	for _, name := range settings.Categories {
		sv.Categories = append(sv.Categories, categoryRow{Name: name, InUse: used[name]})
	}
	return sv
}
