package core

import (
	"errors"
	"slices"
	"strings"
	"time"
)

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

const (
	RWF Currency = "RWF"
	USD Currency = "USD"
	EUR Currency = "EUR"

	// BaseCurrency is the unit every stored amount and the monthly cap are expressed in.
	BaseCurrency = RWF
)

// TimestampLayout is the ISO-8601 UTC form used for createdAt/updatedAt.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// CategoryAll is the filter value that disables category filtering.
const CategoryAll = "All"

type (
	Theme    string
	Currency string

	// Record is a single transaction. Amount is in BaseCurrency.
	Record struct {
		ID          string  `json:"id"`
		Description string  `json:"description"`
		Amount      float64 `json:"amount"`
		Category    string  `json:"category"`
		Date        string  `json:"date"`
		Notes       string  `json:"notes,omitempty"`
		CreatedAt   string  `json:"createdAt"`
		UpdatedAt   string  `json:"updatedAt"`
	}

	// Settings are the user preferences persisted next to the records.
	// Rates map a non-base currency to how many base units one unit is worth.
	Settings struct {
		Theme           Theme                `json:"theme"`
		DisplayCurrency Currency             `json:"displayCurrency"`
		Rates           map[Currency]float64 `json:"rates"`
		MonthlyCap      float64              `json:"monthlyCap"`
		Categories      []string             `json:"categories"`
	}
)

var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrCategoryInUse    = errors.New("category is in use by at least one record")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryExists   = errors.New("category already exists")
	ErrUnknownCurrency  = errors.New("unknown currency")
	ErrNotConfirmed     = errors.New("action requires confirmation")
)

var defaultCategories = []string{"Food", "Books", "Transport", "Entertainment", "Fees", "Other"}

// DefaultSettings returns a fresh copy of the first-run settings.
func DefaultSettings() Settings {
	return Settings{
		Theme:           ThemeLight,
		DisplayCurrency: RWF,
		Rates:           map[Currency]float64{USD: 1300, EUR: 1400},
		MonthlyCap:      0,
		Categories:      slices.Clone(defaultCategories),
	}
}

// Currencies lists the selectable display currencies, base first.
func Currencies() []Currency {
	return []Currency{RWF, USD, EUR}
}

func (c Currency) IsValid() bool {
	switch c {
	case RWF, USD, EUR:
		return true
	default:
		return false
	}
}

func (c Currency) String() string {
	return string(c)
}

// ParseCurrency accepts a currency code in any case.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", ErrUnknownCurrency
	}
	return c, nil
}

// ParseTheme maps anything but "dark" to the light theme.
func ParseTheme(s string) Theme {
	if Theme(s) == ThemeDark {
		return ThemeDark
	}
	return ThemeLight
}

// Timestamp formats t in TimestampLayout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Clone returns a deep copy so callers cannot mutate shared state.
func (s Settings) Clone() Settings {
	out := s
	out.Rates = make(map[Currency]float64, len(s.Rates))
	for k, v := range s.Rates {
		out.Rates[k] = v
	}
	out.Categories = slices.Clone(s.Categories)
	return out
}

// Rate returns base units per unit of c. The base currency is always 1.
func (s Settings) Rate(c Currency) float64 {
	if c == BaseCurrency {
		return 1
	}
	if r, ok := s.Rates[c]; ok && r > 0 {
		return r
	}
	if r, ok := DefaultSettings().Rates[c]; ok {
		return r
	}
	return 1
}

// Convert expresses a base amount in the display currency.
func (s Settings) Convert(amount float64) float64 {
	if s.DisplayCurrency == BaseCurrency || s.DisplayCurrency == "" {
		return amount
	}
	return amount / s.Rate(s.DisplayCurrency)
}

func (s Settings) HasCategory(name string) bool {
	return slices.Contains(s.Categories, name)
}

// CategoriesInUse returns the set of category names referenced by records.
func CategoriesInUse(records []Record) map[string]bool {
	used := make(map[string]bool, len(records))
	for _, r := range records {
		used[r.Category] = true
	}
	return used
}
