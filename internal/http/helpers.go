package http

import (
	"html/template"
	"strconv"
	"strings"

	"glowbudget/internal/core"
	"glowbudget/internal/query"
	"glowbudget/internal/search"
)

// sanitizeInput removes control characters other than tab and newlines.
// Whitespace is left alone; trimming is a validation concern.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		if r == 127 {
			return -1
		}
		return r
	}, s)
}

// money converts a base amount to the display currency and formats it.
func money(settings core.Settings, amount float64) string {
	return core.FormatMoney(settings.Convert(amount), settings.DisplayCurrency)
}

func sortLabel(k query.SortKey) string {
	switch k {
	case query.SortDateDesc:
		return "Date (newest first)"
	case query.SortDateAsc:
		return "Date (oldest first)"
	case query.SortDescriptionAsc:
		return "Description (A-Z)"
	case query.SortDescriptionDesc:
		return "Description (Z-A)"
	case query.SortAmountDesc:
		return "Amount (high to low)"
	case query.SortAmountAsc:
		return "Amount (low to high)"
	default:
		return string(k)
	}
}

func searchStatusText(st search.Status, shown, considered int) string {
	switch st {
	case search.StatusInvalid:
		return "Pattern invalid: showing results without search."
	case search.StatusOK:
		if shown == 1 {
			return "1 match."
		}
		return strconv.Itoa(shown) + " matches."
	default:
		if considered == 0 {
			return "No records yet."
		}
		return ""
	}
}

var templateFuncs = template.FuncMap{
	"amount":    core.FormatAmount,
	"sortLabel": sortLabel,
	"isDark":    func(t core.Theme) bool { return t == core.ThemeDark },
}
