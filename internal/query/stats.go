package query

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"glowbudget/internal/core"
)

// CapStatus is the state of the monthly spending cap.
type CapStatus string

const (
	CapDisabled  CapStatus = "disabled"
	CapRemaining CapStatus = "remaining"
	CapOver      CapStatus = "over"
)

const (
	trendDays = 7
	// minTrendWeight keeps empty days visible as a sliver.
	minTrendWeight = 4
)

// CapSummary compares the current month against the cap. Amount is the
// remainder when under the cap and the overshoot when over it.
type CapSummary struct {
	Status CapStatus
	Limit  float64
	Spent  float64
	Amount float64
}

// TrendPoint is one day of the trailing trend, oldest first.
type TrendPoint struct {
	Date  string
	Total float64
	// Weight is the bar height in percent of the largest day.
	Weight int
}

// Stats are computed from the whole collection, ignoring view filters.
// Money values are in the base currency except DisplayTotal.
type Stats struct {
	Count           int
	Total           float64
	DisplayTotal    float64
	DisplayCurrency core.Currency
	TopCategory     string
	MonthTotal      float64
	Cap             CapSummary
	Trend           []TrendPoint
}

// ComputeStats derives the statistics panel for the given day.
func ComputeStats(records []core.Record, settings core.Settings, now time.Time) Stats {
	st := Stats{
		Count:           len(records),
		DisplayCurrency: settings.DisplayCurrency,
	}
	if st.DisplayCurrency == "" {
		st.DisplayCurrency = core.BaseCurrency
	}

	month := now.Format("2006-01")
	days := trailingDays(now, trendDays)
	dayIndex := make(map[string]int, len(days))
	for i, d := range days {
		dayIndex[d] = i
	}

	total := decimal.Zero
	monthTotal := decimal.Zero
	dayTotals := make([]decimal.Decimal, len(days))
	for i := range dayTotals {
		dayTotals[i] = decimal.Zero
	}
	counts := make(map[string]int)
	var order []string

	for _, r := range records {
		amt := decimal.NewFromFloat(r.Amount)
		total = total.Add(amt)
		if len(r.Date) >= 7 && r.Date[:7] == month {
			monthTotal = monthTotal.Add(amt)
		}
		if i, ok := dayIndex[r.Date]; ok {
			dayTotals[i] = dayTotals[i].Add(amt)
		}
		if _, seen := counts[r.Category]; !seen {
			order = append(order, r.Category)
		}
		counts[r.Category]++
	}

	st.Total = total.Round(2).InexactFloat64()
	st.DisplayTotal = settings.Convert(st.Total)
	st.MonthTotal = monthTotal.Round(2).InexactFloat64()
	st.TopCategory = topCategory(order, counts)
	st.Cap = capSummary(settings.MonthlyCap, monthTotal)
	st.Trend = trend(days, dayTotals)
	return st
}

// topCategory picks the highest count; the first category seen wins ties.
func topCategory(order []string, counts map[string]int) string {
	top, best := "", 0
	for _, c := range order {
		if counts[c] > best {
			top, best = c, counts[c]
		}
	}
	return top
}

func capSummary(limit float64, spent decimal.Decimal) CapSummary {
	cs := CapSummary{Limit: limit, Spent: spent.Round(2).InexactFloat64()}
	if limit <= 0 {
		cs.Status = CapDisabled
		return cs
	}
	diff := decimal.NewFromFloat(limit).Sub(spent)
	if diff.IsNegative() {
		cs.Status = CapOver
		cs.Amount = diff.Neg().Round(2).InexactFloat64()
		return cs
	}
	cs.Status = CapRemaining
	cs.Amount = diff.Round(2).InexactFloat64()
	return cs
}

func trend(days []string, totals []decimal.Decimal) []TrendPoint {
	points := make([]TrendPoint, len(days))
	maxTotal := 0.0
	for i, d := range days {
		v := totals[i].Round(2).InexactFloat64()
		points[i] = TrendPoint{Date: d, Total: v}
		if v > maxTotal {
			maxTotal = v
		}
	}
	for i := range points {
		w := minTrendWeight
		if maxTotal > 0 {
			w = int(math.Round(points[i].Total / maxTotal * 100))
			if w < minTrendWeight {
				w = minTrendWeight
			}
		}
		points[i].Weight = w
	}
	return points
}

// trailingDays returns n calendar days ending today, oldest first, as
// YYYY-MM-DD in now's location.
func trailingDays(now time.Time, n int) []string {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = today.AddDate(0, 0, i-(n-1)).Format("2006-01-02")
	}
	return out
}
