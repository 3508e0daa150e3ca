// Package query derives what the record table and statistics panel show
// from the stored records and the current UI query state.
//
// Everything here is a pure function of its inputs: nothing is cached and
// the input slice is never reordered or modified.
package query

import (
	"cmp"
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"glowbudget/internal/core"
	"glowbudget/internal/search"
)

// SortKey selects the sort field and direction.
type SortKey string

const (
	SortDateAsc         SortKey = "date-asc"
	SortDateDesc        SortKey = "date-desc"
	SortDescriptionAsc  SortKey = "description-asc"
	SortDescriptionDesc SortKey = "description-desc"
	SortAmountAsc       SortKey = "amount-asc"
	SortAmountDesc      SortKey = "amount-desc"

	DefaultSort = SortDateDesc
)

// SortKeys lists the supported keys in menu order.
func SortKeys() []SortKey {
	return []SortKey{
		SortDateDesc, SortDateAsc,
		SortDescriptionAsc, SortDescriptionDesc,
		SortAmountDesc, SortAmountAsc,
	}
}

func (k SortKey) IsValid() bool {
	return slices.Contains(SortKeys(), k)
}

// State is the transient, per-view query state. It is never persisted.
type State struct {
	Sort          SortKey
	Category      string
	Search        string
	CaseSensitive bool
}

func DefaultState() State {
	return State{Sort: DefaultSort, Category: core.CategoryAll}
}

// Compiler turns search text into a matcher. *search.Compiler satisfies it.
type Compiler interface {
	Compile(text string, caseSensitive bool) (*search.Matcher, search.Status)
}

type compilerFunc func(string, bool) (*search.Matcher, search.Status)

func (f compilerFunc) Compile(text string, cs bool) (*search.Matcher, search.Status) {
	return f(text, cs)
}

// View is the derived, ordered subset of records to display.
type View struct {
	Records      []core.Record
	Matcher      *search.Matcher
	SearchStatus search.Status
	// Considered is the size of the collection the view was derived from.
	Considered int
}

// DeriveView applies the category filter, then the search filter, then the
// sort, in that order.
func DeriveView(records []core.Record, st State) View {
	return DeriveViewWith(records, st, compilerFunc(search.Compile))
}

// DeriveViewWith is DeriveView with a caller-supplied pattern compiler.
func DeriveViewWith(records []core.Record, st State, c Compiler) View {
	view := View{Considered: len(records)}

	out := make([]core.Record, 0, len(records))
	for _, r := range records {
		if st.Category == "" || st.Category == core.CategoryAll || r.Category == st.Category {
			out = append(out, r)
		}
	}

	if st.Search != "" {
		m, status := c.Compile(st.Search, st.CaseSensitive)
		view.SearchStatus = status
		if status == search.StatusOK {
			view.Matcher = m
			kept := out[:0]
			for _, r := range out {
				if m.MatchRecord(r) {
					kept = append(kept, r)
				}
			}
			out = kept
		}
	}

	SortRecords(out, st.Sort)
	view.Records = out
	return view
}

// SortRecords stable-sorts records in place. Descending orders reverse the
// comparator, so equal keys keep their relative order either way. An unknown
// key leaves the order untouched.
func SortRecords(records []core.Record, key SortKey) {
	var compare func(a, b core.Record) int
	switch key {
	case SortDateAsc, SortDateDesc:
		compare = func(a, b core.Record) int { return cmp.Compare(a.Date, b.Date) }
	case SortAmountAsc, SortAmountDesc:
		compare = func(a, b core.Record) int { return cmp.Compare(a.Amount, b.Amount) }
	case SortDescriptionAsc, SortDescriptionDesc:
		// Collators keep internal buffers, so each sort gets its own.
		col := collate.New(language.English)
		compare = func(a, b core.Record) int { return col.CompareString(a.Description, b.Description) }
	default:
		return
	}

	switch key {
	case SortDateDesc, SortAmountDesc, SortDescriptionDesc:
		slices.SortStableFunc(records, func(a, b core.Record) int { return compare(b, a) })
	default:
		slices.SortStableFunc(records, compare)
	}
}
