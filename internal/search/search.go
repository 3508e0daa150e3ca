// Package search compiles user-typed regular expressions and matches them
// against records.
package search

import (
	"regexp"

	"glowbudget/internal/core"
)

// Status describes the outcome of compiling a search pattern.
type Status int

const (
	// StatusNone means no pattern was entered.
	StatusNone Status = iota
	StatusOK
	// StatusInvalid means the pattern did not compile; callers show
	// "pattern invalid" and skip search filtering.
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalid:
		return "invalid"
	default:
		return "none"
	}
}

// Matcher is a compiled search pattern. It is immutable and safe for
// concurrent use.
type Matcher struct {
	re *regexp.Regexp
}

// Compile turns user text into a Matcher. Empty text yields StatusNone and a
// malformed pattern StatusInvalid; neither returns a Matcher.
func Compile(text string, caseSensitive bool) (*Matcher, Status) {
	if text == "" {
		return nil, StatusNone
	}
	expr := text
	if !caseSensitive {
		expr = "(?i)" + text
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, StatusInvalid
	}
	return &Matcher{re: re}, StatusOK
}

// MatchRecord reports whether the pattern occurs in the searchable text of
// r: description, category, notes and date joined by single spaces. A
// pattern may therefore span adjacent fields.
func (m *Matcher) MatchRecord(r core.Record) bool {
	return m.re.MatchString(searchText(r))
}

func searchText(r core.Record) string {
	return r.Description + " " + r.Category + " " + r.Notes + " " + r.Date
}
