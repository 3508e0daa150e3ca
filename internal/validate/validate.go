// Package validate checks user-entered record and settings fields.
//
// Every rule runs independently so a form can show all of its problems at
// once. The functions never mutate their input and never panic.
package validate

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"glowbudget/internal/core"
)

// Field names used as FieldErrors keys and form input names.
const (
	FieldDescription = "description"
	FieldAmount      = "amount"
	FieldDate        = "date"
	FieldCategory    = "category"
	FieldNotes       = "notes"
	FieldRate        = "rate"
	FieldCap         = "cap"
)

const (
	MsgEdgeSpaces   = "No leading or trailing spaces."
	MsgTooShort     = "Too short."
	MsgAmount       = "Use numbers like 6500 or 12.50"
	MsgDate         = "Use YYYY-MM-DD"
	MsgCategory     = "Letters only (spaces or hyphens allowed)."
	MsgRepeatedWord = "Notes has a repeated word (example: coffee coffee)."
	MsgRateFormat   = "Use numbers like 1300 or 12.50"
	MsgRatePositive = "Must be greater than 0."
	MsgCapFormat    = "Use numbers like 50000 or 12.50"
	MsgCapNegative  = "Must be 0 or more."
)

const minDescriptionLen = 2

var (
	amountRx   = regexp.MustCompile(`^(0|[1-9]\d*)(\.\d{1,2})?$`)
	dateRx     = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`)
	categoryRx = regexp.MustCompile(`^[A-Za-z]+(?:[ -][A-Za-z]+)*$`)
)

// RecordInput is the raw text of a record form.
type RecordInput struct {
	Description string
	Amount      string
	Date        string
	Category    string
	Notes       string
}

// Normalized holds the cleaned values of a valid RecordInput.
type Normalized struct {
	Description string
	Amount      float64
}

type Result struct {
	Errors     FieldErrors
	Normalized Normalized
}

func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// FieldErrors maps a field name to a human-readable message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// ValidateRecord applies every record rule and reports all failures.
func ValidateRecord(in RecordInput) Result {
	errs := FieldErrors{}

	desc := NormalizeSpaces(in.Description)
	if !trimmedEdges(in.Description) {
		errs[FieldDescription] = MsgEdgeSpaces
	} else if utf8.RuneCountInString(desc) < minDescriptionLen {
		errs[FieldDescription] = MsgTooShort
	}

	var amount float64
	if !amountRx.MatchString(in.Amount) {
		errs[FieldAmount] = MsgAmount
	} else if v, err := core.ParseAmount(in.Amount); err != nil {
		errs[FieldAmount] = MsgAmount
	} else {
		amount = v
	}

	if !dateRx.MatchString(in.Date) {
		errs[FieldDate] = MsgDate
	}

	if !categoryRx.MatchString(in.Category) {
		errs[FieldCategory] = MsgCategory
	}

	if in.Notes != "" && HasRepeatedWord(in.Notes) {
		errs[FieldNotes] = MsgRepeatedWord
	}

	res := Result{Normalized: Normalized{Description: desc, Amount: amount}}
	if len(errs) > 0 {
		res.Errors = errs
	}
	return res
}

// NormalizeSpaces collapses whitespace runs to one space and trims the ends.
// Unicode spaces such as NBSP count as whitespace.
func NormalizeSpaces(s string) string {
	return strings.Join(strings.FieldsFunc(s, isSpace), " ")
}

// trimmedEdges reports whether s is non-empty and neither starts nor ends
// with whitespace.
func trimmedEdges(s string) bool {
	if s == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(s)
	last, _ := utf8.DecodeLastRuneInString(s)
	return !isSpace(first) && !isSpace(last)
}

// isSpace matches the Unicode space characters plus the byte order mark,
// which browsers also treat as whitespace in patterns.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// ValidateRate accepts a strictly positive amount-shaped number.
func ValidateRate(text string) (float64, error) {
	if !amountRx.MatchString(text) {
		return 0, FieldErrors{FieldRate: MsgRateFormat}
	}
	v, err := core.ParseAmount(text)
	if err != nil {
		return 0, FieldErrors{FieldRate: MsgRateFormat}
	}
	if v <= 0 {
		return 0, FieldErrors{FieldRate: MsgRatePositive}
	}
	return v, nil
}

// ValidateCap accepts an empty value (cap disabled) or a non-negative amount.
func ValidateCap(text string) (float64, error) {
	if text == "" {
		return 0, nil
	}
	if !amountRx.MatchString(text) {
		return 0, FieldErrors{FieldCap: MsgCapFormat}
	}
	v, err := core.ParseAmount(text)
	if err != nil {
		return 0, FieldErrors{FieldCap: MsgCapFormat}
	}
	if v < 0 {
		return 0, FieldErrors{FieldCap: MsgCapNegative}
	}
	return v, nil
}

// ValidateCategory checks a category name typed into settings.
func ValidateCategory(text string) error {
	if !categoryRx.MatchString(text) {
		return FieldErrors{FieldCategory: MsgCategory}
	}
	return nil
}

