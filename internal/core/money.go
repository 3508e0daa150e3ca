// Package core provides money parsing and handling utilities.
//
// This file contains the helpers that turn user-entered amounts into numbers
// and back into display strings. Parsing goes through decimal so 12.10 is
// stored as the nearest float to what the user typed.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var ErrInvalidAmount = errors.New("invalid amount")

var printer = message.NewPrinter(language.English)

// ParseAmount converts a plain decimal string (already shape-checked by the
// caller) into a float rounded to two places.
//
// Examples:
//
//	ParseAmount("6500")  -> 6500, nil
//	ParseAmount("12.50") -> 12.5, nil
//	ParseAmount("abc")   -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return d.Round(2).InexactFloat64(), nil
}

// FormatMoney renders an amount with thousands grouping, e.g. "USD 1,234.50".
func FormatMoney(amount float64, c Currency) string {
	if c == "" {
		c = BaseCurrency
	}
	return printer.Sprintf("%s %.2f", c, amount)
}

// FormatAmount renders an amount for form inputs without grouping.
func FormatAmount(amount float64) string {
	d := decimal.NewFromFloat(amount)
	if d.Equal(d.Truncate(0)) {
		return d.StringFixed(0)
	}
	return d.StringFixed(2)
}
