package core

import (
	"encoding/json"
	"math"
)

// DecodeRecords parses the persisted record collection. Absent or
// unreadable data yields an empty collection; the bool reports whether the
// payload had to be discarded.
func DecodeRecords(data []byte) ([]Record, bool) {
	if len(data) == 0 {
		return []Record{}, false
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil || records == nil {
		return []Record{}, true
	}
	return records, false
}

// DecodeSettings merges persisted settings over the defaults field by field.
// Unknown fields are ignored and invalid ones keep their default. Rates merge
// key by key so a stored object with only USD still has the default EUR.
func DecodeSettings(data []byte) (Settings, bool) {
	s := DefaultSettings()
	if len(data) == 0 {
		return s, false
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return s, true
	}

	if v, ok := raw["theme"]; ok {
		var theme string
		if json.Unmarshal(v, &theme) == nil {
			s.Theme = ParseTheme(theme)
		}
	}

	if v, ok := raw["displayCurrency"]; ok {
		var code string
		if json.Unmarshal(v, &code) == nil {
			if c := Currency(code); c.IsValid() {
				s.DisplayCurrency = c
			}
		}
	}

	if v, ok := raw["rates"]; ok {
		var rates map[string]json.RawMessage
		if json.Unmarshal(v, &rates) == nil {
			for code, rv := range rates {
				c := Currency(code)
				if !c.IsValid() || c == BaseCurrency {
					continue
				}
				var rate float64
				if json.Unmarshal(rv, &rate) == nil && isFinite(rate) && rate > 0 {
					s.Rates[c] = rate
				}
			}
		}
	}

	if v, ok := raw["monthlyCap"]; ok {
		var limit float64
		if json.Unmarshal(v, &limit) == nil && isFinite(limit) && limit >= 0 {
			s.MonthlyCap = limit
		}
	}

	if v, ok := raw["categories"]; ok {
		var cats []string
		if json.Unmarshal(v, &cats) == nil && cats != nil {
			s.Categories = dedupe(cats)
		}
	}

	return s, false
}

// EnsureCategories appends every category referenced by records that the
// settings list lacks, in first-seen order. It reports whether anything was
// added.
func EnsureCategories(s *Settings, records []Record) bool {
	known := make(map[string]bool, len(s.Categories))
	for _, c := range s.Categories {
		known[c] = true
	}
	added := false
	for _, r := range records {
		if r.Category == "" || known[r.Category] {
			continue
		}
		known[r.Category] = true
		s.Categories = append(s.Categories, r.Category)
		added = true
	}
	return added
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
