package search

import (
	"html/template"
	"strings"
)

// Highlight escapes text for HTML and wraps every non-empty match in
// <mark>. Matches are located on the raw text and each segment is escaped on
// its own, so user content can never inject markup. A nil matcher returns
// the escaped text.
func Highlight(text string, m *Matcher) template.HTML {
	if m == nil || text == "" {
		return template.HTML(template.HTMLEscapeString(text))
	}

	spans := m.re.FindAllStringIndex(text, -1)
	if len(spans) == 0 {
		return template.HTML(template.HTMLEscapeString(text))
	}

	var b strings.Builder
	last := 0
	for _, span := range spans {
		start, end := span[0], span[1]
		if end == start {
			continue
		}
		b.WriteString(template.HTMLEscapeString(text[last:start]))
		b.WriteString("<mark>")
		b.WriteString(template.HTMLEscapeString(text[start:end]))
		b.WriteString("</mark>")
		last = end
	}
	b.WriteString(template.HTMLEscapeString(text[last:]))
	return template.HTML(b.String())
}
