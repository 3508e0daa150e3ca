package validate

import (
	"strings"
	"unicode"
)

// HasRepeatedWord reports whether a word is immediately followed, after
// whitespace only, by the same word ignoring case ("coffee Coffee").
// Words are runs of ASCII letters, digits and underscores.
func HasRepeatedWord(s string) bool {
	prev := ""
	gapIsSpace := false
	i := 0
	for i < len(s) {
		if !isWordByte(s[i]) {
			if !isSpaceAt(s, i) {
				gapIsSpace = false
				prev = ""
			}
			i += runeLen(s, i)
			continue
		}

		start := i
		for i < len(s) && isWordByte(s[i]) {
			i++
		}
		word := s[start:i]
		if prev != "" && gapIsSpace && strings.EqualFold(prev, word) {
			return true
		}
		prev = word
		gapIsSpace = true
		// A gap must contain at least one space to separate two words.
		if i < len(s) && !isSpaceAt(s, i) {
			gapIsSpace = false
		}
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= '0' && b <= '9') ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z')
}

func isSpaceAt(s string, i int) bool {
	for _, r := range s[i:] {
		return unicode.IsSpace(r)
	}
	return false
}

func runeLen(s string, i int) int {
	for j := range s[i:] {
		if j > 0 {
			return j
		}
	}
	return len(s) - i
}
