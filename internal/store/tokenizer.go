package store

import (
	"strings"
	"unicode"
)

// Tokenize splits text on Unicode word boundaries, lowercases, and
// discards tokens shorter than minLen. Per spec.md §4.3, octobrain's
// lexical index applies no stemming and no stopword removal — tokens
// are only case-folded and length-filtered.
func Tokenize(text string, minLen int) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		tok := strings.ToLower(current.String())
		if len([]rune(tok)) >= minLen {
			tokens = append(tokens, tok)
		}
		current.Reset()
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}
