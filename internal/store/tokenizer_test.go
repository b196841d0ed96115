package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize_SplitsOnWhitespaceAndPunctuation(t *testing.T) {
	got := Tokenize("The quick-brown fox, jumps!", 2)
	assert.Equal(t, []string{"the", "quick", "brown", "fox", "jumps"}, got)
}

func TestTokenize_DiscardsShortTokens(t *testing.T) {
	got := Tokenize("a I go to it", 2)
	assert.Equal(t, []string{"go", "to", "it"}, got)
}

func TestTokenize_LowercasesEverything(t *testing.T) {
	got := Tokenize("HTTPRequest Handler", 2)
	assert.Equal(t, []string{"httprequest", "handler"}, got)
}

func TestTokenize_NoStemmingApplied(t *testing.T) {
	got := Tokenize("running runs ran", 2)
	assert.Equal(t, []string{"running", "runs", "ran"}, got)
}

func TestTokenize_HandlesUnicodeLetters(t *testing.T) {
	got := Tokenize("café naïve 日本語", 2)
	assert.Equal(t, []string{"café", "naïve", "日本語"}, got)
}

func TestTokenize_EmptyStringReturnsNoTokens(t *testing.T) {
	assert.Empty(t, Tokenize("", 2))
}
