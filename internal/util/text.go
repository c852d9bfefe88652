package util

import (
	"strings"
	"unicode"
)

// NormalizeAnswer lowercases, strips punctuation, and collapses
// whitespace: the normalization the Fusion Matcher's consistency check
// applies before comparing text.
func NormalizeAnswer(s string) string {
	var b strings.Builder
	lastWasSpace := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastWasSpace = false
		case unicode.IsSpace(r):
			if !lastWasSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastWasSpace = true
			}
		default:
			// punctuation dropped, not replaced with a space
		}
	}
	return strings.TrimSpace(b.String())
}

// AlphanumericLower keeps only letters/digits, matching the stricter
// form the text-similarity strategy compares (no spaces at all).
func AlphanumericLower(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HasLatinLetter reports whether s contains at least one ASCII letter,
// used to separate English handwriting words from Chinese print tokens
// before OCR words are merged into lines.
func HasLatinLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}
