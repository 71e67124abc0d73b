package playbook

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize converts bullet text to a canonical form for duplicate
// comparison: NFKC normalization, lowercase, collapsed whitespace, and no
// trailing sentence punctuation.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ".!")

	var b strings.Builder
	prevSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !prevSpace {
				b.WriteRune(' ')
				prevSpace = true
			}
		} else {
			b.WriteRune(r)
			prevSpace = false
		}
	}
	return b.String()
}

// tokenize splits text into word tokens.
func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	s = strings.ToLower(s)

	var word strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			word.WriteRune(r)
		} else if word.Len() > 0 {
			tokens[word.String()] = true
			word.Reset()
		}
	}
	if word.Len() > 0 {
		tokens[word.String()] = true
	}

	return tokens
}
