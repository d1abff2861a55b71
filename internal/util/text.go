package util

import (
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "for": {}, "of": {}, "to": {},
	"in": {}, "on": {}, "with": {}, "me": {}, "my": {}, "i": {}, "is": {}, "it": {},
	"show": {}, "find": {}, "want": {}, "need": {}, "looking": {}, "some": {}, "any": {},
	"please": {}, "can": {}, "you": {}, "get": {}, "under": {}, "below": {}, "above": {},
	"between": {}, "less": {}, "than": {}, "rs": {}, "inr": {},
}

// Tokenize lowercases text and splits it on anything that is not a letter
// or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Keywords returns the tokens of text that are not stopwords or pure numbers,
// deduplicated in first-seen order.
func Keywords(text string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, tok := range Tokenize(text) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if isNumber(tok) {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// Truncate clips s to at most n runes, appending an ellipsis when clipped.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
