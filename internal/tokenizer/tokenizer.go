package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinTokenLength is the minimum rune length of an emitted token.
const MinTokenLength = 2

// Tokenize splits text into lowercase search tokens. A boundary is inserted
// between a lowercase letter and a following uppercase letter so camelCase
// and PascalCase identifiers split into their words. Tokens are maximal runs
// of Unicode letters, digits, and underscores; runs shorter than
// MinTokenLength are discarded. Empty input yields nil. Tokenize is pure and
// never fails.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var b strings.Builder
	b.Grow(len(text) + len(text)/8)
	var prev rune
	for _, r := range text {
		if unicode.IsUpper(r) && unicode.IsLower(prev) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
		prev = r
	}

	split := strings.FieldsFunc(strings.ToLower(b.String()), func(r rune) bool {
		return !isTokenRune(r)
	})

	tokens := split[:0]
	for _, tok := range split {
		if utf8.RuneCountInString(tok) >= MinTokenLength {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// Jaccard computes intersection-over-union of two token slices, treating each
// as a set. Two empty sets have similarity 0.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(a))
	for _, tok := range a {
		setA[tok] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, tok := range b {
		setB[tok] = struct{}{}
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
