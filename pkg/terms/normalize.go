// Package terms turns a raw column label into the set of equivalent strings
// it may be written as: its canonical form, every token's abbreviation and
// lexical synonyms, and the fusions of adjacent tokens.
package terms

import "strings"

// Canonicalize lowercases a label, replaces every character other than an
// ASCII letter, digit or whitespace with a space, collapses runs of
// whitespace and trims the result.
func Canonicalize(label string) string {
	lower := strings.ToLower(label)

	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokenize splits a canonical form on whitespace.
func Tokenize(canonical string) []string {
	return strings.Fields(canonical)
}
