// Package lexicon provides general-purpose lexical synonym lookups used to
// widen a label's term set: WordNet synsets, YAML thesauri and inflected
// forms. Every implementation is read-only after construction and safe for
// concurrent use.
package lexicon

import (
	"sort"
	"strings"
)

// Lexicon returns lexical synonyms of a single lowercase word.
// Unknown words yield nil rather than an error.
type Lexicon interface {
	Synonyms(word string) []string
}

// None is the empty lexicon used when no language data is available.
type None struct{}

// Synonyms implements Lexicon.
func (None) Synonyms(string) []string { return nil }

// Chain merges the synonyms of several lexicons, deduplicated and sorted.
type Chain []Lexicon

// Synonyms implements Lexicon.
func (c Chain) Synonyms(word string) []string {
	if len(c) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	for _, lex := range c {
		for _, s := range lex.Synonyms(word) {
			seen[s] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}
