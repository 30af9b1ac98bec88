package terms

import "sort"

// TermSet is an unordered set of strings considered equivalent to one label.
type TermSet map[string]struct{}

// NewTermSet builds a set from the given terms.
func NewTermSet(terms ...string) TermSet {
	ts := make(TermSet, len(terms))
	for _, t := range terms {
		ts[t] = struct{}{}
	}
	return ts
}

// Add inserts a term.
func (ts TermSet) Add(term string) {
	ts[term] = struct{}{}
}

// AddAll inserts every term of other.
func (ts TermSet) AddAll(other TermSet) {
	for t := range other {
		ts[t] = struct{}{}
	}
}

// Contains reports whether the term is in the set.
func (ts TermSet) Contains(term string) bool {
	_, ok := ts[term]
	return ok
}

// Len returns the number of terms.
func (ts TermSet) Len() int {
	return len(ts)
}

// Sorted returns the terms in lexical order, giving scoring a stable iteration order.
func (ts TermSet) Sorted() []string {
	out := make([]string, 0, len(ts))
	for t := range ts {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
