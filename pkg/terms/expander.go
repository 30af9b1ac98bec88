package terms

import (
	"strings"

	"github.com/ekaya-inc/ekaya-match/pkg/lexicon"
)

// Expander produces the TermSet of a label. It holds only read-only tables
// and is safe for concurrent use.
type Expander struct {
	abbreviations *AbbreviationTable
	lexicon       lexicon.Lexicon
}

// NewExpander creates an Expander. A nil table uses the default
// abbreviations; a nil lexicon adds no lexical synonyms.
func NewExpander(abbreviations *AbbreviationTable, lex lexicon.Lexicon) *Expander {
	if abbreviations == nil {
		abbreviations = DefaultAbbreviationTable()
	}
	if lex == nil {
		lex = lexicon.None{}
	}
	return &Expander{abbreviations: abbreviations, lexicon: lex}
}

// Synonyms returns every string considered equivalent to a single token,
// always including the token itself.
func (e *Expander) Synonyms(token string) TermSet {
	token = strings.ToLower(token)
	ts := NewTermSet(token)
	for _, s := range e.abbreviations.Lookup(token) {
		ts.Add(s)
	}
	for _, s := range e.lexicon.Synonyms(token) {
		ts.Add(strings.ToLower(s))
	}
	return ts
}

// Expand returns the canonical form of label, the synonyms of each of its
// tokens and the concatenation of each adjacent token pair. The result is
// never empty: an empty label expands to {""}.
func (e *Expander) Expand(label string) TermSet {
	canonical := Canonicalize(label)
	ts := NewTermSet(canonical)

	tokens := Tokenize(canonical)
	for _, tok := range tokens {
		ts.AddAll(e.Synonyms(tok))
	}
	for i := 0; i+1 < len(tokens); i++ {
		ts.Add(tokens[i] + tokens[i+1])
	}
	return ts
}
