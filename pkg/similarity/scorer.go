// Package similarity scores how alike two labels are on a 0-100 scale.
//
// A label is first expanded into its TermSet; the score is the best
// TokenSetRatio over every pair of terms from the two sets.
package similarity

import (
	"github.com/ekaya-inc/ekaya-match/pkg/terms"
)

// MaxScore is the score of identical labels.
const MaxScore = 100

// Scorer compares labels using an Expander. It is stateless beyond the
// expander's read-only tables and safe for concurrent use.
type Scorer struct {
	expander *terms.Expander
}

// NewScorer creates a Scorer. A nil expander uses the default abbreviations
// and no lexical synonyms.
func NewScorer(expander *terms.Expander) *Scorer {
	if expander == nil {
		expander = terms.NewExpander(nil, nil)
	}
	return &Scorer{expander: expander}
}

// Expander returns the expander used to build term sets.
func (s *Scorer) Expander() *terms.Expander {
	return s.expander
}

// Score returns the similarity of two labels. Not guaranteed symmetric.
func (s *Scorer) Score(a, b string) int {
	return ScoreTerms(s.expander.Expand(a), s.expander.Expand(b))
}

// ScoreTerms returns the best TokenSetRatio over every pair of terms.
func ScoreTerms(a, b terms.TermSet) int {
	best := 0
	bTerms := b.Sorted()
	for _, ta := range a.Sorted() {
		for _, tb := range bTerms {
			if r := TokenSetRatio(ta, tb); r > best {
				best = r
				if best == MaxScore {
					return best
				}
			}
		}
	}
	return best
}
