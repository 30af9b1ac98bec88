package lexicon

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// thesaurusFile is the on-disk shape of a thesaurus:
//
//	groups:
//	  - [revenue, sales, turnover]
//	  - [expense, cost, expenditure]
type thesaurusFile struct {
	Groups [][]string `yaml:"groups"`
}

// Thesaurus maps each word to every other member of the groups it belongs to.
type Thesaurus struct {
	synonyms map[string][]string
}

// NewThesaurus builds a thesaurus from synonym groups.
func NewThesaurus(groups [][]string) *Thesaurus {
	sets := make(map[string]map[string]struct{})
	for _, group := range groups {
		words := make([]string, 0, len(group))
		for _, w := range group {
			if w = normalizeWord(w); w != "" {
				words = append(words, w)
			}
		}
		for _, w := range words {
			set, ok := sets[w]
			if !ok {
				set = make(map[string]struct{})
				sets[w] = set
			}
			for _, other := range words {
				if other != w {
					set[other] = struct{}{}
				}
			}
		}
	}

	t := &Thesaurus{synonyms: make(map[string][]string, len(sets))}
	for w, set := range sets {
		t.synonyms[w] = sortedKeys(set)
	}
	return t
}

// LoadThesaurus reads a YAML thesaurus file.
func LoadThesaurus(path string) (*Thesaurus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read thesaurus: %w", err)
	}

	var file thesaurusFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse thesaurus %s: %w", path, err)
	}
	return NewThesaurus(file.Groups), nil
}

// Synonyms implements Lexicon.
func (t *Thesaurus) Synonyms(word string) []string {
	return t.synonyms[normalizeWord(word)]
}

// Len returns the number of distinct words in the thesaurus.
func (t *Thesaurus) Len() int {
	return len(t.synonyms)
}
