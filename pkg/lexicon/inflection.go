package lexicon

import "github.com/jinzhu/inflection"

// Inflections offers the singular and plural forms of a word as synonyms,
// so "expenses" and "expense" expand to each other.
type Inflections struct{}

// Synonyms implements Lexicon.
func (Inflections) Synonyms(word string) []string {
	word = normalizeWord(word)
	if word == "" || !hasLetter(word) {
		return nil
	}

	forms := make(map[string]struct{}, 2)
	if s := inflection.Singular(word); s != word && s != "" {
		forms[s] = struct{}{}
	}
	if p := inflection.Plural(word); p != word && p != "" {
		forms[p] = struct{}{}
	}
	return sortedKeys(forms)
}

// baseForms returns the word followed by its singular form when that differs.
func baseForms(word string) []string {
	forms := []string{word}
	if !hasLetter(word) {
		return forms
	}
	if s := inflection.Singular(word); s != word && s != "" {
		forms = append(forms, s)
	}
	return forms
}

func hasLetter(s string) bool {
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			return true
		}
	}
	return false
}
