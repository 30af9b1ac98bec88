package terms

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultAbbreviations is the built-in table of common column-name
// abbreviations and their expansions.
var DefaultAbbreviations = map[string][]string{
	"amt":  {"amount"},
	"qty":  {"quantity"},
	"id":   {"identifier", "identification"},
	"num":  {"number"},
	"desc": {"description"},
	"acct": {"account"},
	"bal":  {"balance"},
	"cust": {"customer"},
	"prod": {"product"},
	"ref":  {"reference"},
}

// AbbreviationTable maps abbreviations to expansions and expansions back to
// their abbreviations. It is read-only after construction.
type AbbreviationTable struct {
	forward map[string][]string
	reverse map[string][]string
}

// NewAbbreviationTable builds a table from abbreviation → expansions entries.
// Keys and expansions are lowercased.
func NewAbbreviationTable(entries map[string][]string) *AbbreviationTable {
	t := &AbbreviationTable{
		forward: make(map[string][]string, len(entries)),
		reverse: make(map[string][]string),
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		for _, e := range entries[k] {
			exp := strings.ToLower(strings.TrimSpace(e))
			if exp == "" {
				continue
			}
			t.forward[key] = appendUnique(t.forward[key], exp)
			t.reverse[exp] = appendUnique(t.reverse[exp], key)
		}
	}
	return t
}

// DefaultAbbreviationTable returns a table built from DefaultAbbreviations.
func DefaultAbbreviationTable() *AbbreviationTable {
	return NewAbbreviationTable(DefaultAbbreviations)
}

// LoadAbbreviations reads a YAML mapping of abbreviation to expansions:
//
//	amt: [amount]
//	id: [identifier, identification]
func LoadAbbreviations(path string) (*AbbreviationTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read abbreviations: %w", err)
	}

	var entries map[string][]string
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse abbreviations %s: %w", path, err)
	}
	return NewAbbreviationTable(entries), nil
}

// Lookup returns the expansions of an abbreviation and the abbreviations of
// an expansion. The token must already be lowercase.
func (t *AbbreviationTable) Lookup(token string) []string {
	exp := t.forward[token]
	abbr := t.reverse[token]
	if len(abbr) == 0 {
		return exp
	}
	if len(exp) == 0 {
		return abbr
	}
	out := make([]string, 0, len(exp)+len(abbr))
	out = append(out, exp...)
	for _, a := range abbr {
		out = appendUnique(out, a)
	}
	return out
}

// Len returns the number of abbreviations.
func (t *AbbreviationTable) Len() int {
	return len(t.forward)
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
