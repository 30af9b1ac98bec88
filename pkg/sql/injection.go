// Package sql screens user-supplied identifiers before they reach a datasource query.
package sql

import (
	"sort"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes an identifier that looks like SQL injection.
type InjectionCheckResult struct {
	Field       string // request field the identifier came from
	Value       string
	Fingerprint string // libinjection fingerprint of the detected pattern
}

// CheckIdentifier runs libinjection over a table or column name.
// Returns nil for clean or empty names.
//
// Identifiers are always quoted by the adapters; this rejects obvious attack
// payloads before a connection is opened.
func CheckIdentifier(field, name string) *InjectionCheckResult {
	if name == "" {
		return nil
	}
	isSQLi, fingerprint := libinjection.IsSQLi(name)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{Field: field, Value: name, Fingerprint: string(fingerprint)}
}

// CheckIdentifiers checks every field -> name pair and returns the failures
// ordered by field.
func CheckIdentifiers(identifiers map[string]string) []*InjectionCheckResult {
	fields := make([]string, 0, len(identifiers))
	for f := range identifiers {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var results []*InjectionCheckResult
	for _, f := range fields {
		if r := CheckIdentifier(f, identifiers[f]); r != nil {
			results = append(results, r)
		}
	}
	return results
}
