package models

import (
	"strings"

	"github.com/google/uuid"
)

// NoCandidateConfidence marks a mismatch for which no candidate was evaluated
// because the opposite sequence was empty. Distinct from a real score of 0.
const NoCandidateConfidence = -1

// DefaultThreshold is the minimum confidence for a Match when none is given.
const DefaultThreshold = 70

// ============================================================================
// Direction
// ============================================================================

// Direction records which pass produced a record.
type Direction string

const (
	DirectionSourceToTarget Direction = "source_to_target"
	DirectionTargetToSource Direction = "target_to_source"
)

// ============================================================================
// Input
// ============================================================================

// Entry is one cell from a source or target column: its text and, when an
// identifier column was selected, that row's identifier.
type Entry struct {
	Value string  `json:"value"`
	ID    *string `json:"id,omitempty"`
}

// NewEntry builds an Entry without an identifier.
func NewEntry(value string) Entry {
	return Entry{Value: value}
}

// NewEntryWithID builds an Entry carrying an identifier.
func NewEntryWithID(value, id string) Entry {
	return Entry{Value: value, ID: &id}
}

// Label returns the trimmed value used for scoring.
func (e Entry) Label() string {
	return strings.TrimSpace(e.Value)
}

// EntriesFromValues wraps plain strings as entries without identifiers.
func EntriesFromValues(values []string) []Entry {
	entries := make([]Entry, len(values))
	for i, v := range values {
		entries[i] = NewEntry(v)
	}
	return entries
}

// ============================================================================
// Result
// ============================================================================

// MatchRecord is a source value paired with its best target at or above the threshold.
type MatchRecord struct {
	SourceValue string    `json:"source_value"`
	TargetValue string    `json:"target_value"`
	MatchedID   *string   `json:"matched_id"`
	Confidence  int       `json:"confidence"`
	Direction   Direction `json:"direction"`
}

// MismatchRecord is a value whose best candidate fell below the threshold,
// or for which no candidate existed.
type MismatchRecord struct {
	Value         string    `json:"value"`
	ID            *string   `json:"id"`
	BestCandidate *string   `json:"best_candidate"`
	Confidence    int       `json:"confidence"`
	Direction     Direction `json:"direction"`
}

// HasCandidate reports whether any candidate was evaluated for the value.
func (m MismatchRecord) HasCandidate() bool {
	return m.BestCandidate != nil
}

// MatchResultSet is the grouped outcome of one matching run.
type MatchResultSet struct {
	Matches          []MatchRecord    `json:"matches"`
	SourceMismatches []MismatchRecord `json:"source_mismatches"`
	TargetMismatches []MismatchRecord `json:"target_mismatches"`
}

// NewMatchResultSet returns a result set with non-nil empty groups so it
// serializes as empty arrays.
func NewMatchResultSet() *MatchResultSet {
	return &MatchResultSet{
		Matches:          []MatchRecord{},
		SourceMismatches: []MismatchRecord{},
		TargetMismatches: []MismatchRecord{},
	}
}

// Total is the number of records across all three groups.
func (r *MatchResultSet) Total() int {
	return len(r.Matches) + len(r.SourceMismatches) + len(r.TargetMismatches)
}

// ============================================================================
// Export
// ============================================================================

// RecordType labels a flattened export record.
type RecordType string

const (
	RecordTypeMatch          RecordType = "Match"
	RecordTypeSourceMismatch RecordType = "Source Mismatch"
	RecordTypeTargetMismatch RecordType = "Target Mismatch"
)

// Placeholders used when flattening records.
const (
	NotApplicable = "N/A"
	NoMatch       = "No Match"
)

// ExportRecord is a uniform row of the flattened result.
type ExportRecord struct {
	Type        RecordType `json:"type"`
	SourceValue string     `json:"source_value"`
	TargetValue string     `json:"target_value"`
	ID          string     `json:"id"`
	Confidence  string     `json:"confidence"`
	Direction   Direction  `json:"direction"`
}

// Summary aggregates a result for the summary sheet.
type Summary struct {
	TotalRecords      int    `json:"total_records"`
	Matches           int    `json:"matches"`
	SourceMismatches  int    `json:"source_mismatches"`
	TargetMismatches  int    `json:"target_mismatches"`
	AverageConfidence string `json:"average_confidence"`
}

// MatchRun is everything returned for one matching invocation.
type MatchRun struct {
	RunID     uuid.UUID       `json:"run_id"`
	Threshold int             `json:"threshold"`
	IDColumn  string          `json:"id_column"`
	Result    *MatchResultSet `json:"result"`
	Records   []ExportRecord  `json:"records"`
	Summary   Summary         `json:"summary"`
}
