// Package export flattens a match result into uniform records and renders
// them as an Excel workbook or CSV.
package export

import (
	"fmt"
	"time"

	"github.com/ekaya-inc/ekaya-match/pkg/models"
)

// Column headers of the results sheet. The identifier header is the name of
// the identifier column selected for the run.
const (
	HeaderType        = "Type"
	HeaderSourceValue = "Source Value"
	HeaderTargetValue = "Target Value"
	HeaderConfidence  = "Confidence"
	HeaderDirection   = "Direction"
)

// Summary metric names, in sheet order.
const (
	MetricTotal            = "Total Records Processed"
	MetricMatches          = "Successful Matches"
	MetricSourceMismatches = "Source Mismatches"
	MetricTargetMismatches = "Target Mismatches"
	MetricAverage          = "Average Confidence Score"
)

// Columns returns the results header row.
func Columns(idColumn string) []string {
	if idColumn == "" {
		idColumn = "ID"
	}
	return []string{HeaderType, HeaderSourceValue, HeaderTargetValue, idColumn, HeaderConfidence, HeaderDirection}
}

// Format flattens result into records: matches, then source mismatches, then
// target mismatches, each group in its original order.
func Format(result *models.MatchResultSet) []models.ExportRecord {
	if result == nil {
		return []models.ExportRecord{}
	}

	records := make([]models.ExportRecord, 0, result.Total())
	for _, m := range result.Matches {
		records = append(records, models.ExportRecord{
			Type:        models.RecordTypeMatch,
			SourceValue: m.SourceValue,
			TargetValue: m.TargetValue,
			ID:          orDefault(m.MatchedID, models.NotApplicable),
			Confidence:  formatConfidence(m.Confidence),
			Direction:   m.Direction,
		})
	}
	for _, m := range result.SourceMismatches {
		records = append(records, models.ExportRecord{
			Type:        models.RecordTypeSourceMismatch,
			SourceValue: m.Value,
			TargetValue: orDefault(m.BestCandidate, models.NoMatch),
			ID:          models.NotApplicable,
			Confidence:  formatConfidence(m.Confidence),
			Direction:   m.Direction,
		})
	}
	for _, m := range result.TargetMismatches {
		records = append(records, models.ExportRecord{
			Type:        models.RecordTypeTargetMismatch,
			SourceValue: orDefault(m.BestCandidate, models.NoMatch),
			TargetValue: m.Value,
			ID:          orDefault(m.ID, models.NotApplicable),
			Confidence:  formatConfidence(m.Confidence),
			Direction:   m.Direction,
		})
	}
	return records
}

// Summarize counts records by type and averages the confidence of matches.
func Summarize(result *models.MatchResultSet) models.Summary {
	if result == nil {
		return models.Summary{AverageConfidence: models.NotApplicable}
	}

	s := models.Summary{
		TotalRecords:      result.Total(),
		Matches:           len(result.Matches),
		SourceMismatches:  len(result.SourceMismatches),
		TargetMismatches:  len(result.TargetMismatches),
		AverageConfidence: models.NotApplicable,
	}
	if len(result.Matches) > 0 {
		total := 0
		for _, m := range result.Matches {
			total += m.Confidence
		}
		s.AverageConfidence = fmt.Sprintf("%.2f%%", float64(total)/float64(len(result.Matches)))
	}
	return s
}

// SummaryRows returns the Metric/Value pairs of a summary, in sheet order.
func SummaryRows(s models.Summary) [][2]string {
	return [][2]string{
		{MetricTotal, fmt.Sprint(s.TotalRecords)},
		{MetricMatches, fmt.Sprint(s.Matches)},
		{MetricSourceMismatches, fmt.Sprint(s.SourceMismatches)},
		{MetricTargetMismatches, fmt.Sprint(s.TargetMismatches)},
		{MetricAverage, s.AverageConfidence},
	}
}

// FileName returns the download name of a workbook produced at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("fuzzy_matching_results_%s.xlsx", t.Format("20060102_150405"))
}

func formatConfidence(c int) string {
	return fmt.Sprintf("%d%%", c)
}

func orDefault(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

func recordRow(r models.ExportRecord) []string {
	return []string{string(r.Type), r.SourceValue, r.TargetValue, r.ID, r.Confidence, string(r.Direction)}
}
