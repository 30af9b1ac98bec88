package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ekaya-inc/ekaya-match/pkg/models"
)

// Sheet names of the exported workbook.
const (
	ResultsSheet = "Matching Results"
	SummarySheet = "Summary"
)

// Report is a formatted run ready to be written.
type Report struct {
	IDColumn string
	Records  []models.ExportRecord
	Summary  models.Summary
}

// NewReport formats result and computes its summary.
func NewReport(result *models.MatchResultSet, idColumn string) Report {
	return Report{
		IDColumn: idColumn,
		Records:  Format(result),
		Summary:  Summarize(result),
	}
}

// WriteWorkbook writes the report as an xlsx workbook with a results sheet
// and a summary sheet.
func WriteWorkbook(w io.Writer, report Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		return fmt.Errorf("rename results sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"E2E8F0"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	rows := make([][]string, 0, len(report.Records))
	for _, r := range report.Records {
		rows = append(rows, recordRow(r))
	}
	if err := writeSheet(f, ResultsSheet, Columns(report.IDColumn), rows, headerStyle); err != nil {
		return err
	}

	summary := SummaryRows(report.Summary)
	rows = make([][]string, 0, len(summary))
	for _, kv := range summary {
		rows = append(rows, []string{kv[0], kv[1]})
	}
	if err := writeSheet(f, SummarySheet, []string{"Metric", "Value"}, rows, headerStyle); err != nil {
		return err
	}

	if err := f.SetColWidth(ResultsSheet, "A", "F", 24); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(SummarySheet, "A", "B", 28); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]string, headerStyle int) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	for i, row := range rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// WriteCSV writes the flat records with a header row.
func WriteCSV(w io.Writer, records []models.ExportRecord, idColumn string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns(idColumn)); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(recordRow(r)); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
