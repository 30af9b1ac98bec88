// Package sources reads labelled columns from uploaded spreadsheets and CSV files.
package sources

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ekaya-inc/ekaya-match/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-match/pkg/models"
)

// Table is a header row and the data rows beneath it.
// Every row has exactly len(Header) cells.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// newTable pads or truncates rows to the header width.
func newTable(name string, header []string, rows [][]string) (*Table, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: %s has no header row", apperrors.ErrNotTabular, name)
	}
	t := &Table{Name: name, Header: make([]string, len(header)), Rows: make([][]string, 0, len(rows))}
	for i, h := range header {
		t.Header[i] = strings.TrimSpace(h)
	}
	for _, row := range rows {
		cells := make([]string, len(header))
		copy(cells, row)
		t.Rows = append(t.Rows, cells)
	}
	return t, nil
}

// ColumnIndex finds a column by exact name, then case-insensitively.
func (t *Table) ColumnIndex(name string) (int, error) {
	name = strings.TrimSpace(name)
	for i, h := range t.Header {
		if h == name {
			return i, nil
		}
	}
	for i, h := range t.Header {
		if strings.EqualFold(h, name) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q in %s (available: %s)",
		apperrors.ErrColumnNotFound, name, t.Name, strings.Join(t.Header, ", "))
}

// HasColumn reports whether the header contains name.
func (t *Table) HasColumn(name string) bool {
	_, err := t.ColumnIndex(name)
	return err == nil
}

// Entries selects the value column and, when present, the id column.
// A missing value column is an error; a missing id column leaves IDs unset.
func (t *Table) Entries(valueColumn, idColumn string) ([]models.Entry, error) {
	vi, err := t.ColumnIndex(valueColumn)
	if err != nil {
		return nil, err
	}
	ii := -1
	if idColumn != "" {
		ii, _ = t.ColumnIndex(idColumn)
	}

	entries := make([]models.Entry, len(t.Rows))
	for r, row := range t.Rows {
		if ii >= 0 {
			entries[r] = models.NewEntryWithID(row[vi], strings.TrimSpace(row[ii]))
		} else {
			entries[r] = models.NewEntry(row[vi])
		}
	}
	return entries, nil
}

// Kind is the file format of an upload.
type Kind int

const (
	KindUnknown Kind = iota
	KindSpreadsheet
	KindCSV
	KindTSV
)

// KindOf infers the format from a file name's extension.
func KindOf(filename string) Kind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return KindSpreadsheet
	case ".csv", ".txt":
		return KindCSV
	case ".tsv":
		return KindTSV
	default:
		return KindUnknown
	}
}

// Read parses an upload by its file name. sheet selects a worksheet and is
// ignored for delimited files; empty means the first sheet.
func Read(r io.Reader, filename, sheet string) (*Table, error) {
	switch KindOf(filename) {
	case KindSpreadsheet:
		return ReadSpreadsheet(r, filename, sheet)
	case KindCSV:
		return ReadDelimited(r, filename, ',')
	case KindTSV:
		return ReadDelimited(r, filename, '\t')
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", apperrors.ErrNotTabular, filepath.Ext(filename))
	}
}
