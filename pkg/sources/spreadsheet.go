package sources

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ekaya-inc/ekaya-match/pkg/apperrors"
)

// SheetNames lists the worksheets of a workbook in order.
func SheetNames(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", apperrors.ErrNotTabular, err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// ReadSpreadsheet reads one worksheet. The first row is the header.
func ReadSpreadsheet(r io.Reader, name, sheet string) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook %s: %v", apperrors.ErrNotTabular, name, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: %s has no worksheets", apperrors.ErrNotTabular, name)
	}
	if sheet == "" {
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q in %s (available: %s)",
			apperrors.ErrSheetNotFound, sheet, name, strings.Join(sheets, ", "))
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %s of %s is empty", apperrors.ErrNotTabular, sheet, name)
	}
	return newTable(name+"/"+sheet, rows[0], rows[1:])
}
