package sources

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ekaya-inc/ekaya-match/pkg/apperrors"
)

// ReadDelimited reads a comma- or tab-separated file. The first record is the header.
func ReadDelimited(r io.Reader, name string, delim rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s is empty", apperrors.ErrNotTabular, name)
		}
		return nil, fmt.Errorf("%w: read header of %s: %v", apperrors.ErrNotTabular, name, err)
	}
	if len(header) > 0 {
		header[0] = trimBOM(header[0])
	}

	var rows [][]string
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", apperrors.ErrNotTabular, name, err)
		}
		rows = append(rows, record)
	}
	return newTable(name, header, rows)
}

func trimBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}
