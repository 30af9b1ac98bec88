package datasource

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-match/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-match/pkg/models"
)

// CellString converts a driver value to the text that is matched.
// nil becomes "", floats use the shortest decimal form and times RFC 3339.
func CellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(time.RFC3339)
	case [16]byte:
		return uuid.UUID(val).String()
	case driver.Valuer:
		dv, err := val.Value()
		if err != nil {
			return fmt.Sprint(val)
		}
		return CellString(dv)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// RequireColumns checks that every non-empty name is a column of the table,
// matching case-insensitively, and returns the names as the table spells them.
func RequireColumns(table string, columns []Column, names ...string) ([]string, error) {
	resolved := make([]string, len(names))
	for i, name := range names {
		if name == "" {
			continue
		}
		found := false
		for _, c := range columns {
			if strings.EqualFold(c.Name, name) {
				resolved[i] = c.Name
				found = true
				break
			}
		}
		if !found {
			available := make([]string, len(columns))
			for j, c := range columns {
				available[j] = c.Name
			}
			return nil, fmt.Errorf("%w: %q in table %s (available: %s)",
				apperrors.ErrColumnNotFound, name, table, strings.Join(available, ", "))
		}
	}
	return resolved, nil
}

// ScanEntries reads (value) or (value, id) rows from a database/sql result.
func ScanEntries(rows *sql.Rows, withID bool) ([]models.Entry, error) {
	var entries []models.Entry
	for rows.Next() {
		var value, id any
		dest := []any{&value}
		if withID {
			dest = append(dest, &id)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		entries = append(entries, NewEntry(value, id, withID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return entries, nil
}

// NewEntry converts scanned driver values to an entry.
func NewEntry(value, id any, withID bool) models.Entry {
	if !withID {
		return models.NewEntry(CellString(value))
	}
	return models.NewEntryWithID(CellString(value), CellString(id))
}
