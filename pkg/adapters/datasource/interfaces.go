package datasource

import (
	"context"

	"github.com/ekaya-inc/ekaya-match/pkg/models"
)

// DefaultReadLimit caps rows returned by ReadColumn when no limit is given.
const DefaultReadLimit = 50000

// ConnectionTester tests database connectivity.
// Each implementation owns its connection and must be closed when done.
type ConnectionTester interface {
	// TestConnection verifies the database is reachable with valid credentials.
	TestConnection(ctx context.Context) error

	// Close releases the database connection.
	Close() error
}

// ColumnReader lists tables and columns and reads one column of values,
// optionally paired with an identifier column, for matching.
type ColumnReader interface {
	ConnectionTester

	// ListTables returns all user tables (excludes system schemas).
	ListTables(ctx context.Context) ([]Table, error)

	// ListColumns returns the columns of a table in ordinal order.
	// The table may be schema-qualified ("sales.ledger").
	ListColumns(ctx context.Context, table string) ([]Column, error)

	// ReadColumn reads up to req.Limit rows of req.ValueColumn (and
	// req.IDColumn when set) in table order. NULL cells become "".
	ReadColumn(ctx context.Context, req ColumnRequest) ([]models.Entry, error)

	// QuoteIdentifier quotes a table or column name for this dialect.
	QuoteIdentifier(name string) string
}

// Table represents a database table.
type Table struct {
	Schema string `json:"schema,omitempty"`
	Name   string `json:"name"`
}

// QualifiedName returns schema.name, or name when there is no schema.
func (t Table) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// Column represents a database column.
type Column struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
}

// ColumnRequest selects the values to read from a table.
type ColumnRequest struct {
	Table       string `json:"table"`
	ValueColumn string `json:"value_column"`
	IDColumn    string `json:"id_column,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

// EffectiveLimit returns the row cap, applying DefaultReadLimit.
func (r ColumnRequest) EffectiveLimit() int {
	if r.Limit <= 0 {
		return DefaultReadLimit
	}
	return r.Limit
}
