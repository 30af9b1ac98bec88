package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-match/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-match/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-match/pkg/config"
	"github.com/ekaya-inc/ekaya-match/pkg/logging"
	"github.com/ekaya-inc/ekaya-match/pkg/models"
	"github.com/ekaya-inc/ekaya-match/pkg/retry"
)

// Adapter reads columns from PostgreSQL.
type Adapter struct {
	config *Config
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// All user-provided fields are URL-escaped so passwords containing @, /, # or ?
// do not break URL parsing. When running in Docker, localhost is resolved to
// host.docker.internal.
func buildConnectionString(cfg *Config) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = DefaultSSLMode()
	}

	host := config.ResolveHostForDocker(cfg.Host)

	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		host,
		cfg.Port,
		url.QueryEscape(cfg.Database),
		sslMode,
	)
}

// NewAdapter opens a pool and pings it, retrying transient failures.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	connStr := buildConnectionString(cfg)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %s", logging.SanitizeError(err))
	}

	err = retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() error {
		return pool.Ping(ctx)
	})
	if err != nil {
		pool.Close()
		logger.Error("PostgreSQL connection failed",
			zap.String("dsn", logging.SanitizeConnectionString(connStr)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("connect to postgres: %s", logging.SanitizeError(err))
	}

	return &Adapter{config: cfg, pool: pool, logger: logger}, nil
}

// TestConnection verifies the database is reachable and is the configured database.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var currentDB string
	if err := a.pool.QueryRow(ctx, "SELECT current_database()").Scan(&currentDB); err != nil {
		return fmt.Errorf("failed to get current database name: %w", err)
	}
	if !strings.EqualFold(currentDB, a.config.Database) {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB)
	}
	return nil
}

// ListTables returns user tables outside the system schemas.
func (a *Adapter) ListTables(ctx context.Context) ([]datasource.Table, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		  AND table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.Table
	for rows.Next() {
		var t datasource.Table
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// ListColumns returns the columns of schema.table ("public" when unqualified).
func (a *Adapter) ListColumns(ctx context.Context, table string) ([]datasource.Column, error) {
	schema, name := parseSchemaTable(table)
	rows, err := a.pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, schema, name)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.Column
	for rows.Next() {
		var c datasource.Column
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: table %s.%s", apperrors.ErrNotFound, schema, name)
	}
	return columns, nil
}

// ReadColumn reads the value column, and the id column when requested.
func (a *Adapter) ReadColumn(ctx context.Context, req datasource.ColumnRequest) ([]models.Entry, error) {
	columns, err := a.ListColumns(ctx, req.Table)
	if err != nil {
		return nil, err
	}
	names, err := datasource.RequireColumns(req.Table, columns, req.ValueColumn, req.IDColumn)
	if err != nil {
		return nil, err
	}

	schema, name := parseSchemaTable(req.Table)
	withID := names[1] != ""
	selectList := a.QuoteIdentifier(names[0])
	if withID {
		selectList += ", " + a.QuoteIdentifier(names[1])
	}
	query := fmt.Sprintf("SELECT %s FROM %s LIMIT $1",
		selectList, pgx.Identifier{schema, name}.Sanitize())

	rows, err := a.pool.Query(ctx, query, req.EffectiveLimit())
	if err != nil {
		return nil, fmt.Errorf("read column %s: %w", names[0], err)
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		var id any
		if withID {
			id = values[1]
		}
		entries = append(entries, datasource.NewEntry(values[0], id, withID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read column %s: %w", names[0], err)
	}

	a.logger.Debug("Read column",
		zap.String("table", req.Table),
		zap.String("column", names[0]),
		zap.Int("rows", len(entries)))
	return entries, nil
}

// QuoteIdentifier quotes a name with PostgreSQL double quotes.
func (a *Adapter) QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// Close releases the pool.
func (a *Adapter) Close() error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

// parseSchemaTable splits "schema.table", defaulting to the public schema.
func parseSchemaTable(table string) (string, string) {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return strings.Trim(schema, `"`), strings.Trim(name, `"`)
	}
	return "public", strings.Trim(table, `"`)
}

// Ensure Adapter implements ColumnReader at compile time.
var _ datasource.ColumnReader = (*Adapter)(nil)
