package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/microsoft/go-mssqldb"         // SQL Server driver
	_ "github.com/microsoft/go-mssqldb/azuread" // Azure AD support
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-match/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-match/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-match/pkg/config"
	"github.com/ekaya-inc/ekaya-match/pkg/logging"
	"github.com/ekaya-inc/ekaya-match/pkg/models"
	"github.com/ekaya-inc/ekaya-match/pkg/retry"
)

// Adapter reads columns from SQL Server with SQL or Azure AD service principal authentication.
type Adapter struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger
}

// connectionString returns the driver name and DSN for the configured auth method.
func connectionString(cfg *Config) (string, string) {
	query := url.Values{}
	query.Add("database", cfg.Database)
	if cfg.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}
	if cfg.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if cfg.ConnectionTimeout > 0 {
		query.Add("connection timeout", fmt.Sprintf("%d", cfg.ConnectionTimeout))
	}

	host := config.ResolveHostForDocker(cfg.Host)

	if cfg.AuthMethod == AuthServicePrincipal {
		query.Add("fedauth", "ActiveDirectoryServicePrincipal")
		query.Add("user id", cfg.ClientID+"@"+cfg.TenantID)
		query.Add("password", cfg.ClientSecret)
		return "azuresql", fmt.Sprintf("sqlserver://%s:%d?%s", host, cfg.Port, query.Encode())
	}

	return "sqlserver", fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(cfg.Username),
		url.QueryEscape(cfg.Password),
		host,
		cfg.Port,
		query.Encode(),
	)
}

// NewAdapter opens a connection and pings it, retrying transient failures.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	driver, dsn := connectionString(cfg)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %s", cfg.AuthMethod, logging.SanitizeError(err))
	}

	err = retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() error {
		return db.PingContext(ctx)
	})
	if err != nil {
		db.Close()
		logger.Error("SQL Server connection failed",
			zap.String("dsn", logging.SanitizeConnectionString(dsn)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("connection test failed: %s", logging.SanitizeError(err))
	}

	return &Adapter{config: cfg, db: db, logger: logger}, nil
}

// TestConnection verifies the database is reachable with valid credentials.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var result int
	if err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}
	return nil
}

// ListTables returns base tables of the current database.
func (a *Adapter) ListTables(ctx context.Context) ([]datasource.Table, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT TABLE_SCHEMA, TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_SCHEMA, TABLE_NAME`)
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

// ListColumns returns the columns of [schema].[table] ("dbo" when unqualified).
func (a *Adapter) ListColumns(ctx context.Context, table string) ([]datasource.Column, error) {
	schema, name := parseSchemaTable(table)
	rows, err := a.db.QueryContext(ctx, `
		SELECT COLUMN_NAME, DATA_TYPE, CAST(CASE WHEN IS_NULLABLE = 'YES' THEN 1 ELSE 0 END AS BIT)
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION`, schema, name)
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
	selectList := quoteName(names[0])
	if withID {
		selectList += ", " + quoteName(names[1])
	}
	query := fmt.Sprintf("SELECT TOP (@p1) %s FROM %s", selectList, buildFullyQualifiedName(schema, name))

	rows, err := a.db.QueryContext(ctx, query, req.EffectiveLimit())
	if err != nil {
		return nil, fmt.Errorf("read column %s: %w", names[0], err)
	}
	defer rows.Close()

	entries, err := datasource.ScanEntries(rows, withID)
	if err != nil {
		return nil, fmt.Errorf("read column %s: %w", names[0], err)
	}

	a.logger.Debug("Read column",
		zap.String("table", req.Table),
		zap.String("column", names[0]),
		zap.Int("rows", len(entries)))
	return entries, nil
}

// QuoteIdentifier brackets a name for SQL Server.
func (a *Adapter) QuoteIdentifier(name string) string {
	return quoteName(name)
}

// Close releases the connection.
func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Ensure Adapter implements ColumnReader at compile time.
var _ datasource.ColumnReader = (*Adapter)(nil)
