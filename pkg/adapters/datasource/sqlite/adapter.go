// Package sqlite reads columns from a local SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/ekaya-inc/ekaya-match/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-match/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-match/pkg/models"
)

// Config identifies the database file.
type Config struct {
	// Path is absolute and inside the configured sqlite directory.
	Path string
}

// FromMap reads {"path": "..."} and resolves it inside dir. A relative path
// is taken relative to dir; anything that resolves outside dir, symlinks
// included, is rejected before the filesystem is touched further.
func FromMap(config map[string]any, dir string) (*Config, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: sqlite datasources are disabled (datasource.sqlite_dir is not set)", apperrors.ErrUnsupportedSource)
	}
	path, _ := config["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("%w: path is required", apperrors.ErrValidation)
	}
	resolved, err := resolvePath(dir, path)
	if err != nil {
		return nil, err
	}
	return &Config{Path: resolved}, nil
}

func resolvePath(dir, path string) (string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve sqlite directory: %w", err)
	}
	if real, err := filepath.EvalSymlinks(root); err == nil {
		root = real
	}

	candidate := filepath.Clean(path)
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, candidate)
	}
	if real, err := filepath.EvalSymlinks(candidate); err == nil {
		candidate = real
	}

	rel, err := filepath.Rel(root, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path %q is outside the sqlite directory", apperrors.ErrValidation, path)
	}
	return candidate, nil
}

// Adapter reads columns from a SQLite file with writes disabled.
type Adapter struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger
}

// NewAdapter opens the file. The file must already exist.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	info, err := os.Stat(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("open sqlite database: %s is a directory", cfg.Path)
	}

	db, err := sql.Open("sqlite", cfg.Path+"?_pragma=query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	return &Adapter{config: cfg, db: db, logger: logger}, nil
}

// TestConnection checks the file is a readable SQLite database.
func (a *Adapter) TestConnection(ctx context.Context) error {
	var n int
	if err := a.db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}
	return nil
}

// ListTables returns user tables. SQLite has a single "main" schema.
func (a *Adapter) ListTables(ctx context.Context) ([]datasource.Table, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.Table
	for rows.Next() {
		t := datasource.Table{Schema: "main"}
		if err := rows.Scan(&t.Name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// ListColumns returns the columns of a table.
func (a *Adapter) ListColumns(ctx context.Context, table string) ([]datasource.Column, error) {
	name := tableName(table)
	rows, err := a.db.QueryContext(ctx,
		`SELECT name, type, "notnull" FROM pragma_table_info(?) ORDER BY cid`, name)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.Column
	for rows.Next() {
		var (
			c       datasource.Column
			notNull int
		)
		if err := rows.Scan(&c.Name, &c.DataType, &notNull); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.IsNullable = notNull == 0
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: table %s", apperrors.ErrNotFound, name)
	}
	return columns, nil
}

// ReadColumn reads the value column, and the id column when requested, in rowid order.
func (a *Adapter) ReadColumn(ctx context.Context, req datasource.ColumnRequest) ([]models.Entry, error) {
	columns, err := a.ListColumns(ctx, req.Table)
	if err != nil {
		return nil, err
	}
	names, err := datasource.RequireColumns(req.Table, columns, req.ValueColumn, req.IDColumn)
	if err != nil {
		return nil, err
	}

	withID := names[1] != ""
	selectList := a.QuoteIdentifier(names[0])
	if withID {
		selectList += ", " + a.QuoteIdentifier(names[1])
	}
	query := fmt.Sprintf("SELECT %s FROM %s LIMIT ?", selectList, a.QuoteIdentifier(tableName(req.Table)))

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
		zap.String("path", a.config.Path),
		zap.String("table", req.Table),
		zap.String("column", names[0]),
		zap.Int("rows", len(entries)))
	return entries, nil
}

// QuoteIdentifier wraps a name in double quotes, doubling embedded quotes.
func (a *Adapter) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Close releases the database handle.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// tableName drops a "main." qualifier.
func tableName(table string) string {
	if rest, ok := strings.CutPrefix(table, "main."); ok {
		return rest
	}
	return table
}

var _ datasource.ColumnReader = (*Adapter)(nil)
