package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-match/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-match/pkg/config"
	"github.com/ekaya-inc/ekaya-match/pkg/models"
)

// DatasourceSpec locates one column of a SQL datasource. Connection config
// travels with the request and is never stored.
type DatasourceSpec struct {
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
	Table  string         `json:"table"`
	Column string         `json:"column"`
}

// DatasourceService defines the interface for datasource operations.
type DatasourceService interface {
	// Types returns the registered adapter types.
	Types() []datasource.DatasourceAdapterInfo

	// TestConnection tests connectivity to a datasource without reading data.
	TestConnection(ctx context.Context, dsType string, config map[string]any) error

	// ListTables returns the user tables of a datasource.
	ListTables(ctx context.Context, dsType string, config map[string]any) ([]datasource.Table, error)

	// ListColumns returns the columns of one table.
	ListColumns(ctx context.Context, dsType string, config map[string]any, table string) ([]datasource.Column, error)

	// ReadColumn reads spec.Column, and idColumn when non-empty.
	ReadColumn(ctx context.Context, spec DatasourceSpec, idColumn string) ([]models.Entry, error)
}

// datasourceService implements DatasourceService.
type datasourceService struct {
	adapterFactory datasource.DatasourceAdapterFactory
	limits         config.DatasourceConfig
	logger         *zap.Logger
}

// NewDatasourceService creates a new datasource service with dependencies.
func NewDatasourceService(
	adapterFactory datasource.DatasourceAdapterFactory,
	limits config.DatasourceConfig,
	logger *zap.Logger,
) DatasourceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &datasourceService{
		adapterFactory: adapterFactory,
		limits:         limits,
		logger:         logger.Named("datasource"),
	}
}

func (s *datasourceService) Types() []datasource.DatasourceAdapterInfo {
	return s.adapterFactory.ListTypes()
}

// withReader opens an adapter under the query timeout, runs fn and closes it.
func (s *datasourceService) withReader(ctx context.Context, dsType string, config map[string]any, fn func(context.Context, datasource.ColumnReader) error) error {
	if dsType == "" {
		return fmt.Errorf("datasource type is required")
	}
	if config == nil {
		config = make(map[string]any)
	}
	if s.limits.QueryTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.limits.QueryTimeoutSeconds)*time.Second)
		defer cancel()
	}

	reader, err := s.adapterFactory.NewColumnReader(ctx, dsType, config)
	if err != nil {
		return fmt.Errorf("failed to create adapter: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			s.logger.Warn("Failed to close datasource", zap.String("type", dsType), zap.Error(err))
		}
	}()
	return fn(ctx, reader)
}

// TestConnection tests connectivity to a datasource without reading data.
func (s *datasourceService) TestConnection(ctx context.Context, dsType string, config map[string]any) error {
	return s.withReader(ctx, dsType, config, func(ctx context.Context, r datasource.ColumnReader) error {
		return r.TestConnection(ctx)
	})
}

func (s *datasourceService) ListTables(ctx context.Context, dsType string, config map[string]any) ([]datasource.Table, error) {
	var tables []datasource.Table
	err := s.withReader(ctx, dsType, config, func(ctx context.Context, r datasource.ColumnReader) error {
		var err error
		tables, err = r.ListTables(ctx)
		return err
	})
	return tables, err
}

func (s *datasourceService) ListColumns(ctx context.Context, dsType string, config map[string]any, table string) ([]datasource.Column, error) {
	if table == "" {
		return nil, fmt.Errorf("table is required")
	}
	var columns []datasource.Column
	err := s.withReader(ctx, dsType, config, func(ctx context.Context, r datasource.ColumnReader) error {
		var err error
		columns, err = r.ListColumns(ctx, table)
		return err
	})
	return columns, err
}

// ReadColumn reads at most limits.MaxRows values.
func (s *datasourceService) ReadColumn(ctx context.Context, spec DatasourceSpec, idColumn string) ([]models.Entry, error) {
	var entries []models.Entry
	err := s.withReader(ctx, spec.Type, spec.Config, func(ctx context.Context, r datasource.ColumnReader) error {
		var err error
		entries, err = r.ReadColumn(ctx, datasource.ColumnRequest{
			Table:       spec.Table,
			ValueColumn: spec.Column,
			IDColumn:    idColumn,
			Limit:       s.limits.MaxRows,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Read datasource column",
		zap.String("type", spec.Type),
		zap.String("table", spec.Table),
		zap.String("column", spec.Column),
		zap.Int("rows", len(entries)))
	return entries, nil
}

// Ensure datasourceService implements DatasourceService at compile time.
var _ DatasourceService = (*datasourceService)(nil)
