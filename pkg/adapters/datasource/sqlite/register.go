package sqlite

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-match/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.DatasourceAdapterRegistration{
		Info: datasource.DatasourceAdapterInfo{
			Type:        "sqlite",
			DisplayName: "SQLite",
			Description: "Read a SQLite database file from the configured sqlite directory",
		},
		Factory: func(ctx context.Context, config map[string]any, opts datasource.AdapterOptions, logger *zap.Logger) (datasource.ColumnReader, error) {
			cfg, err := FromMap(config, opts.SQLiteDir)
			if err != nil {
				return nil, err
			}
			return NewAdapter(ctx, cfg, logger)
		},
	})
}
