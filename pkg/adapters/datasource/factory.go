package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-match/pkg/apperrors"
)

// DatasourceAdapterFactory creates adapters from the registry.
type DatasourceAdapterFactory interface {
	// NewColumnReader opens a reader for the given datasource type.
	NewColumnReader(ctx context.Context, dsType string, config map[string]any) (ColumnReader, error)

	// ListTypes returns info for all registered adapter types.
	ListTypes() []DatasourceAdapterInfo
}

type registryFactory struct {
	opts   AdapterOptions
	logger *zap.Logger
}

// NewDatasourceAdapterFactory returns a factory that uses the global registry
// and hands opts to every adapter it opens.
func NewDatasourceAdapterFactory(opts AdapterOptions, logger *zap.Logger) DatasourceAdapterFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &registryFactory{opts: opts, logger: logger}
}

func (f *registryFactory) NewColumnReader(ctx context.Context, dsType string, config map[string]any) (ColumnReader, error) {
	factory := GetFactory(dsType)
	if factory == nil {
		return nil, fmt.Errorf("%w: datasource type %q (not compiled in)", apperrors.ErrUnsupportedSource, dsType)
	}
	return factory(ctx, config, f.opts, f.logger.Named(dsType))
}

func (f *registryFactory) ListTypes() []DatasourceAdapterInfo {
	return RegisteredAdapters()
}

// Ensure registryFactory implements DatasourceAdapterFactory at compile time.
var _ DatasourceAdapterFactory = (*registryFactory)(nil)
