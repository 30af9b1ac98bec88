package datasource

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// DatasourceAdapterInfo describes a registered adapter for API discovery.
type DatasourceAdapterInfo struct {
	Type        string `json:"type"`         // "postgres", "mssql", "sqlite"
	DisplayName string `json:"display_name"` // "PostgreSQL", "Microsoft SQL Server"
	Description string `json:"description"`
}

// AdapterOptions are server-side settings shared by every adapter. Unlike the
// per-request config map they never come from the client.
type AdapterOptions struct {
	// SQLiteDir is the only directory sqlite database files may be opened
	// from. Empty disables the sqlite adapter.
	SQLiteDir string
}

// ColumnReaderFactory opens a ColumnReader from a generic config map.
type ColumnReaderFactory func(ctx context.Context, config map[string]any, opts AdapterOptions, logger *zap.Logger) (ColumnReader, error)

// DatasourceAdapterRegistration contains info + factory for creating adapters.
type DatasourceAdapterRegistration struct {
	Info    DatasourceAdapterInfo
	Factory ColumnReaderFactory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]DatasourceAdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg DatasourceAdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
func RegisteredAdapters() []DatasourceAdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]DatasourceAdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// GetFactory returns the factory for a datasource type.
// Returns nil if type is not registered.
func GetFactory(dsType string) ColumnReaderFactory {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[dsType]; ok {
		return reg.Factory
	}
	return nil
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(dsType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dsType]
	return ok
}
