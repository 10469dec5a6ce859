package storage

import (
	"context"
	"fmt"

	"kanban-api/config"
)

// Open connects the backend selected by cfg and ensures its schema exists.
func Open(ctx context.Context, cfg config.Config) (Backend, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		backend, err = Connect(ctx, cfg.DatabaseURL, PoolOptions{
			MaxConns:       cfg.DBMaxConns,
			ConnectTimeout: cfg.DBConnectTimeout,
		})
	case config.BackendTables:
		backend, err = NewTableStore(cfg.StorageConnectionString, cfg.TasksTable)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, err
	}
	if err := backend.EnsureSchema(ctx); err != nil {
		backend.Close()
		return nil, err
	}
	return backend, nil
}
