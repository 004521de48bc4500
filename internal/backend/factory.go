package backend

import (
	"context"
	"fmt"
	"log/slog"

	"fincore/internal/storage"
	"fincore/internal/storage/memory"
)

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend opens the store selected by config. SQL backends are
// migrated before they are returned.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLBackend(ctx, storage.SQLite, config.SQLiteDBPath)
	case PostgresBackend:
		return f.createSQLBackend(ctx, storage.Postgres, config.DatabaseURL)
	case MemoryBackend:
		f.logger.Info("Initialized memory backend")
		store := memory.New()
		return &BackendResult{Store: store, Cleanup: store.Close}, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLBackend(ctx context.Context, d storage.Dialect, dsn string) (*BackendResult, error) {
	store, err := storage.Open(ctx, d, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s backend: %w", d.Name, err)
	}

	f.logger.Info("Initialized SQL backend", "dialect", d.Name)

	return &BackendResult{
		Store:   store,
		Cleanup: store.Close,
	}, nil
}
