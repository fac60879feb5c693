package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/vetclinic-scheduler/internal/config"
	"github.com/example/vetclinic-scheduler/internal/persistence"
	"github.com/example/vetclinic-scheduler/internal/persistence/postgres"
	"github.com/example/vetclinic-scheduler/internal/persistence/sqlite"
	"github.com/example/vetclinic-scheduler/internal/persistence/sqlite/migration"
)

// store is the storage surface shared by the SQLite and PostgreSQL backends.
type store interface {
	persistence.AppointmentRepository
	persistence.DirectoryRepository
	Migrate(ctx context.Context) error
	MigrationStatus(ctx context.Context) (migration.Status, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ store = (*sqlite.Store)(nil)
	_ store = (*postgres.Store)(nil)
)

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store, error) {
	switch cfg.StorageDriver {
	case config.StorageSQLite:
		st, err := sqlite.Open(migration.DefaultSQLiteConfig(cfg.SQLiteDSN), logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		return st, nil
	case config.StoragePostgres:
		st, err := postgres.Open(ctx, cfg.PostgresURL, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres storage: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
