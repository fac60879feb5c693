package sqlite

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/example/vetclinic-scheduler/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationFiles exposes the embedded schema migrations.
func MigrationFiles() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(fmt.Sprintf("sqlite: embedded migrations missing: %v", err))
	}
	return sub
}

// Store bundles the SQLite repositories over one connection pool.
type Store struct {
	*AppointmentRepository
	*DirectoryRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

// Open connects to the database described by config. Call Migrate before use.
func Open(config migration.SQLiteConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}

	return &Store{
		AppointmentRepository: NewAppointmentRepository(pool),
		DirectoryRepository:   NewDirectoryRepository(pool),
		pool:                  pool,
		logger:                logger,
	}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending embedded migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.migrationManager().Run(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending embedded migrations.
func (s *Store) MigrationStatus(ctx context.Context) (migration.Status, error) {
	return s.migrationManager().Status(ctx)
}

func (s *Store) migrationManager() *migration.Manager {
	return migration.NewManager(
		migration.NewScanner(MigrationFiles(), "."),
		migration.NewSQLiteExecutor(s.pool.DB()),
		s.logger,
	)
}
