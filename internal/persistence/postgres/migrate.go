package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/example/vetclinic-scheduler/internal/persistence/sqlite/migration"
	"github.com/jackc/pgx/v5"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies pending embedded migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.migrationManager().Run(ctx); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending embedded migrations.
func (s *Store) MigrationStatus(ctx context.Context) (migration.Status, error) {
	return s.migrationManager().Status(ctx)
}

func (s *Store) migrationManager() *migration.Manager {
	files, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(fmt.Sprintf("postgres: embedded migrations missing: %v", err))
	}
	return migration.NewManager(migration.NewScanner(files, "."), &executor{store: s}, s.logger)
}

// executor runs migrations through pgx, one transaction per file.
type executor struct {
	store *Store
}

func (e *executor) InitializeVersionTable(ctx context.Context) error {
	_, err := e.store.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			checksum TEXT,
			execution_time_ms BIGINT
		)
	`)
	if err != nil {
		return migration.NewDatabaseError("", "", "create schema_migrations table", err)
	}
	return nil
}

func (e *executor) ExecuteMigration(ctx context.Context, m migration.Migration) error {
	statements := migration.SplitStatements(m.SQL)
	if len(statements) == 0 {
		return migration.NewMigrationError(m.Version, m.FilePath, "parse SQL", fmt.Errorf("no SQL statements found in migration"))
	}
	return pgx.BeginFunc(ctx, e.store.pool, func(tx pgx.Tx) error {
		for i, stmt := range statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return migration.NewDatabaseError(m.Version, stmt, fmt.Sprintf("execute statement %d", i+1), err)
			}
		}
		return nil
	})
}

func (e *executor) RecordMigration(ctx context.Context, m migration.Migration, executionTime time.Duration) error {
	_, err := e.store.pool.Exec(ctx,
		`INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES ($1, NOW(), $2, $3)`,
		m.Version, m.Checksum, executionTime.Milliseconds(),
	)
	if err != nil {
		return migration.NewDatabaseError(m.Version, "", "record migration", err)
	}
	return nil
}

func (e *executor) AppliedMigrations(ctx context.Context) ([]migration.AppliedMigration, error) {
	rows, err := e.store.pool.Query(ctx, `
		SELECT version, applied_at, COALESCE(execution_time_ms, 0), COALESCE(checksum, '')
		FROM schema_migrations
		ORDER BY version::INTEGER ASC
	`)
	if err != nil {
		return nil, migration.NewDatabaseError("", "", "list applied migrations", err)
	}
	defer rows.Close()

	var applied []migration.AppliedMigration
	for rows.Next() {
		var (
			item      migration.AppliedMigration
			elapsedMs int64
		)
		if err := rows.Scan(&item.Version, &item.AppliedAt, &elapsedMs, &item.Checksum); err != nil {
			return nil, migration.NewDatabaseError("", "", "scan applied migration", err)
		}
		item.ExecutionTime = time.Duration(elapsedMs) * time.Millisecond
		applied = append(applied, item)
	}
	if err := rows.Err(); err != nil {
		return nil, migration.NewDatabaseError("", "", "iterate applied migrations", err)
	}
	return applied, nil
}
