package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Manager runs pending migrations and reports migration status.
type Manager struct {
	scanner  Scanner
	executor Executor
	logger   *slog.Logger
}

// NewManager wires a scanner and executor together. A nil logger discards output.
func NewManager(scanner Scanner, executor Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{scanner: scanner, executor: executor, logger: logger.With("component", "migration")}
}

// Run applies every pending migration in version order and stops at the first failure.
func (m *Manager) Run(ctx context.Context) error {
	started := time.Now()

	pending, err := m.Pending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		m.logger.InfoContext(ctx, "database schema up to date")
		return nil
	}

	m.logger.InfoContext(ctx, "applying migrations", "pending", len(pending))
	for i, migration := range pending {
		migrationStarted := time.Now()
		m.logger.InfoContext(ctx, "executing migration", "version", migration.Version, "description", migration.Description, "position", i+1, "total", len(pending))

		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			m.logger.ErrorContext(ctx, "migration failed", "version", migration.Version, "file", migration.FilePath, "error", err)
			return NewMigrationError(migration.Version, migration.FilePath, "execute migration", fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}

		elapsed := time.Since(migrationStarted)
		if err := m.executor.RecordMigration(ctx, migration, elapsed); err != nil {
			return NewMigrationError(migration.Version, migration.FilePath, "record migration", err)
		}
		m.logger.InfoContext(ctx, "migration applied", "version", migration.Version, "duration", elapsed)
	}

	m.logger.InfoContext(ctx, "migrations completed", "applied", len(pending), "duration", time.Since(started))
	return nil
}

// Pending returns the migrations not yet recorded, after validating the sequence.
func (m *Manager) Pending(ctx context.Context) ([]Migration, error) {
	status, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	return status.Pending, nil
}

// Status reports the applied and pending migrations.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if m == nil || m.scanner == nil || m.executor == nil {
		return Status{}, fmt.Errorf("migration manager is not configured")
	}

	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, fmt.Errorf("failed to initialize version table: %w", err)
	}

	available, err := m.scanner.Scan()
	if err != nil {
		return Status{}, fmt.Errorf("failed to scan migrations: %w", err)
	}

	applied, err := m.executor.AppliedMigrations(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	if err := validateSequence(available, applied); err != nil {
		return Status{}, err
	}

	appliedSet := make(map[string]struct{}, len(applied))
	for _, item := range applied {
		appliedSet[normalizeVersion(item.Version)] = struct{}{}
	}

	status := Status{Applied: applied}
	for _, migration := range available {
		if _, ok := appliedSet[normalizeVersion(migration.Version)]; ok {
			continue
		}
		status.Pending = append(status.Pending, migration)
	}

	highest := -1
	for _, item := range applied {
		if n := versionNumber(item.Version); n > highest {
			highest = n
			status.CurrentVersion = item.Version
		}
	}
	return status, nil
}

func validateSequence(available []Migration, applied []AppliedMigration) error {
	byVersion := make(map[int]Migration, len(available))
	for _, migration := range available {
		byVersion[versionNumber(migration.Version)] = migration
	}

	if len(available) > 0 {
		first := versionNumber(available[0].Version)
		last := versionNumber(available[len(available)-1].Version)
		for v := first; v <= last; v++ {
			if _, ok := byVersion[v]; !ok {
				return fmt.Errorf("%w: missing migration version %03d in sequence", ErrVersionConflict, v)
			}
		}
	}

	for _, item := range applied {
		n := versionNumber(item.Version)
		if n < 0 {
			return fmt.Errorf("%w: applied version '%s' is not numeric", ErrInvalidVersion, item.Version)
		}
		migration, ok := byVersion[n]
		if !ok {
			return fmt.Errorf("%w: applied migration %s not found in available migrations", ErrVersionConflict, item.Version)
		}
		if item.Checksum != "" && migration.Checksum != "" && item.Checksum != migration.Checksum {
			return NewMigrationError(item.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return nil
}
