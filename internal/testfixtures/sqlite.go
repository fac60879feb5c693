package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/vetclinic-scheduler/internal/adapters"
	"github.com/example/vetclinic-scheduler/internal/application"
	"github.com/example/vetclinic-scheduler/internal/persistence"
	"github.com/example/vetclinic-scheduler/internal/persistence/sqlite"
	"github.com/example/vetclinic-scheduler/internal/persistence/sqlite/migration"
)

// SQLiteHarness provides repository access backed by a temporary, migrated SQLite
// database for integration-style tests.
type SQLiteHarness struct {
	Store *sqlite.Store

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// Appointments returns the store as an application repository.
func (h *SQLiteHarness) Appointments() application.AppointmentRepository {
	return adapters.NewAppointmentRepository(h.Store)
}

// Directory returns the store as an application directory.
func (h *SQLiteHarness) Directory() application.Directory {
	return adapters.NewDirectory(h.Store)
}

// Seed imports the directory records.
func (h *SQLiteHarness) Seed(tb testing.TB, directory DirectoryFixture) {
	tb.Helper()
	if err := h.Store.ImportDirectory(context.Background(), directory.Snapshot()); err != nil {
		tb.Fatalf("failed to seed directory: %v", err)
	}
}

// Book stores appointments directly, bypassing conflict detection.
func (h *SQLiteHarness) Book(tb testing.TB, appointments ...AppointmentFixture) {
	tb.Helper()
	ctx := context.Background()
	tx, err := h.Store.BeginBooking(ctx)
	if err != nil {
		tb.Fatalf("failed to begin booking: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, appointment := range appointments {
		if err := tx.CreateAppointment(ctx, appointment.Persistence()); err != nil {
			tb.Fatalf("failed to store appointment %s: %v", appointment.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		tb.Fatalf("failed to commit appointments: %v", err)
	}
}

// Appointment loads a stored appointment.
func (h *SQLiteHarness) Appointment(tb testing.TB, id string) persistence.Appointment {
	tb.Helper()
	appointment, err := h.Store.GetAppointment(context.Background(), id)
	if err != nil {
		tb.Fatalf("failed to load appointment %s: %v", id, err)
	}
	return appointment
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "scheduler.db")
	store, err := sqlite.Open(migration.DefaultSQLiteConfig(path), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Store: store,
		cleanup: func() {
			_ = store.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
