package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/vetclinic-scheduler/internal/persistence"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// bookingLockKey identifies the transaction-scoped advisory lock that serialises
// bookings across every process sharing the database.
const bookingLockKey int64 = 0x56434c4e

const appointmentColumns = `id, clinic_id, animal_id, datetime, duration_minutes, service_type, status, notes, created_by, created_at, updated_at`

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements the appointment and directory repositories on PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore wraps an open pool. A nil logger discards migration output.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{pool: pool, logger: logger}
}

// Open connects to databaseURL with the default pool sizing.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	pool, err := OpenPool(ctx, databaseURL, DefaultPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	return NewStore(pool, logger), nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetAppointment retrieves an appointment by ID.
func (s *Store) GetAppointment(ctx context.Context, id string) (persistence.Appointment, error) {
	return getAppointment(ctx, s.pool, id)
}

// ListAppointments returns appointments anchored in [filter.From, filter.To) ordered by datetime.
func (s *Store) ListAppointments(ctx context.Context, filter persistence.AppointmentFilter) ([]persistence.Appointment, error) {
	return listAppointments(ctx, s.pool, filter)
}

// BeginBooking opens a transaction and takes the booking advisory lock. The lock is
// released by PostgreSQL when the transaction ends.
func (s *Store) BeginBooking(ctx context.Context) (persistence.BookingTx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin booking transaction: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, bookingLockKey); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to acquire booking lock: %w", err)
	}
	return &bookingTx{tx: tx, ctx: ctx}, nil
}

type bookingTx struct {
	tx   pgx.Tx
	ctx  context.Context
	done bool
}

func (b *bookingTx) GetAppointment(ctx context.Context, id string) (persistence.Appointment, error) {
	return getAppointment(ctx, b.tx, id)
}

func (b *bookingTx) ListAppointments(ctx context.Context, filter persistence.AppointmentFilter) ([]persistence.Appointment, error) {
	return listAppointments(ctx, b.tx, filter)
}

func (b *bookingTx) CreateAppointment(ctx context.Context, appointment persistence.Appointment) error {
	if appointment.ID == "" || appointment.DurationMinutes <= 0 {
		return persistence.ErrConstraintViolation
	}

	_, err := b.tx.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		appointment.ID,
		appointment.ClinicID,
		appointment.AnimalID,
		appointment.Datetime.UTC(),
		appointment.DurationMinutes,
		appointment.ServiceType,
		string(appointment.Status),
		appointment.Notes,
		appointment.CreatedBy,
		appointment.CreatedAt.UTC(),
		appointment.UpdatedAt.UTC(),
	)
	return mapError(err)
}

func (b *bookingTx) UpdateAppointmentStatus(ctx context.Context, id string, status persistence.AppointmentStatus, updatedAt time.Time) error {
	tag, err := b.tx.Exec(ctx, `UPDATE appointments SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), updatedAt.UTC())
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (b *bookingTx) Commit() error {
	if b.done {
		return pgx.ErrTxClosed
	}
	b.done = true
	return mapError(b.tx.Commit(b.ctx))
}

// Rollback is a no-op after Commit so that callers can defer it unconditionally.
func (b *bookingTx) Rollback() error {
	if b.done {
		return nil
	}
	b.done = true
	// The request context may already be cancelled; the rollback must still reach the server.
	if err := b.tx.Rollback(context.WithoutCancel(b.ctx)); err != nil && err != pgx.ErrTxClosed {
		return err
	}
	return nil
}

func getAppointment(ctx context.Context, q querier, id string) (persistence.Appointment, error) {
	if id == "" {
		return persistence.Appointment{}, persistence.ErrNotFound
	}
	row := q.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	appointment, err := scanAppointment(row)
	if err != nil {
		return persistence.Appointment{}, mapError(err)
	}
	return appointment, nil
}

func listAppointments(ctx context.Context, q querier, filter persistence.AppointmentFilter) ([]persistence.Appointment, error) {
	var (
		conditions []string
		args       []any
	)
	if !filter.From.IsZero() {
		args = append(args, filter.From.UTC())
		conditions = append(conditions, fmt.Sprintf("datetime >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To.UTC())
		conditions = append(conditions, fmt.Sprintf("datetime < $%d", len(args)))
	}
	if !filter.IncludeCancelled {
		args = append(args, string(persistence.AppointmentStatusCancelled))
		conditions = append(conditions, fmt.Sprintf("status <> $%d", len(args)))
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY datetime ASC, id ASC`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var appointments []persistence.Appointment
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, mapError(err)
		}
		appointments = append(appointments, appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return appointments, nil
}

func scanAppointment(row pgx.Row) (persistence.Appointment, error) {
	var (
		appointment persistence.Appointment
		status      string
	)
	err := row.Scan(
		&appointment.ID,
		&appointment.ClinicID,
		&appointment.AnimalID,
		&appointment.Datetime,
		&appointment.DurationMinutes,
		&appointment.ServiceType,
		&status,
		&appointment.Notes,
		&appointment.CreatedBy,
		&appointment.CreatedAt,
		&appointment.UpdatedAt,
	)
	if err != nil {
		return persistence.Appointment{}, err
	}
	appointment.Status = persistence.AppointmentStatus(status)
	appointment.Datetime = appointment.Datetime.UTC()
	appointment.CreatedAt = appointment.CreatedAt.UTC()
	appointment.UpdatedAt = appointment.UpdatedAt.UTC()
	return appointment, nil
}
