package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/vetclinic-scheduler/internal/persistence"
)

// timeLayout stores instants as fixed-width UTC text so that string ordering
// matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05Z"

const appointmentColumns = `id, clinic_id, animal_id, datetime, duration_minutes, service_type, status, notes, created_by, created_at, updated_at`

// AppointmentRepository implements persistence.AppointmentRepository using SQLite.
type AppointmentRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewAppointmentRepository creates a new SQLite appointment repository.
func NewAppointmentRepository(pool *ConnectionPool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, mapper: NewErrorMapper()}
}

// GetAppointment retrieves an appointment by ID.
func (r *AppointmentRepository) GetAppointment(ctx context.Context, id string) (persistence.Appointment, error) {
	return getAppointment(ctx, r.pool.db, r.mapper, id)
}

// ListAppointments returns appointments anchored in [filter.From, filter.To) ordered by datetime.
func (r *AppointmentRepository) ListAppointments(ctx context.Context, filter persistence.AppointmentFilter) ([]persistence.Appointment, error) {
	return listAppointments(ctx, r.pool.db, r.mapper, filter)
}

// BeginBooking waits for the booking lock and opens a transaction that keeps it
// until Commit or Rollback.
func (r *AppointmentRepository) BeginBooking(ctx context.Context) (persistence.BookingTx, error) {
	release, err := r.pool.acquireBooking(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire booking lock: %w", err)
	}

	tx, err := r.pool.db.BeginTx(ctx, nil)
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to begin booking transaction: %w", err)
	}
	return &bookingTx{tx: tx, release: release, mapper: r.mapper}, nil
}

type bookingTx struct {
	tx      *sql.Tx
	release func()
	mapper  *ErrorMapper
	done    bool
}

func (b *bookingTx) GetAppointment(ctx context.Context, id string) (persistence.Appointment, error) {
	return getAppointment(ctx, b.tx, b.mapper, id)
}

func (b *bookingTx) ListAppointments(ctx context.Context, filter persistence.AppointmentFilter) ([]persistence.Appointment, error) {
	return listAppointments(ctx, b.tx, b.mapper, filter)
}

func (b *bookingTx) CreateAppointment(ctx context.Context, appointment persistence.Appointment) error {
	if appointment.ID == "" || appointment.DurationMinutes <= 0 {
		return persistence.ErrConstraintViolation
	}

	const query = `INSERT INTO appointments (` + appointmentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := b.tx.ExecContext(ctx, query,
		appointment.ID,
		appointment.ClinicID,
		appointment.AnimalID,
		formatTime(appointment.Datetime),
		appointment.DurationMinutes,
		appointment.ServiceType,
		string(appointment.Status),
		nullString(appointment.Notes),
		appointment.CreatedBy,
		formatTime(appointment.CreatedAt),
		formatTime(appointment.UpdatedAt),
	)
	if err != nil {
		return b.mapper.MapError(err)
	}
	return nil
}

func (b *bookingTx) UpdateAppointmentStatus(ctx context.Context, id string, status persistence.AppointmentStatus, updatedAt time.Time) error {
	const query = `UPDATE appointments SET status = ?, updated_at = ? WHERE id = ?`

	result, err := b.tx.ExecContext(ctx, query, string(status), formatTime(updatedAt), id)
	if err != nil {
		return b.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (b *bookingTx) Commit() error {
	if b.done {
		return sql.ErrTxDone
	}
	b.done = true
	defer b.release()
	if err := b.tx.Commit(); err != nil {
		return b.mapper.MapError(err)
	}
	return nil
}

// Rollback is a no-op after Commit so that callers can defer it unconditionally.
func (b *bookingTx) Rollback() error {
	if b.done {
		return nil
	}
	b.done = true
	defer b.release()
	if err := b.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func getAppointment(ctx context.Context, q queryer, mapper *ErrorMapper, id string) (persistence.Appointment, error) {
	if id == "" {
		return persistence.Appointment{}, persistence.ErrNotFound
	}

	const query = `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = ?`

	appointment, err := scanAppointment(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Appointment{}, persistence.ErrNotFound
		}
		return persistence.Appointment{}, mapper.MapError(err)
	}
	return appointment, nil
}

func listAppointments(ctx context.Context, q queryer, mapper *ErrorMapper, filter persistence.AppointmentFilter) ([]persistence.Appointment, error) {
	var (
		conditions []string
		args       []any
	)
	if !filter.From.IsZero() {
		conditions = append(conditions, "datetime >= ?")
		args = append(args, formatTime(filter.From))
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "datetime < ?")
		args = append(args, formatTime(filter.To))
	}
	if !filter.IncludeCancelled {
		conditions = append(conditions, "status <> ?")
		args = append(args, string(persistence.AppointmentStatusCancelled))
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY datetime ASC, id ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapper.MapError(err)
	}
	defer rows.Close()

	var appointments []persistence.Appointment
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, mapper.MapError(err)
		}
		appointments = append(appointments, appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, mapper.MapError(err)
	}
	return appointments, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (persistence.Appointment, error) {
	var (
		appointment persistence.Appointment
		status      string
		notes       sql.NullString
		datetime    string
		createdAt   string
		updatedAt   string
	)

	err := row.Scan(
		&appointment.ID,
		&appointment.ClinicID,
		&appointment.AnimalID,
		&datetime,
		&appointment.DurationMinutes,
		&appointment.ServiceType,
		&status,
		&notes,
		&appointment.CreatedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Appointment{}, err
	}

	if appointment.Datetime, err = parseTime(datetime); err != nil {
		return persistence.Appointment{}, fmt.Errorf("failed to parse datetime: %w", err)
	}
	if appointment.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Appointment{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if appointment.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Appointment{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	appointment.Status = persistence.AppointmentStatus(status)
	appointment.Notes = stringPtr(notes)
	return appointment, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err == nil {
		return t, nil
	}
	t, rfcErr := time.Parse(time.RFC3339Nano, value)
	if rfcErr != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}
