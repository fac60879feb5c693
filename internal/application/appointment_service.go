package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/example/vetclinic-scheduler/internal/persistence"
	"github.com/example/vetclinic-scheduler/internal/scheduler"
)

// AppointmentServiceOptions tunes optional collaborators of the lifecycle manager.
type AppointmentServiceOptions struct {
	Policy      scheduler.ConflictPolicy
	MaxAttempts int
	Publisher   EventPublisher
	Invalidator OccupancyInvalidator
	Logger      *slog.Logger
}

// AppointmentService owns the appointment lifecycle: booking, reading, cancelling
// and completing.
type AppointmentService struct {
	appointments AppointmentRepository
	directory    Directory
	detector     *ConflictDetector
	maxAttempts  int
	publisher    EventPublisher
	invalidator  OccupancyInvalidator
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewAppointmentService constructs the lifecycle manager with the default conflict policy.
func NewAppointmentService(appointments AppointmentRepository, directory Directory, idGenerator func() string, now func() time.Time) *AppointmentService {
	return NewAppointmentServiceWithOptions(appointments, directory, idGenerator, now, AppointmentServiceOptions{
		Policy: scheduler.DefaultConflictPolicy(),
	})
}

// NewAppointmentServiceWithOptions constructs the lifecycle manager with explicit options.
func NewAppointmentServiceWithOptions(appointments AppointmentRepository, directory Directory, idGenerator func() string, now func() time.Time, opts AppointmentServiceOptions) *AppointmentService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = scheduler.DefaultMaxAttempts
	}
	return &AppointmentService{
		appointments: appointments,
		directory:    directory,
		detector:     NewConflictDetector(opts.Policy),
		maxAttempts:  opts.MaxAttempts,
		publisher:    opts.Publisher,
		invalidator:  opts.Invalidator,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(opts.Logger),
	}
}

func (s *AppointmentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AppointmentService", operation, attrs...)
}

// CreateAppointment validates the request, checks the shared calendar under the
// schedule lock and persists the booking.
func (s *AppointmentService) CreateAppointment(ctx context.Context, params CreateAppointmentParams) (detail AppointmentDetail, err error) {
	if s == nil {
		err = fmt.Errorf("AppointmentService is nil")
		return
	}
	if s.appointments == nil || s.directory == nil {
		err = fmt.Errorf("appointment repositories not configured")
		return
	}

	ctx, span := startSpan(ctx, "AppointmentService.CreateAppointment",
		attribute.String("principal.id", params.Principal.UserID),
		attribute.String("principal.role", string(params.Principal.Role)),
	)
	defer func() { endSpan(span, err) }()

	logger := s.loggerWith(ctx, "CreateAppointment",
		"principal_id", params.Principal.UserID,
		"animal_id", params.Input.AnimalID,
	)
	defer func() {
		if err != nil {
			var conflict *ConflictError
			if errors.As(err, &conflict) {
				logger.InfoContext(ctx, "appointment rejected", "error_kind", ErrorKind(err), "conflicting_id", conflict.ConflictingID)
				return
			}
			if expectedFailure(err) {
				logger.InfoContext(ctx, "appointment rejected", "error_kind", ErrorKind(err))
				return
			}
			logger.ErrorContext(ctx, "failed to create appointment", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("appointment_id", detail.ID, "clinic_id", detail.ClinicID).InfoContext(ctx, "appointment created")
	}()

	input, vErr := validateAppointmentInput(params.Principal, params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var clinic Clinic
	clinic, err = s.resolveClinic(ctx, params.Principal, input.ClinicID)
	if err != nil {
		return
	}

	var animal Animal
	animal, err = s.directory.GetAnimal(ctx, input.AnimalID)
	if err != nil {
		if isMissing(err) {
			err = newValidationError("Animal not found", "animal_id", "animal does not exist")
			return
		}
		err = fmt.Errorf("get animal: %w", err)
		return
	}
	loader := newDetailLoader(s.directory)
	loader.remember(&clinic, &animal, nil)

	duration := time.Duration(*input.DurationMinutes) * time.Minute
	created := s.now()
	appointment := Appointment{
		ID:              s.idGenerator(),
		ClinicID:        clinic.ID,
		AnimalID:        animal.ID,
		Datetime:        input.Datetime,
		DurationMinutes: *input.DurationMinutes,
		ServiceType:     input.ServiceType,
		Status:          AppointmentStatusScheduled,
		Notes:           input.Notes,
		CreatedBy:       params.Principal.UserID,
		CreatedAt:       created,
		UpdatedAt:       created,
	}

	err = s.book(ctx, appointment, duration)
	if err != nil {
		return
	}

	s.afterCommit(ctx, logger, EventAppointmentScheduled, appointment, params.Principal.UserID)

	detail, err = loader.load(ctx, appointment)
	if err != nil {
		logger.WarnContext(ctx, "appointment created but detail lookup failed", "error", err)
		detail = AppointmentDetail{Appointment: appointment, Clinic: &clinic, Animal: &animal}
		err = nil
	}
	return
}

// book runs the window check and insert inside one booking transaction.
func (s *AppointmentService) book(ctx context.Context, appointment Appointment, duration time.Duration) error {
	tx, err := s.appointments.BeginBooking(ctx)
	if err != nil {
		return fmt.Errorf("begin booking: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, found, err := s.detector.HasWindowConflict(ctx, tx, appointment.Datetime, duration, "")
	if err != nil {
		return err
	}
	if found {
		next, err := s.detector.NextAvailable(ctx, tx, appointment.Datetime, duration, s.maxAttempts)
		if err != nil {
			return err
		}
		return &ConflictError{NextAvailable: next, ConflictingID: existing.ID}
	}

	if err := tx.CreateAppointment(ctx, appointment); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			_ = tx.Rollback()
			return s.lateConflict(ctx, appointment.Datetime, duration)
		}
		return mapAppointmentRepoError(err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit booking: %w", err)
	}
	return nil
}

// lateConflict builds the conflict reply when the unique index, not the window check,
// rejected the insert. The hint is computed outside the aborted transaction.
func (s *AppointmentService) lateConflict(ctx context.Context, instant time.Time, duration time.Duration) error {
	conflict := &ConflictError{}
	next, err := s.detector.NextAvailable(ctx, s.appointments, instant, duration, s.maxAttempts)
	if err == nil {
		conflict.NextAvailable = next
	}
	return conflict
}

func (s *AppointmentService) resolveClinic(ctx context.Context, principal Principal, requested *string) (Clinic, error) {
	if principal.ClinicID != nil && *principal.ClinicID != "" {
		return s.lookupClinic(ctx, *principal.ClinicID)
	}
	if !principal.IsOwner() {
		return Clinic{}, ErrUnauthorized
	}
	if requested != nil {
		return s.lookupClinic(ctx, *requested)
	}

	clinics, err := s.directory.ListClinics(ctx)
	if err != nil {
		return Clinic{}, fmt.Errorf("list clinics: %w", err)
	}
	if len(clinics) == 0 {
		return Clinic{}, newValidationError("No clinic available for appointment", "clinic_id", "no clinic is registered")
	}
	return clinics[0], nil
}

func (s *AppointmentService) lookupClinic(ctx context.Context, id string) (Clinic, error) {
	clinic, err := s.directory.GetClinic(ctx, id)
	if err != nil {
		if isMissing(err) {
			return Clinic{}, newValidationError("Clinic not found", "clinic_id", "clinic does not exist")
		}
		return Clinic{}, fmt.Errorf("get clinic: %w", err)
	}
	return clinic, nil
}

// GetAppointment returns the appointment with its directory detail.
func (s *AppointmentService) GetAppointment(ctx context.Context, params AppointmentParams) (detail AppointmentDetail, err error) {
	if s == nil {
		err = fmt.Errorf("AppointmentService is nil")
		return
	}
	if s.appointments == nil {
		err = fmt.Errorf("appointment repository not configured")
		return
	}

	ctx, span := startSpan(ctx, "AppointmentService.GetAppointment",
		attribute.String("appointment.id", params.AppointmentID),
	)
	defer func() { endSpan(span, err) }()

	logger := s.loggerWith(ctx, "GetAppointment",
		"principal_id", params.Principal.UserID,
		"appointment_id", params.AppointmentID,
	)
	defer func() {
		if err != nil && !expectedFailure(err) {
			logger.ErrorContext(ctx, "failed to get appointment", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	var appointment Appointment
	appointment, err = s.appointments.GetAppointment(ctx, params.AppointmentID)
	if err != nil {
		err = mapAppointmentRepoError(err)
		return
	}
	if !params.Principal.CanViewClinic(appointment.ClinicID) {
		err = ErrUnauthorized
		return
	}

	detail, err = newDetailLoader(s.directory).load(ctx, appointment)
	return
}

// CancelAppointment soft-deletes a scheduled appointment. Cancelling an already
// cancelled appointment succeeds without changing it.
func (s *AppointmentService) CancelAppointment(ctx context.Context, params AppointmentParams) (appointment Appointment, err error) {
	if s == nil {
		err = fmt.Errorf("AppointmentService is nil")
		return
	}
	if s.appointments == nil {
		err = fmt.Errorf("appointment repository not configured")
		return
	}

	ctx, span := startSpan(ctx, "AppointmentService.CancelAppointment",
		attribute.String("appointment.id", params.AppointmentID),
	)
	defer func() { endSpan(span, err) }()

	logger := s.loggerWith(ctx, "CancelAppointment",
		"principal_id", params.Principal.UserID,
		"appointment_id", params.AppointmentID,
	)
	defer func() {
		if err != nil {
			if expectedFailure(err) {
				logger.InfoContext(ctx, "appointment cancel rejected", "error_kind", ErrorKind(err))
				return
			}
			logger.ErrorContext(ctx, "failed to cancel appointment", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "appointment cancelled")
	}()

	var changed bool
	appointment, changed, err = s.transition(ctx, params, AppointmentStatusCancelled)
	if err != nil || !changed {
		return
	}
	s.afterCommit(ctx, logger, EventAppointmentCancelled, appointment, params.Principal.UserID)
	return
}

// CompleteAppointment marks a scheduled appointment as attended. Completing an
// already completed appointment succeeds without changing it.
func (s *AppointmentService) CompleteAppointment(ctx context.Context, params AppointmentParams) (detail AppointmentDetail, err error) {
	if s == nil {
		err = fmt.Errorf("AppointmentService is nil")
		return
	}
	if s.appointments == nil {
		err = fmt.Errorf("appointment repository not configured")
		return
	}

	ctx, span := startSpan(ctx, "AppointmentService.CompleteAppointment",
		attribute.String("appointment.id", params.AppointmentID),
	)
	defer func() { endSpan(span, err) }()

	logger := s.loggerWith(ctx, "CompleteAppointment",
		"principal_id", params.Principal.UserID,
		"appointment_id", params.AppointmentID,
	)
	defer func() {
		if err != nil {
			if expectedFailure(err) {
				logger.InfoContext(ctx, "appointment complete rejected", "error_kind", ErrorKind(err))
				return
			}
			logger.ErrorContext(ctx, "failed to complete appointment", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "appointment completed")
	}()

	appointment, changed, err := s.transition(ctx, params, AppointmentStatusCompleted)
	if err != nil {
		return
	}
	if changed {
		s.afterCommit(ctx, logger, EventAppointmentCompleted, appointment, params.Principal.UserID)
	}

	detail, err = newDetailLoader(s.directory).load(ctx, appointment)
	return
}

// transition moves an appointment from scheduled to target under the schedule lock.
// The boolean result is false when the appointment was already in target.
func (s *AppointmentService) transition(ctx context.Context, params AppointmentParams, target AppointmentStatus) (Appointment, bool, error) {
	tx, err := s.appointments.BeginBooking(ctx)
	if err != nil {
		return Appointment{}, false, fmt.Errorf("begin booking: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	appointment, err := tx.GetAppointment(ctx, params.AppointmentID)
	if err != nil {
		return Appointment{}, false, mapAppointmentRepoError(err)
	}
	if !params.Principal.CanViewClinic(appointment.ClinicID) {
		return Appointment{}, false, ErrUnauthorized
	}

	switch appointment.Status {
	case target:
		return appointment, false, nil
	case AppointmentStatusScheduled:
	default:
		return Appointment{}, false, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, appointment.Status, target)
	}

	updated := s.now()
	if err := tx.UpdateAppointmentStatus(ctx, appointment.ID, target, updated); err != nil {
		return Appointment{}, false, mapAppointmentRepoError(err)
	}
	if err := tx.Commit(); err != nil {
		return Appointment{}, false, fmt.Errorf("commit status change: %w", err)
	}

	appointment.Status = target
	appointment.UpdatedAt = updated
	return appointment, true, nil
}

// afterCommit drops cached occupancy and announces the transition. Neither step can
// fail the operation.
func (s *AppointmentService) afterCommit(ctx context.Context, logger *slog.Logger, eventType AppointmentEventType, appointment Appointment, actorID string) {
	if s.invalidator != nil {
		s.invalidator.InvalidateOccupancy()
	}
	if s.publisher == nil {
		return
	}
	event := AppointmentEvent{
		Type:        eventType,
		Appointment: appointment,
		ActorID:     actorID,
		OccurredAt:  s.now(),
	}
	if err := s.publisher.PublishAppointmentEvent(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to publish appointment event", "event_type", string(eventType), "error", err)
	}
}

func validateAppointmentInput(principal Principal, input AppointmentInput) (AppointmentInput, *ValidationError) {
	vErr := &ValidationError{}

	input.AnimalID = strings.TrimSpace(input.AnimalID)
	input.ServiceType = strings.TrimSpace(input.ServiceType)

	if principal.UserID == "" {
		vErr.add("created_by", "creator is required")
	}
	if input.AnimalID == "" {
		vErr.add("animal_id", "animal_id is required")
	}
	if input.Datetime.IsZero() {
		vErr.add("datetime", "datetime is required")
	}
	if input.ServiceType == "" {
		vErr.add("service_type", "service_type is required")
	}
	if input.DurationMinutes == nil {
		minutes := DefaultDurationMinutes
		input.DurationMinutes = &minutes
	} else if *input.DurationMinutes <= 0 {
		vErr.add("duration_minutes", "duration_minutes must be positive")
	}
	if input.ClinicID != nil {
		trimmed := strings.TrimSpace(*input.ClinicID)
		if trimmed == "" {
			input.ClinicID = nil
		} else {
			input.ClinicID = &trimmed
		}
	}
	input.Notes = normalizeOptionalString(input.Notes)
	input.Datetime = input.Datetime.Truncate(time.Second)

	if vErr.HasErrors() {
		vErr.Message = "Invalid appointment request"
		for _, field := range []string{"animal_id", "datetime", "service_type"} {
			if _, missing := vErr.FieldErrors[field]; missing {
				vErr.Message = "Missing required fields"
				break
			}
		}
	}
	return input, vErr
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func mapAppointmentRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return &ConflictError{}
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return newValidationError("Referenced record not found", "", "")
	default:
		return err
	}
}
