// Package adapters translates between the persistence records and the application
// models so that the services stay independent of any storage driver.
package adapters

import (
	"context"
	"time"

	"github.com/example/vetclinic-scheduler/internal/application"
	"github.com/example/vetclinic-scheduler/internal/persistence"
)

type appointmentRepositoryAdapter struct {
	repo persistence.AppointmentRepository
}

// NewAppointmentRepository exposes repo as an application.AppointmentRepository.
func NewAppointmentRepository(repo persistence.AppointmentRepository) application.AppointmentRepository {
	return &appointmentRepositoryAdapter{repo: repo}
}

func (a *appointmentRepositoryAdapter) GetAppointment(ctx context.Context, id string) (application.Appointment, error) {
	return getAppointment(ctx, a.repo, id)
}

func (a *appointmentRepositoryAdapter) ListAppointments(ctx context.Context, filter application.AppointmentFilter) ([]application.Appointment, error) {
	return listAppointments(ctx, a.repo, filter)
}

func (a *appointmentRepositoryAdapter) BeginBooking(ctx context.Context) (application.BookingTx, error) {
	tx, err := a.repo.BeginBooking(ctx)
	if err != nil {
		return nil, err
	}
	return &bookingTxAdapter{tx: tx}, nil
}

type bookingTxAdapter struct {
	tx persistence.BookingTx
}

func (a *bookingTxAdapter) GetAppointment(ctx context.Context, id string) (application.Appointment, error) {
	return getAppointment(ctx, a.tx, id)
}

func (a *bookingTxAdapter) ListAppointments(ctx context.Context, filter application.AppointmentFilter) ([]application.Appointment, error) {
	return listAppointments(ctx, a.tx, filter)
}

func (a *bookingTxAdapter) CreateAppointment(ctx context.Context, appointment application.Appointment) error {
	return a.tx.CreateAppointment(ctx, ToPersistenceAppointment(appointment))
}

func (a *bookingTxAdapter) UpdateAppointmentStatus(ctx context.Context, id string, status application.AppointmentStatus, updatedAt time.Time) error {
	return a.tx.UpdateAppointmentStatus(ctx, id, persistence.AppointmentStatus(status), updatedAt)
}

func (a *bookingTxAdapter) Commit() error {
	return a.tx.Commit()
}

func (a *bookingTxAdapter) Rollback() error {
	return a.tx.Rollback()
}

func getAppointment(ctx context.Context, reader persistence.AppointmentReader, id string) (application.Appointment, error) {
	model, err := reader.GetAppointment(ctx, id)
	if err != nil {
		return application.Appointment{}, err
	}
	return ToApplicationAppointment(model), nil
}

func listAppointments(ctx context.Context, reader persistence.AppointmentReader, filter application.AppointmentFilter) ([]application.Appointment, error) {
	models, err := reader.ListAppointments(ctx, persistence.AppointmentFilter{
		From:             filter.From,
		To:               filter.To,
		IncludeCancelled: filter.IncludeCancelled,
	})
	if err != nil {
		return nil, err
	}
	result := make([]application.Appointment, 0, len(models))
	for _, model := range models {
		result = append(result, ToApplicationAppointment(model))
	}
	return result, nil
}

type directoryAdapter struct {
	repo persistence.DirectoryRepository
}

// NewDirectory exposes repo as an application.Directory.
func NewDirectory(repo persistence.DirectoryRepository) application.Directory {
	return &directoryAdapter{repo: repo}
}

func (a *directoryAdapter) GetClinic(ctx context.Context, id string) (application.Clinic, error) {
	model, err := a.repo.GetClinic(ctx, id)
	if err != nil {
		return application.Clinic{}, err
	}
	return toApplicationClinic(model), nil
}

func (a *directoryAdapter) ListClinics(ctx context.Context) ([]application.Clinic, error) {
	models, err := a.repo.ListClinics(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]application.Clinic, 0, len(models))
	for _, model := range models {
		result = append(result, toApplicationClinic(model))
	}
	return result, nil
}

func (a *directoryAdapter) GetAnimal(ctx context.Context, id string) (application.Animal, error) {
	model, err := a.repo.GetAnimal(ctx, id)
	if err != nil {
		return application.Animal{}, err
	}
	return application.Animal{
		ID:         model.ID,
		TutorID:    model.TutorID,
		Name:       model.Name,
		Species:    model.Species,
		Breed:      cloneString(model.Breed),
		BirthDate:  cloneTime(model.BirthDate),
		Sex:        cloneString(model.Sex),
		WeightKg:   cloneFloat(model.WeightKg),
		IsNeutered: model.IsNeutered,
		Microchip:  cloneString(model.Microchip),
		Notes:      cloneString(model.Notes),
	}, nil
}

func (a *directoryAdapter) GetTutor(ctx context.Context, id string) (application.Tutor, error) {
	model, err := a.repo.GetTutor(ctx, id)
	if err != nil {
		return application.Tutor{}, err
	}
	return application.Tutor{
		ID:    model.ID,
		Name:  model.Name,
		Phone: cloneString(model.Phone),
		Email: cloneString(model.Email),
	}, nil
}

func toApplicationClinic(model persistence.Clinic) application.Clinic {
	return application.Clinic{ID: model.ID, Name: model.Name}
}

// ToApplicationAppointment converts a stored appointment.
func ToApplicationAppointment(model persistence.Appointment) application.Appointment {
	return application.Appointment{
		ID:              model.ID,
		ClinicID:        model.ClinicID,
		AnimalID:        model.AnimalID,
		Datetime:        model.Datetime,
		DurationMinutes: model.DurationMinutes,
		ServiceType:     model.ServiceType,
		Status:          application.AppointmentStatus(model.Status),
		Notes:           cloneString(model.Notes),
		CreatedBy:       model.CreatedBy,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

// ToPersistenceAppointment converts an appointment for storage.
func ToPersistenceAppointment(appointment application.Appointment) persistence.Appointment {
	return persistence.Appointment{
		ID:              appointment.ID,
		ClinicID:        appointment.ClinicID,
		AnimalID:        appointment.AnimalID,
		Datetime:        appointment.Datetime,
		DurationMinutes: appointment.DurationMinutes,
		ServiceType:     appointment.ServiceType,
		Status:          persistence.AppointmentStatus(appointment.Status),
		Notes:           cloneString(appointment.Notes),
		CreatedBy:       appointment.CreatedBy,
		CreatedAt:       appointment.CreatedAt,
		UpdatedAt:       appointment.UpdatedAt,
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func cloneFloat(value *float64) *float64 {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
