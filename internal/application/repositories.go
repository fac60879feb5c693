package application

import (
	"context"
	"time"
)

// AppointmentFilter narrows appointment queries to anchors in [From, To).
type AppointmentFilter struct {
	From             time.Time
	To               time.Time
	IncludeCancelled bool
}

// AppointmentReader captures the appointment lookups needed by the services.
type AppointmentReader interface {
	GetAppointment(ctx context.Context, id string) (Appointment, error)
	ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error)
}

// BookingTx is a storage transaction that holds the exclusive schedule lock until
// Commit or Rollback. Rollback after Commit is a no-op.
type BookingTx interface {
	AppointmentReader
	CreateAppointment(ctx context.Context, appointment Appointment) error
	UpdateAppointmentStatus(ctx context.Context, id string, status AppointmentStatus, updatedAt time.Time) error
	Commit() error
	Rollback() error
}

// AppointmentRepository captures the persistence interactions needed by the lifecycle manager.
type AppointmentRepository interface {
	AppointmentReader
	BeginBooking(ctx context.Context) (BookingTx, error)
}

// Directory exposes the clinic, animal and tutor lookups appointments depend on.
type Directory interface {
	GetClinic(ctx context.Context, id string) (Clinic, error)
	ListClinics(ctx context.Context) ([]Clinic, error)
	GetAnimal(ctx context.Context, id string) (Animal, error)
	GetTutor(ctx context.Context, id string) (Tutor, error)
}

// AppointmentEventType names a lifecycle transition announced to other systems.
type AppointmentEventType string

const (
	EventAppointmentScheduled AppointmentEventType = "appointment.scheduled"
	EventAppointmentCancelled AppointmentEventType = "appointment.cancelled"
	EventAppointmentCompleted AppointmentEventType = "appointment.completed"
)

// AppointmentEvent describes a committed lifecycle transition.
type AppointmentEvent struct {
	Type        AppointmentEventType
	Appointment Appointment
	ActorID     string
	OccurredAt  time.Time
}

// EventPublisher announces lifecycle events. Publishing happens after commit and
// failures never undo the transition.
type EventPublisher interface {
	PublishAppointmentEvent(ctx context.Context, event AppointmentEvent) error
}

// OccupancyInvalidator drops cached occupancy after the schedule changes.
type OccupancyInvalidator interface {
	InvalidateOccupancy()
}
