package persistence

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

// AppointmentReader exposes the read side of appointment storage.
type AppointmentReader interface {
	GetAppointment(ctx context.Context, id string) (Appointment, error)
	ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error)
}

// AppointmentWriter exposes the mutations permitted on appointments.
type AppointmentWriter interface {
	CreateAppointment(ctx context.Context, appointment Appointment) error
	UpdateAppointmentStatus(ctx context.Context, id string, status AppointmentStatus, updatedAt time.Time) error
}

// BookingTx is a transaction that holds the exclusive schedule lock until it is
// committed or rolled back. Reads made through it observe every booking committed
// before the lock was granted.
type BookingTx interface {
	AppointmentReader
	AppointmentWriter
	Commit() error
	Rollback() error
}

// AppointmentRepository stores appointments. Writes only happen through BeginBooking.
type AppointmentRepository interface {
	AppointmentReader
	BeginBooking(ctx context.Context) (BookingTx, error)
}

// DirectoryRepository exposes the clinics, tutors and animals that appointments reference.
type DirectoryRepository interface {
	GetClinic(ctx context.Context, id string) (Clinic, error)
	ListClinics(ctx context.Context) ([]Clinic, error)
	GetTutor(ctx context.Context, id string) (Tutor, error)
	GetAnimal(ctx context.Context, id string) (Animal, error)
	// ImportDirectory inserts or replaces every record of snapshot in one transaction.
	ImportDirectory(ctx context.Context, snapshot DirectorySnapshot) error
}

// DirectorySnapshot is a batch of directory records loaded together.
type DirectorySnapshot struct {
	Clinics []Clinic
	Tutors  []Tutor
	Animals []Animal
}
