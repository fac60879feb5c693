package persistence

import "time"

// AppointmentStatus is the stored lifecycle state of an appointment.
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Clinic is a practice location sharing the practitioner's calendar.
type Clinic struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tutor is the person responsible for an animal.
type Tutor struct {
	ID        string
	Name      string
	Phone     *string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Animal is a patient registered under a tutor.
type Animal struct {
	ID         string
	TutorID    string
	Name       string
	Species    string
	Breed      *string
	BirthDate  *time.Time
	Sex        *string
	WeightKg   *float64
	IsNeutered bool
	Microchip  *string
	Notes      *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Appointment is a booking anchored at a single start instant.
type Appointment struct {
	ID              string
	ClinicID        string
	AnimalID        string
	Datetime        time.Time
	DurationMinutes int
	ServiceType     string
	Status          AppointmentStatus
	Notes           *string
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
