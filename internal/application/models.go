package application

import "time"

// Role identifies the kind of account invoking a service method.
type Role string

const (
	// RoleClinicStaff is a secretary or vet bound to a single clinic.
	RoleClinicStaff Role = "clinic_staff"
	// RoleOwner is the practitioner whose calendar every clinic shares.
	RoleOwner Role = "owner"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID   string
	Role     Role
	ClinicID *string
}

// IsOwner reports whether the principal sees every clinic.
func (p Principal) IsOwner() bool {
	return p.Role == RoleOwner
}

// CanViewClinic reports whether bookings of clinicID may be disclosed to the principal.
func (p Principal) CanViewClinic(clinicID string) bool {
	if p.IsOwner() {
		return true
	}
	return p.ClinicID != nil && *p.ClinicID != "" && *p.ClinicID == clinicID
}

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Clinic is a practice location.
type Clinic struct {
	ID   string
	Name string
}

// Tutor is the person responsible for an animal.
type Tutor struct {
	ID    string
	Name  string
	Phone *string
	Email *string
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
}

// AgeYears returns the number of full years between the birth date and now, or nil
// when the birth date is unknown.
func (a Animal) AgeYears(now time.Time) *int {
	if a.BirthDate == nil {
		return nil
	}
	birth := *a.BirthDate
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	if years < 0 {
		years = 0
	}
	return &years
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

// Duration returns the booked length, defaulting to 30 minutes.
func (a Appointment) Duration() time.Duration {
	if a.DurationMinutes <= 0 {
		return DefaultDurationMinutes * time.Minute
	}
	return time.Duration(a.DurationMinutes) * time.Minute
}

// AppointmentDetail is an appointment together with the directory records it references.
// Clinic, Animal and Tutor are nil when the referenced record no longer exists.
type AppointmentDetail struct {
	Appointment
	Clinic *Clinic
	Animal *Animal
	Tutor  *Tutor
}

// DefaultDurationMinutes applies when a create request omits the duration.
const DefaultDurationMinutes = 30

// AppointmentInput captures caller provided appointment fields.
type AppointmentInput struct {
	AnimalID        string
	ClinicID        *string
	Datetime        time.Time
	DurationMinutes *int
	ServiceType     string
	Notes           *string
}

// CreateAppointmentParams wraps the data required to book an appointment.
type CreateAppointmentParams struct {
	Principal Principal
	Input     AppointmentInput
}

// AppointmentParams identifies an existing appointment on behalf of a principal.
type AppointmentParams struct {
	Principal     Principal
	AppointmentID string
}

// AvailabilityParams wraps the calendar dates, both inclusive, of an availability query.
type AvailabilityParams struct {
	Principal Principal
	StartDate time.Time
	EndDate   time.Time
}

// AvailabilitySlot is a bookable instant annotated with occupancy. AppointmentID,
// ClinicID and Appointment are only set for occupied slots the principal may see.
type AvailabilitySlot struct {
	Datetime      time.Time
	Available     bool
	AppointmentID *string
	ClinicID      *string
	Appointment   *AppointmentDetail
}

// Availability is the result of an availability query.
type Availability struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Slots       []AvailabilitySlot
}
