package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/vetclinic-scheduler/internal/application"
	"github.com/example/vetclinic-scheduler/internal/persistence"
	"github.com/example/vetclinic-scheduler/internal/scheduler"
)

var (
	clinicCounter      uint64
	tutorCounter       uint64
	animalCounter      uint64
	appointmentCounter uint64
)

// referenceTime is a Monday at the opening of the slot grid.
var referenceTime = time.Date(2025, time.June, 2, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Slot returns the grid instant that is n half-hour steps after ReferenceTime.
func Slot(n int) time.Time {
	return referenceTime.Add(time.Duration(n) * 30 * time.Minute)
}

// ----------------------------- Principals -----------------------------

// OwnerPrincipal returns the practitioner who sees every clinic.
func OwnerPrincipal() application.Principal {
	return application.Principal{UserID: "owner-001", Role: application.RoleOwner}
}

// StaffPrincipal returns a clinic staff member bound to clinicID.
func StaffPrincipal(clinicID string) application.Principal {
	id := clinicID
	return application.Principal{UserID: "staff-" + clinicID, Role: application.RoleClinicStaff, ClinicID: &id}
}

// ----------------------------- Clinic fixtures -----------------------------

// ClinicFixture represents a deterministic clinic record.
type ClinicFixture struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// ClinicOption configures the generated clinic fixture.
type ClinicOption func(*ClinicFixture)

// NewClinicFixture returns a deterministic clinic fixture with optional overrides.
func NewClinicFixture(opts ...ClinicOption) ClinicFixture {
	idx := atomic.AddUint64(&clinicCounter, 1)
	fixture := ClinicFixture{
		ID:        fmt.Sprintf("clinic-%03d", idx),
		Name:      fmt.Sprintf("Clinic %03d", idx),
		CreatedAt: referenceTime.Add(-time.Duration(idx) * time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithClinicID overrides the generated clinic ID.
func WithClinicID(id string) ClinicOption {
	return func(f *ClinicFixture) {
		f.ID = id
	}
}

// WithClinicName overrides the generated clinic name.
func WithClinicName(name string) ClinicOption {
	return func(f *ClinicFixture) {
		f.Name = name
	}
}

// WithClinicCreatedAt sets the creation time, which orders the owner's fallback clinic.
func WithClinicCreatedAt(t time.Time) ClinicOption {
	return func(f *ClinicFixture) {
		f.CreatedAt = t
	}
}

// Application returns the fixture as an application.Clinic value.
func (f ClinicFixture) Application() application.Clinic {
	return application.Clinic{ID: f.ID, Name: f.Name}
}

// Persistence returns the fixture as a persistence.Clinic value.
func (f ClinicFixture) Persistence() persistence.Clinic {
	return persistence.Clinic{ID: f.ID, Name: f.Name, CreatedAt: f.CreatedAt, UpdatedAt: f.CreatedAt}
}

// ----------------------------- Tutor fixtures -----------------------------

// TutorFixture represents a deterministic tutor record.
type TutorFixture struct {
	ID    string
	Name  string
	Phone *string
	Email *string
}

// TutorOption configures the generated tutor fixture.
type TutorOption func(*TutorFixture)

// NewTutorFixture returns a deterministic tutor fixture with optional overrides.
func NewTutorFixture(opts ...TutorOption) TutorFixture {
	idx := atomic.AddUint64(&tutorCounter, 1)
	id := fmt.Sprintf("tutor-%03d", idx)
	email := id + "@example.com"
	fixture := TutorFixture{
		ID:    id,
		Name:  fmt.Sprintf("Tutor %03d", idx),
		Email: &email,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithTutorID overrides the generated tutor ID.
func WithTutorID(id string) TutorOption {
	return func(f *TutorFixture) {
		f.ID = id
	}
}

// WithTutorName overrides the generated tutor name.
func WithTutorName(name string) TutorOption {
	return func(f *TutorFixture) {
		f.Name = name
	}
}

// WithTutorPhone sets the tutor phone number.
func WithTutorPhone(phone string) TutorOption {
	return func(f *TutorFixture) {
		f.Phone = &phone
	}
}

// Application returns the fixture as an application.Tutor value.
func (f TutorFixture) Application() application.Tutor {
	return application.Tutor{ID: f.ID, Name: f.Name, Phone: copyStringPtr(f.Phone), Email: copyStringPtr(f.Email)}
}

// Persistence returns the fixture as a persistence.Tutor value.
func (f TutorFixture) Persistence() persistence.Tutor {
	return persistence.Tutor{
		ID:        f.ID,
		Name:      f.Name,
		Phone:     copyStringPtr(f.Phone),
		Email:     copyStringPtr(f.Email),
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
}

// ----------------------------- Animal fixtures -----------------------------

// AnimalFixture represents a deterministic animal record.
type AnimalFixture struct {
	ID         string
	TutorID    string
	Name       string
	Species    string
	BirthDate  *time.Time
	WeightKg   *float64
	IsNeutered bool
}

// AnimalOption configures the generated animal fixture.
type AnimalOption func(*AnimalFixture)

// NewAnimalFixture returns a deterministic animal fixture owned by tutorID.
func NewAnimalFixture(tutorID string, opts ...AnimalOption) AnimalFixture {
	idx := atomic.AddUint64(&animalCounter, 1)
	fixture := AnimalFixture{
		ID:      fmt.Sprintf("animal-%03d", idx),
		TutorID: tutorID,
		Name:    fmt.Sprintf("Animal %03d", idx),
		Species: "dog",
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithAnimalID overrides the generated animal ID.
func WithAnimalID(id string) AnimalOption {
	return func(f *AnimalFixture) {
		f.ID = id
	}
}

// WithAnimalName overrides the generated animal name.
func WithAnimalName(name string) AnimalOption {
	return func(f *AnimalFixture) {
		f.Name = name
	}
}

// WithAnimalSpecies overrides the species.
func WithAnimalSpecies(species string) AnimalOption {
	return func(f *AnimalFixture) {
		f.Species = species
	}
}

// WithAnimalBirthDate sets the birth date used for the computed age.
func WithAnimalBirthDate(t time.Time) AnimalOption {
	return func(f *AnimalFixture) {
		f.BirthDate = &t
	}
}

// WithAnimalWeight sets the weight in kilograms.
func WithAnimalWeight(kg float64) AnimalOption {
	return func(f *AnimalFixture) {
		f.WeightKg = &kg
	}
}

// Application returns the fixture as an application.Animal value.
func (f AnimalFixture) Application() application.Animal {
	return application.Animal{
		ID:         f.ID,
		TutorID:    f.TutorID,
		Name:       f.Name,
		Species:    f.Species,
		BirthDate:  copyTimePtr(f.BirthDate),
		WeightKg:   copyFloatPtr(f.WeightKg),
		IsNeutered: f.IsNeutered,
	}
}

// Persistence returns the fixture as a persistence.Animal value.
func (f AnimalFixture) Persistence() persistence.Animal {
	return persistence.Animal{
		ID:         f.ID,
		TutorID:    f.TutorID,
		Name:       f.Name,
		Species:    f.Species,
		BirthDate:  copyTimePtr(f.BirthDate),
		WeightKg:   copyFloatPtr(f.WeightKg),
		IsNeutered: f.IsNeutered,
		CreatedAt:  referenceTime,
		UpdatedAt:  referenceTime,
	}
}

// ----------------------------- Directory -----------------------------

// DirectoryFixture groups the records one test environment needs.
type DirectoryFixture struct {
	Clinics []ClinicFixture
	Tutors  []TutorFixture
	Animals []AnimalFixture
}

// NewDirectoryFixture returns two clinics and one animal with its tutor. The first
// clinic is the oldest and therefore the owner's fallback.
func NewDirectoryFixture() DirectoryFixture {
	tutor := NewTutorFixture(WithTutorID("tutor-1"), WithTutorName("Maria"), WithTutorPhone("+55 11 99999-0000"))
	return DirectoryFixture{
		Clinics: []ClinicFixture{
			NewClinicFixture(WithClinicID("clinic-1"), WithClinicName("Centro"), WithClinicCreatedAt(referenceTime.Add(-48*time.Hour))),
			NewClinicFixture(WithClinicID("clinic-2"), WithClinicName("Zona Sul"), WithClinicCreatedAt(referenceTime.Add(-24*time.Hour))),
		},
		Tutors: []TutorFixture{tutor},
		Animals: []AnimalFixture{
			NewAnimalFixture(tutor.ID,
				WithAnimalID("animal-1"),
				WithAnimalName("Rex"),
				WithAnimalBirthDate(time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC)),
				WithAnimalWeight(12.5),
			),
		},
	}
}

// Snapshot returns the directory as a persistence import batch.
func (f DirectoryFixture) Snapshot() persistence.DirectorySnapshot {
	snapshot := persistence.DirectorySnapshot{}
	for _, clinic := range f.Clinics {
		snapshot.Clinics = append(snapshot.Clinics, clinic.Persistence())
	}
	for _, tutor := range f.Tutors {
		snapshot.Tutors = append(snapshot.Tutors, tutor.Persistence())
	}
	for _, animal := range f.Animals {
		snapshot.Animals = append(snapshot.Animals, animal.Persistence())
	}
	return snapshot
}

// ----------------------------- Appointment fixtures -----------------------------

// AppointmentFixture represents a deterministic appointment record.
type AppointmentFixture struct {
	ID              string
	ClinicID        string
	AnimalID        string
	Datetime        time.Time
	DurationMinutes int
	ServiceType     string
	Status          application.AppointmentStatus
	Notes           *string
	CreatedBy       string
	CreatedAt       time.Time
}

// AppointmentOption configures the generated appointment fixture.
type AppointmentOption func(*AppointmentFixture)

// NewAppointmentFixture returns a scheduled 30 minute appointment at ReferenceTime
// for clinic-1 and animal-1.
func NewAppointmentFixture(opts ...AppointmentOption) AppointmentFixture {
	idx := atomic.AddUint64(&appointmentCounter, 1)
	fixture := AppointmentFixture{
		ID:              fmt.Sprintf("appt-%03d", idx),
		ClinicID:        "clinic-1",
		AnimalID:        "animal-1",
		Datetime:        referenceTime,
		DurationMinutes: application.DefaultDurationMinutes,
		ServiceType:     "consulta",
		Status:          application.AppointmentStatusScheduled,
		CreatedBy:       "staff-clinic-1",
		CreatedAt:       referenceTime.Add(-time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithAppointmentID overrides the generated appointment ID.
func WithAppointmentID(id string) AppointmentOption {
	return func(f *AppointmentFixture) {
		f.ID = id
	}
}

// WithAppointmentClinic overrides the booking clinic.
func WithAppointmentClinic(clinicID string) AppointmentOption {
	return func(f *AppointmentFixture) {
		f.ClinicID = clinicID
	}
}

// WithAppointmentAt sets the start instant.
func WithAppointmentAt(t time.Time) AppointmentOption {
	return func(f *AppointmentFixture) {
		f.Datetime = t
	}
}

// WithAppointmentDuration sets the duration in minutes.
func WithAppointmentDuration(minutes int) AppointmentOption {
	return func(f *AppointmentFixture) {
		f.DurationMinutes = minutes
	}
}

// WithAppointmentStatus sets the lifecycle status.
func WithAppointmentStatus(status application.AppointmentStatus) AppointmentOption {
	return func(f *AppointmentFixture) {
		f.Status = status
	}
}

// WithAppointmentNotes sets the free text notes.
func WithAppointmentNotes(notes string) AppointmentOption {
	return func(f *AppointmentFixture) {
		f.Notes = &notes
	}
}

// Application returns the fixture as an application.Appointment value.
func (f AppointmentFixture) Application() application.Appointment {
	return application.Appointment{
		ID:              f.ID,
		ClinicID:        f.ClinicID,
		AnimalID:        f.AnimalID,
		Datetime:        f.Datetime,
		DurationMinutes: f.DurationMinutes,
		ServiceType:     f.ServiceType,
		Status:          f.Status,
		Notes:           copyStringPtr(f.Notes),
		CreatedBy:       f.CreatedBy,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.Appointment value.
func (f AppointmentFixture) Persistence() persistence.Appointment {
	return persistence.Appointment{
		ID:              f.ID,
		ClinicID:        f.ClinicID,
		AnimalID:        f.AnimalID,
		Datetime:        f.Datetime,
		DurationMinutes: f.DurationMinutes,
		ServiceType:     f.ServiceType,
		Status:          persistence.AppointmentStatus(f.Status),
		Notes:           copyStringPtr(f.Notes),
		CreatedBy:       f.CreatedBy,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.CreatedAt,
	}
}

// Input returns the fixture as a create request for the same slot.
func (f AppointmentFixture) Input() application.AppointmentInput {
	duration := f.DurationMinutes
	clinicID := f.ClinicID
	return application.AppointmentInput{
		AnimalID:        f.AnimalID,
		ClinicID:        &clinicID,
		Datetime:        f.Datetime,
		DurationMinutes: &duration,
		ServiceType:     f.ServiceType,
		Notes:           copyStringPtr(f.Notes),
	}
}

// Scheduler returns the fixture as a scheduler.Booking value.
func (f AppointmentFixture) Scheduler() scheduler.Booking {
	return scheduler.Booking{
		ID:        f.ID,
		ClinicID:  f.ClinicID,
		Start:     f.Datetime,
		Duration:  time.Duration(f.DurationMinutes) * time.Minute,
		Cancelled: f.Status == application.AppointmentStatusCancelled,
	}
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}

func copyFloatPtr(src *float64) *float64 {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
