package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/vetclinic-scheduler/internal/persistence"
)

// memoryStore is an in-memory AppointmentRepository. BeginBooking holds lock until
// the transaction finishes, mirroring the storage schedule lock.
type memoryStore struct {
	lock sync.Mutex

	mu           sync.Mutex
	appointments map[string]Appointment
	listCalls    int
	listErr      error
	createErr    error
	beginErr     error
}

func newMemoryStore(appointments ...Appointment) *memoryStore {
	store := &memoryStore{appointments: make(map[string]Appointment)}
	for _, appointment := range appointments {
		store.appointments[appointment.ID] = appointment
	}
	return store
}

func (m *memoryStore) GetAppointment(ctx context.Context, id string) (Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	appointment, ok := m.appointments[id]
	if !ok {
		return Appointment{}, persistence.ErrNotFound
	}
	return appointment, nil
}

func (m *memoryStore) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []Appointment
	for _, appointment := range m.appointments {
		if !filter.IncludeCancelled && appointment.Status == AppointmentStatusCancelled {
			continue
		}
		if appointment.Datetime.Before(filter.From) || !appointment.Datetime.Before(filter.To) {
			continue
		}
		out = append(out, appointment)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Datetime.Before(out[j].Datetime) })
	return out, nil
}

func (m *memoryStore) BeginBooking(ctx context.Context) (BookingTx, error) {
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	m.lock.Lock()
	return &memoryTx{store: m}, nil
}

func (m *memoryStore) listCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

func (m *memoryStore) get(id string) (Appointment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	appointment, ok := m.appointments[id]
	return appointment, ok
}

type memoryTx struct {
	store  *memoryStore
	writes []func()
	done   bool
}

func (tx *memoryTx) GetAppointment(ctx context.Context, id string) (Appointment, error) {
	return tx.store.GetAppointment(ctx, id)
}

func (tx *memoryTx) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error) {
	return tx.store.ListAppointments(ctx, filter)
}

func (tx *memoryTx) CreateAppointment(ctx context.Context, appointment Appointment) error {
	if tx.store.createErr != nil {
		return tx.store.createErr
	}
	tx.store.mu.Lock()
	for _, existing := range tx.store.appointments {
		if existing.Status != AppointmentStatusCancelled && existing.Datetime.Equal(appointment.Datetime) {
			tx.store.mu.Unlock()
			return persistence.ErrDuplicate
		}
	}
	tx.store.mu.Unlock()
	tx.writes = append(tx.writes, func() { tx.store.appointments[appointment.ID] = appointment })
	return nil
}

func (tx *memoryTx) UpdateAppointmentStatus(ctx context.Context, id string, status AppointmentStatus, updatedAt time.Time) error {
	if _, ok := tx.store.get(id); !ok {
		return persistence.ErrNotFound
	}
	tx.writes = append(tx.writes, func() {
		appointment := tx.store.appointments[id]
		appointment.Status = status
		appointment.UpdatedAt = updatedAt
		tx.store.appointments[id] = appointment
	})
	return nil
}

func (tx *memoryTx) Commit() error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.store.mu.Lock()
	for _, write := range tx.writes {
		write()
	}
	tx.store.mu.Unlock()
	tx.store.lock.Unlock()
	return nil
}

func (tx *memoryTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.store.lock.Unlock()
	return nil
}

type directoryStub struct {
	clinics []Clinic
	animals map[string]Animal
	tutors  map[string]Tutor
	err     error
}

func newDirectoryStub() *directoryStub {
	phone := "+55 11 99999-0000"
	breed := "Labrador"
	birth := time.Date(2019, 3, 10, 0, 0, 0, 0, time.UTC)
	return &directoryStub{
		clinics: []Clinic{{ID: "clinic-1", Name: "Centro"}, {ID: "clinic-2", Name: "Zona Sul"}},
		animals: map[string]Animal{
			"animal-1": {ID: "animal-1", TutorID: "tutor-1", Name: "Rex", Species: "dog", Breed: &breed, BirthDate: &birth},
		},
		tutors: map[string]Tutor{
			"tutor-1": {ID: "tutor-1", Name: "Maria", Phone: &phone},
		},
	}
}

func (d *directoryStub) GetClinic(ctx context.Context, id string) (Clinic, error) {
	if d.err != nil {
		return Clinic{}, d.err
	}
	for _, clinic := range d.clinics {
		if clinic.ID == id {
			return clinic, nil
		}
	}
	return Clinic{}, persistence.ErrNotFound
}

func (d *directoryStub) ListClinics(ctx context.Context) ([]Clinic, error) {
	if d.err != nil {
		return nil, d.err
	}
	out := make([]Clinic, len(d.clinics))
	copy(out, d.clinics)
	return out, nil
}

func (d *directoryStub) GetAnimal(ctx context.Context, id string) (Animal, error) {
	if d.err != nil {
		return Animal{}, d.err
	}
	animal, ok := d.animals[id]
	if !ok {
		return Animal{}, persistence.ErrNotFound
	}
	return animal, nil
}

func (d *directoryStub) GetTutor(ctx context.Context, id string) (Tutor, error) {
	if d.err != nil {
		return Tutor{}, d.err
	}
	tutor, ok := d.tutors[id]
	if !ok {
		return Tutor{}, persistence.ErrNotFound
	}
	return tutor, nil
}

type publisherStub struct {
	mu     sync.Mutex
	events []AppointmentEvent
	err    error
}

func (p *publisherStub) PublishAppointmentEvent(ctx context.Context, event AppointmentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *publisherStub) published() []AppointmentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]AppointmentEvent, len(p.events))
	copy(out, p.events)
	return out
}

type invalidatorStub struct {
	mu    sync.Mutex
	calls int
}

func (i *invalidatorStub) InvalidateOccupancy() {
	i.mu.Lock()
	i.calls++
	i.mu.Unlock()
}

func (i *invalidatorStub) count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.calls
}

func at(day, hour, minute int) time.Time {
	return time.Date(2025, 6, day, hour, minute, 0, 0, time.UTC)
}

func scheduled(id, clinicID string, start time.Time) Appointment {
	return Appointment{
		ID:              id,
		ClinicID:        clinicID,
		AnimalID:        "animal-1",
		Datetime:        start,
		DurationMinutes: 30,
		ServiceType:     "consultation",
		Status:          AppointmentStatusScheduled,
		CreatedBy:       "user-1",
	}
}

func ownerPrincipal() Principal {
	return Principal{UserID: "owner-1", Role: RoleOwner}
}

func staffPrincipal(clinicID string) Principal {
	return Principal{UserID: "staff-" + clinicID, Role: RoleClinicStaff, ClinicID: &clinicID}
}

func intPtr(v int) *int { return &v }

func stringPtr(v string) *string { return &v }
