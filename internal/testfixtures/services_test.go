package testfixtures

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/vetclinic-scheduler/internal/application"
)

func newSeededHarness(t *testing.T) *SQLiteHarness {
	t.Helper()
	harness := NewSQLiteHarness(t)
	harness.Seed(t, NewDirectoryFixture())
	return harness
}

func TestServiceFactory_AppointmentServiceOnSQLite(t *testing.T) {
	t.Parallel()

	harness := newSeededHarness(t)
	factory := NewServiceFactory()
	svc := factory.NewAppointmentService(AppointmentServiceDeps{
		Appointments: harness.Appointments(),
		Directory:    harness.Directory(),
	})

	detail, err := svc.CreateAppointment(context.Background(), application.CreateAppointmentParams{
		Principal: OwnerPrincipal(),
		Input:     NewAppointmentFixture(WithAppointmentAt(Slot(4))).Input(),
	})
	if err != nil {
		t.Fatalf("CreateAppointment returned error: %v", err)
	}
	if detail.ID != "appt-001" {
		t.Fatalf("expected generated ID appt-001, got %q", detail.ID)
	}
	if !detail.CreatedAt.Equal(factory.Clock.Now()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Now(), detail.CreatedAt)
	}
	if detail.Clinic == nil || detail.Clinic.Name != "Centro" || detail.Tutor == nil || detail.Tutor.Name != "Maria" {
		t.Fatalf("expected directory details, got %+v", detail)
	}

	stored := harness.Appointment(t, detail.ID)
	if !stored.Datetime.Equal(Slot(4)) || stored.CreatedBy != OwnerPrincipal().UserID {
		t.Fatalf("unexpected stored appointment %+v", stored)
	}

	_, err = svc.CreateAppointment(context.Background(), application.CreateAppointmentParams{
		Principal: StaffPrincipal("clinic-2"),
		Input:     NewAppointmentFixture(WithAppointmentAt(Slot(5))).Input(),
	})
	var conflict *application.ConflictError
	if !errors.As(err, &conflict) || conflict.NextAvailable == nil {
		t.Fatalf("expected conflict with suggestion, got %v", err)
	}
	if !conflict.NextAvailable.Equal(Slot(7)) {
		t.Fatalf("expected next available %s, got %s", Slot(7), conflict.NextAvailable)
	}
}

func TestServiceFactory_AvailabilityServiceOnSQLite(t *testing.T) {
	t.Parallel()

	harness := newSeededHarness(t)
	harness.Book(t,
		NewAppointmentFixture(WithAppointmentID("a-1"), WithAppointmentAt(Slot(0))),
		NewAppointmentFixture(WithAppointmentID("a-2"), WithAppointmentAt(Slot(1)), WithAppointmentStatus(application.AppointmentStatusCancelled)),
		NewAppointmentFixture(WithAppointmentID("a-3"), WithAppointmentAt(Slot(2)), WithAppointmentClinic("clinic-2")),
	)

	svc := NewServiceFactory().NewAvailabilityService(AvailabilityServiceDeps{
		Appointments: harness.Appointments(),
		Directory:    harness.Directory(),
	})
	result, err := svc.GetAvailability(context.Background(), application.AvailabilityParams{
		Principal: StaffPrincipal("clinic-1"),
		StartDate: ReferenceTime(),
		EndDate:   ReferenceTime(),
	})
	if err != nil {
		t.Fatalf("GetAvailability returned error: %v", err)
	}
	if len(result.Slots) != 20 {
		t.Fatalf("expected 20 slots, got %d", len(result.Slots))
	}

	own, cancelled, foreign := result.Slots[0], result.Slots[1], result.Slots[2]
	if own.Available || own.AppointmentID == nil || *own.AppointmentID != "a-1" {
		t.Fatalf("expected own booking disclosed, got %+v", own)
	}
	if !cancelled.Available {
		t.Fatalf("expected cancelled booking to free its slot")
	}
	if foreign.Available || foreign.AppointmentID != nil || foreign.Appointment != nil {
		t.Fatalf("expected foreign booking redacted, got %+v", foreign)
	}
}

func TestFixtures_Conversions(t *testing.T) {
	t.Parallel()

	fixture := NewAppointmentFixture(WithAppointmentAt(Slot(3)), WithAppointmentDuration(45), WithAppointmentNotes("retorno"))
	booking := fixture.Scheduler()
	if !booking.Start.Equal(Slot(3)) || booking.Duration != 45*time.Minute || booking.Cancelled {
		t.Fatalf("unexpected booking %+v", booking)
	}

	input := fixture.Input()
	if input.ClinicID == nil || *input.ClinicID != fixture.ClinicID || *input.DurationMinutes != 45 || *input.Notes != "retorno" {
		t.Fatalf("unexpected input %+v", input)
	}

	model := fixture.Persistence()
	*model.Notes = "changed"
	if *fixture.Notes != "retorno" {
		t.Fatalf("persistence conversion must copy notes")
	}

	snapshot := NewDirectoryFixture().Snapshot()
	if len(snapshot.Clinics) != 2 || len(snapshot.Tutors) != 1 || len(snapshot.Animals) != 1 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
	if !snapshot.Clinics[0].CreatedAt.Before(snapshot.Clinics[1].CreatedAt) {
		t.Fatalf("expected clinic-1 to be the oldest clinic")
	}
}
