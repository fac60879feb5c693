package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newAvailabilityHarness(t *testing.T, existing ...Appointment) (*AvailabilityService, *memoryStore) {
	t.Helper()
	store := newMemoryStore(existing...)
	svc := NewAvailabilityServiceWithOptions(store, newDirectoryStub(), func() time.Time { return at(1, 12, 0) }, AvailabilityServiceOptions{
		CacheTTL: time.Minute,
	})
	return svc, store
}

func day(d int) time.Time {
	return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC)
}

func TestAvailabilityService_GetAvailability_Grid(t *testing.T) {
	t.Parallel()

	svc, _ := newAvailabilityHarness(t)

	// 2025-06-06 is a Friday, 06-07 and 06-08 the weekend.
	result, err := svc.GetAvailability(context.Background(), AvailabilityParams{
		Principal: ownerPrincipal(),
		StartDate: day(6),
		EndDate:   day(8),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Slots) != 20 {
		t.Fatalf("expected 20 slots for a single weekday, got %d", len(result.Slots))
	}
	if first := result.Slots[0].Datetime; !first.Equal(at(6, 8, 0)) {
		t.Fatalf("expected first slot 08:00, got %s", first)
	}
	if last := result.Slots[19].Datetime; !last.Equal(at(6, 17, 30)) {
		t.Fatalf("expected last slot 17:30, got %s", last)
	}
	for _, slot := range result.Slots {
		if !slot.Available {
			t.Fatalf("expected empty calendar to be fully available")
		}
	}
	if !result.PeriodStart.Equal(day(6)) || !result.PeriodEnd.Equal(day(8)) {
		t.Fatalf("unexpected period %s - %s", result.PeriodStart, result.PeriodEnd)
	}
}

func TestAvailabilityService_GetAvailability_EmptyRanges(t *testing.T) {
	t.Parallel()

	svc, store := newAvailabilityHarness(t)

	for name, params := range map[string]AvailabilityParams{
		"weekend":        {Principal: ownerPrincipal(), StartDate: day(7), EndDate: day(8)},
		"start after end": {Principal: ownerPrincipal(), StartDate: day(5), EndDate: day(3)},
	} {
		result, err := svc.GetAvailability(context.Background(), params)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if result.Slots == nil || len(result.Slots) != 0 {
			t.Fatalf("%s: expected empty non-nil slots, got %v", name, result.Slots)
		}
	}
	if store.listCount() != 0 {
		t.Fatalf("expected no storage reads for empty grids, got %d", store.listCount())
	}
}

func TestAvailabilityService_GetAvailability_Validation(t *testing.T) {
	t.Parallel()

	svc, _ := newAvailabilityHarness(t)

	_, err := svc.GetAvailability(context.Background(), AvailabilityParams{Principal: ownerPrincipal(), StartDate: day(2)})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Message != "start_date and end_date required" {
		t.Fatalf("expected missing date validation, got %v", err)
	}

	_, err = svc.GetAvailability(context.Background(), AvailabilityParams{
		Principal: ownerPrincipal(),
		StartDate: day(1),
		EndDate:   day(1).AddDate(0, 0, DefaultMaxAvailabilityDays),
	})
	if !errors.As(err, &vErr) {
		t.Fatalf("expected range validation, got %v", err)
	}
	if _, ok := vErr.FieldErrors["end_date"]; !ok {
		t.Fatalf("expected end_date field error, got %v", vErr.FieldErrors)
	}

	if _, err := svc.GetAvailability(context.Background(), AvailabilityParams{
		Principal: ownerPrincipal(),
		StartDate: day(1),
		EndDate:   day(1).AddDate(0, 0, DefaultMaxAvailabilityDays-1),
	}); err != nil {
		t.Fatalf("expected range at the cap to be accepted, got %v", err)
	}
}

func TestAvailabilityService_GetAvailability_Visibility(t *testing.T) {
	t.Parallel()

	svc, _ := newAvailabilityHarness(t, scheduled("appt-1", "clinic-1", at(2, 10, 0)))
	params := AvailabilityParams{StartDate: day(2), EndDate: day(2)}

	slotAt := func(t *testing.T, result Availability, instant time.Time) AvailabilitySlot {
		t.Helper()
		for _, slot := range result.Slots {
			if slot.Datetime.Equal(instant) {
				return slot
			}
		}
		t.Fatalf("no slot at %s", instant)
		return AvailabilitySlot{}
	}

	cases := []struct {
		name      string
		principal Principal
		disclosed bool
	}{
		{name: "owner", principal: ownerPrincipal(), disclosed: true},
		{name: "same clinic staff", principal: staffPrincipal("clinic-1"), disclosed: true},
		{name: "other clinic staff", principal: staffPrincipal("clinic-2"), disclosed: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := params
			p.Principal = tc.principal
			result, err := svc.GetAvailability(context.Background(), p)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			occupied := slotAt(t, result, at(2, 10, 0))
			if occupied.Available {
				t.Fatalf("expected 10:00 to be occupied")
			}
			if tc.disclosed {
				if occupied.AppointmentID == nil || *occupied.AppointmentID != "appt-1" || occupied.ClinicID == nil {
					t.Fatalf("expected appointment reference, got %+v", occupied)
				}
				if occupied.Appointment == nil || occupied.Appointment.Animal == nil || occupied.Appointment.Animal.Name != "Rex" {
					t.Fatalf("expected appointment detail, got %+v", occupied.Appointment)
				}
			} else if occupied.AppointmentID != nil || occupied.ClinicID != nil || occupied.Appointment != nil {
				t.Fatalf("expected redacted slot, got %+v", occupied)
			}

			// Exact matching: the lookback window does not mark neighbours occupied.
			if next := slotAt(t, result, at(2, 10, 30)); !next.Available {
				t.Fatalf("expected 10:30 to be available")
			}
		})
	}
}

func TestAvailabilityService_GetAvailability_ExactMatchIgnoresCancelled(t *testing.T) {
	t.Parallel()

	cancelled := scheduled("appt-cancelled", "clinic-1", at(2, 9, 0))
	cancelled.Status = AppointmentStatusCancelled
	svc, _ := newAvailabilityHarness(t, scheduled("appt-1", "clinic-1", at(2, 10, 0)), cancelled)

	result, err := svc.GetAvailability(context.Background(), AvailabilityParams{
		Principal: ownerPrincipal(),
		StartDate: day(2),
		EndDate:   day(2),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	occupied := 0
	for _, slot := range result.Slots {
		switch {
		case slot.Datetime.Equal(at(2, 10, 0)):
			if slot.Available {
				t.Fatalf("expected 10:00 to be occupied")
			}
		case slot.Datetime.Equal(at(2, 9, 0)):
			if !slot.Available {
				t.Fatalf("expected cancelled 09:00 appointment to free its slot")
			}
		}
		if !slot.Available {
			occupied++
		}
	}
	if occupied != 1 {
		t.Fatalf("expected exactly one occupied slot, got %d", occupied)
	}
}

func TestAvailabilityService_GetAvailability_UsesCacheUntilInvalidated(t *testing.T) {
	t.Parallel()

	svc, store := newAvailabilityHarness(t)
	params := AvailabilityParams{Principal: ownerPrincipal(), StartDate: day(2), EndDate: day(3)}

	for i := 0; i < 3; i++ {
		if _, err := svc.GetAvailability(context.Background(), params); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if store.listCount() != 1 {
		t.Fatalf("expected one storage read, got %d", store.listCount())
	}

	store.mu.Lock()
	store.appointments["appt-1"] = scheduled("appt-1", "clinic-1", at(2, 9, 0))
	store.mu.Unlock()
	svc.InvalidateOccupancy()

	result, err := svc.GetAvailability(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.listCount() != 2 {
		t.Fatalf("expected invalidation to force a reload, got %d reads", store.listCount())
	}
	if result.Slots[2].Available {
		t.Fatalf("expected 09:00 to be occupied after reload")
	}
}

func TestAvailabilityService_ReflectsAppointmentServiceWrites(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	directory := newDirectoryStub()
	availability := NewAvailabilityServiceWithOptions(store, directory, nil, AvailabilityServiceOptions{CacheTTL: time.Hour})
	appointments := NewAppointmentServiceWithOptions(store, directory, func() string { return "appt-1" }, nil, AppointmentServiceOptions{
		Invalidator: availability,
	})
	params := AvailabilityParams{Principal: ownerPrincipal(), StartDate: day(2), EndDate: day(2)}

	if _, err := availability.GetAvailability(context.Background(), params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := appointments.CreateAppointment(context.Background(), CreateAppointmentParams{Principal: ownerPrincipal(), Input: validInput()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := availability.GetAvailability(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Slots[4].Available {
		t.Fatalf("expected 10:00 to be occupied right after booking")
	}
}

func TestAvailabilityService_ConcurrentReads(t *testing.T) {
	t.Parallel()

	svc, _ := newAvailabilityHarness(t, scheduled("appt-1", "clinic-1", at(2, 10, 0)))
	params := AvailabilityParams{Principal: staffPrincipal("clinic-2"), StartDate: day(2), EndDate: day(6)}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.GetAvailability(context.Background(), params)
			if err != nil {
				errs <- err
				return
			}
			if len(result.Slots) != 100 {
				errs <- errors.New("unexpected slot count")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent read failed: %v", err)
	}
}

// cancelSensitiveReader fails the way a database driver does when handed a
// cancelled context.
type cancelSensitiveReader struct {
	*memoryStore
}

func (r cancelSensitiveReader) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.memoryStore.ListAppointments(ctx, filter)
}

func TestAvailabilityService_SharedLoadIgnoresCallerCancellation(t *testing.T) {
	t.Parallel()

	reader := cancelSensitiveReader{newMemoryStore(scheduled("appt-1", "clinic-1", at(2, 10, 0)))}
	svc := NewAvailabilityServiceWithOptions(reader, newDirectoryStub(), func() time.Time { return at(1, 12, 0) }, AvailabilityServiceOptions{
		CacheTTL: time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := svc.GetAvailability(ctx, AvailabilityParams{Principal: staffPrincipal("clinic-2"), StartDate: day(2), EndDate: day(2)})
	if err != nil {
		t.Fatalf("expected the shared load to survive caller cancellation, got %v", err)
	}
	if len(result.Slots) != 20 || result.Slots[4].Available {
		t.Fatalf("expected 20 slots with 10:00 occupied, got %+v", result.Slots)
	}
}

func TestAvailabilityService_StorageFailure(t *testing.T) {
	t.Parallel()

	svc, store := newAvailabilityHarness(t)
	store.listErr = errors.New("disk gone")
	if _, err := svc.GetAvailability(context.Background(), AvailabilityParams{Principal: ownerPrincipal(), StartDate: day(2), EndDate: day(2)}); err == nil {
		t.Fatalf("expected storage error")
	}
}
