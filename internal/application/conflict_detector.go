package application

import (
	"context"
	"fmt"
	"time"

	"github.com/example/vetclinic-scheduler/internal/scheduler"
)

// ConflictDetector runs the scheduler conflict rules against stored appointments.
// Storage narrows the candidates by anchor range and the pure predicates re-check them.
type ConflictDetector struct {
	policy scheduler.ConflictPolicy
}

// NewConflictDetector constructs a detector for the supplied policy.
func NewConflictDetector(policy scheduler.ConflictPolicy) *ConflictDetector {
	return &ConflictDetector{policy: policy}
}

// Policy returns the window policy applied by the detector.
func (d *ConflictDetector) Policy() scheduler.ConflictPolicy {
	if d == nil {
		return scheduler.DefaultConflictPolicy()
	}
	return d.policy
}

// HasWindowConflict reports the first active appointment, other than excludeID, whose
// anchor falls inside the creation window for instant and duration.
func (d *ConflictDetector) HasWindowConflict(ctx context.Context, reader AppointmentReader, instant time.Time, duration time.Duration, excludeID string) (Appointment, bool, error) {
	policy := d.Policy()
	window := policy.Window(instant, duration)
	appointments, err := reader.ListAppointments(ctx, AppointmentFilter{From: window.From, To: window.To})
	if err != nil {
		return Appointment{}, false, fmt.Errorf("list appointments in window: %w", err)
	}
	booking, found := policy.FindConflict(toBookings(appointments), instant, duration, excludeID)
	if !found {
		return Appointment{}, false, nil
	}
	return findAppointment(appointments, booking.ID), true, nil
}

// NextAvailable searches forward from start for the first instant without a window
// conflict. Every appointment the search could touch is loaded with a single query.
func (d *ConflictDetector) NextAvailable(ctx context.Context, reader AppointmentReader, start time.Time, duration time.Duration, maxAttempts int) (*time.Time, error) {
	if maxAttempts <= 0 {
		maxAttempts = scheduler.DefaultMaxAttempts
	}
	policy := d.Policy()
	first := policy.Window(start.Add(scheduler.SlotStep), duration)
	last := policy.Window(start.Add(time.Duration(maxAttempts)*scheduler.SlotStep), duration)

	appointments, err := reader.ListAppointments(ctx, AppointmentFilter{From: first.From, To: last.To})
	if err != nil {
		return nil, fmt.Errorf("list appointments for next available search: %w", err)
	}

	check := scheduler.InMemoryCheck(policy, toBookings(appointments), "")
	next, found, err := scheduler.FindNextAvailable(ctx, check, start, duration, maxAttempts)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &next, nil
}

func toBookings(appointments []Appointment) []scheduler.Booking {
	bookings := make([]scheduler.Booking, 0, len(appointments))
	for _, appointment := range appointments {
		bookings = append(bookings, scheduler.Booking{
			ID:        appointment.ID,
			ClinicID:  appointment.ClinicID,
			Start:     appointment.Datetime,
			Duration:  appointment.Duration(),
			Cancelled: appointment.Status == AppointmentStatusCancelled,
		})
	}
	return bookings
}

func findAppointment(appointments []Appointment, id string) Appointment {
	for _, appointment := range appointments {
		if appointment.ID == id {
			return appointment
		}
	}
	return Appointment{}
}
