package scheduler

import "time"

// Viewer decides whether the caller may see bookings that belong to a clinic.
type Viewer interface {
	CanViewClinic(clinicID string) bool
}

// Slot is a candidate instant annotated with occupancy.
//
// AppointmentID and ClinicID are only populated for occupied slots whose details the
// viewer may see; Disclosed marks those slots so callers can attach full detail.
type Slot struct {
	Start         time.Time
	Available     bool
	AppointmentID string
	ClinicID      string
	Disclosed     bool
}

// Annotate pairs every candidate instant with the booking anchored there, using the
// exact-match rule.
func Annotate(candidates []time.Time, existing []Booking) []Slot {
	index := IndexByStart(existing)
	out := make([]Slot, 0, len(candidates))
	for _, instant := range candidates {
		slot := Slot{Start: instant, Available: true}
		if booking, ok := index[instant.UTC()]; ok {
			slot.Available = false
			slot.AppointmentID = booking.ID
			slot.ClinicID = booking.ClinicID
		}
		out = append(out, slot)
	}
	return out
}

// Redact strips appointment and clinic references from occupied slots the viewer
// is not allowed to see. Available slots are returned unchanged.
func Redact(slots []Slot, viewer Viewer) []Slot {
	out := make([]Slot, len(slots))
	for i, slot := range slots {
		if slot.Available {
			out[i] = slot
			continue
		}
		if viewer != nil && viewer.CanViewClinic(slot.ClinicID) {
			slot.Disclosed = true
			out[i] = slot
			continue
		}
		out[i] = Slot{Start: slot.Start, Available: false}
	}
	return out
}
