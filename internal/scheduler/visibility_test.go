package scheduler

import (
	"testing"
	"time"
)

type clinicViewer struct {
	clinicID string
	all      bool
}

func (v clinicViewer) CanViewClinic(clinicID string) bool {
	return v.all || (v.clinicID != "" && v.clinicID == clinicID)
}

func TestAnnotate_ExactMatchOnly(t *testing.T) {
	t.Parallel()

	candidates := []time.Time{at(9, 30), at(10, 0), at(10, 30)}
	existing := []Booking{
		{ID: "appt-1", ClinicID: "clinic-1", Start: at(10, 0)},
		{ID: "gone", ClinicID: "clinic-1", Start: at(9, 30), Cancelled: true},
	}

	slots := Annotate(candidates, existing)
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	if !slots[0].Available || !slots[2].Available {
		t.Fatalf("expected neighbouring slots to stay available, got %+v", slots)
	}
	if slots[1].Available || slots[1].AppointmentID != "appt-1" || slots[1].ClinicID != "clinic-1" {
		t.Fatalf("expected occupied slot with references, got %+v", slots[1])
	}
}

func TestRedact(t *testing.T) {
	t.Parallel()

	slots := []Slot{
		{Start: at(9, 0), Available: true},
		{Start: at(10, 0), AppointmentID: "appt-1", ClinicID: "clinic-1"},
		{Start: at(11, 0), AppointmentID: "appt-2", ClinicID: "clinic-2"},
	}

	t.Run("owner sees everything", func(t *testing.T) {
		t.Parallel()
		out := Redact(slots, clinicViewer{all: true})
		for _, slot := range out[1:] {
			if !slot.Disclosed || slot.AppointmentID == "" {
				t.Fatalf("expected disclosed slot, got %+v", slot)
			}
		}
	})

	t.Run("staff sees own clinic only", func(t *testing.T) {
		t.Parallel()
		out := Redact(slots, clinicViewer{clinicID: "clinic-1"})
		if !out[1].Disclosed || out[1].AppointmentID != "appt-1" {
			t.Fatalf("expected own clinic slot disclosed, got %+v", out[1])
		}
		if out[2].Disclosed || out[2].AppointmentID != "" || out[2].ClinicID != "" {
			t.Fatalf("expected foreign clinic slot redacted, got %+v", out[2])
		}
		if out[2].Available {
			t.Fatalf("expected redacted slot to remain unavailable")
		}
	})

	t.Run("nil viewer sees nothing", func(t *testing.T) {
		t.Parallel()
		out := Redact(slots, nil)
		if out[1].AppointmentID != "" || out[1].Disclosed {
			t.Fatalf("expected redaction for nil viewer, got %+v", out[1])
		}
		if !out[0].Available {
			t.Fatalf("expected available slot untouched")
		}
	})

	if slots[2].AppointmentID != "appt-2" {
		t.Fatalf("expected input slice to be left unmodified")
	}
}
