package http

import (
	"time"

	"github.com/example/vetclinic-scheduler/internal/application"
)

type availabilityResponse struct {
	Period periodDTO `json:"period"`
	Slots  []slotDTO `json:"slots"`
}

type periodDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type slotDTO struct {
	Datetime      string          `json:"datetime"`
	Available     bool            `json:"available"`
	AppointmentID *string         `json:"appointment_id,omitempty"`
	ClinicID      *string         `json:"clinic_id,omitempty"`
	Appointment   *appointmentDTO `json:"appointment,omitempty"`
}

type appointmentResponse struct {
	Appointment appointmentDTO `json:"appointment"`
}

type appointmentDTO struct {
	ID              string     `json:"id"`
	ClinicID        string     `json:"clinic_id"`
	AnimalID        string     `json:"animal_id"`
	Datetime        string     `json:"datetime"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	ServiceType     string     `json:"service_type"`
	Notes           *string    `json:"notes"`
	Clinic          *clinicDTO `json:"clinic"`
	Animal          *animalDTO `json:"animal"`
	CreatedBy       string     `json:"created_by"`
	CreatedAt       string     `json:"created_at"`
	UpdatedAt       string     `json:"updated_at"`
}

type clinicDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type animalDTO struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Species    string    `json:"species"`
	Breed      *string   `json:"breed"`
	BirthDate  *string   `json:"birth_date"`
	AgeYears   *int      `json:"age_years"`
	Sex        *string   `json:"sex"`
	Weight     *float64  `json:"weight"`
	IsNeutered bool      `json:"is_neutered"`
	Microchip  *string   `json:"microchip"`
	Notes      *string   `json:"notes"`
	Tutor      *tutorDTO `json:"tutor"`
}

type tutorDTO struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Phone *string `json:"phone"`
	Email *string `json:"email"`
}

func (h *AppointmentHandler) toAvailabilityResponse(result application.Availability) availabilityResponse {
	slots := make([]slotDTO, 0, len(result.Slots))
	for _, slot := range result.Slots {
		dto := slotDTO{
			Datetime:      h.formatTime(slot.Datetime),
			Available:     slot.Available,
			AppointmentID: slot.AppointmentID,
			ClinicID:      slot.ClinicID,
		}
		if slot.Appointment != nil {
			appointment := h.toAppointmentDTO(*slot.Appointment)
			dto.Appointment = &appointment
		}
		slots = append(slots, dto)
	}
	return availabilityResponse{
		Period: periodDTO{
			Start: result.PeriodStart.In(h.location).Format(time.DateOnly),
			End:   result.PeriodEnd.In(h.location).Format(time.DateOnly),
		},
		Slots: slots,
	}
}

func (h *AppointmentHandler) toAppointmentDTO(detail application.AppointmentDetail) appointmentDTO {
	dto := appointmentDTO{
		ID:              detail.ID,
		ClinicID:        detail.ClinicID,
		AnimalID:        detail.AnimalID,
		Datetime:        h.formatTime(detail.Datetime),
		DurationMinutes: detail.DurationMinutes,
		Status:          string(detail.Status),
		ServiceType:     detail.ServiceType,
		Notes:           detail.Notes,
		CreatedBy:       detail.CreatedBy,
		CreatedAt:       h.formatTime(detail.CreatedAt),
		UpdatedAt:       h.formatTime(detail.UpdatedAt),
	}
	if detail.Clinic != nil {
		dto.Clinic = &clinicDTO{ID: detail.Clinic.ID, Name: detail.Clinic.Name}
	}
	if detail.Animal != nil {
		animal := detail.Animal
		out := &animalDTO{
			ID:         animal.ID,
			Name:       animal.Name,
			Species:    animal.Species,
			Breed:      animal.Breed,
			AgeYears:   animal.AgeYears(h.now().In(h.location)),
			Sex:        animal.Sex,
			Weight:     animal.WeightKg,
			IsNeutered: animal.IsNeutered,
			Microchip:  animal.Microchip,
			Notes:      animal.Notes,
		}
		if animal.BirthDate != nil {
			birth := animal.BirthDate.Format(time.DateOnly)
			out.BirthDate = &birth
		}
		if detail.Tutor != nil {
			out.Tutor = &tutorDTO{
				ID:    detail.Tutor.ID,
				Name:  detail.Tutor.Name,
				Phone: detail.Tutor.Phone,
				Email: detail.Tutor.Email,
			}
		}
		dto.Animal = out
	}
	return dto
}

func (h *AppointmentHandler) formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(h.location).Format(time.RFC3339)
}
