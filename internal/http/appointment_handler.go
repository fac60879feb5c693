package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/vetclinic-scheduler/internal/application"
)

type appointmentService interface {
	CreateAppointment(ctx context.Context, params application.CreateAppointmentParams) (application.AppointmentDetail, error)
	GetAppointment(ctx context.Context, params application.AppointmentParams) (application.AppointmentDetail, error)
	CancelAppointment(ctx context.Context, params application.AppointmentParams) (application.Appointment, error)
	CompleteAppointment(ctx context.Context, params application.AppointmentParams) (application.AppointmentDetail, error)
}

type availabilityService interface {
	GetAvailability(ctx context.Context, params application.AvailabilityParams) (application.Availability, error)
}

// AppointmentHandler serves the appointment endpoints.
type AppointmentHandler struct {
	appointments appointmentService
	availability availabilityService
	location     *time.Location
	now          func() time.Time
	responder    responder
	logger       *slog.Logger
}

// NewAppointmentHandler wires the handler. Datetimes without an offset are read in
// location and every datetime is rendered there.
func NewAppointmentHandler(appointments appointmentService, availability availabilityService, location *time.Location, logger *slog.Logger) *AppointmentHandler {
	if location == nil {
		location = time.UTC
	}
	return &AppointmentHandler{
		appointments: appointments,
		availability: availability,
		location:     location,
		now:          time.Now,
		responder:    newResponder(logger, location),
		logger:       defaultLogger(logger),
	}
}

// Availability handles GET /api/appointments/availability.
func (h *AppointmentHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.availability == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	rawStart := strings.TrimSpace(query.Get("start_date"))
	rawEnd := strings.TrimSpace(query.Get("end_date"))

	vErr := &application.ValidationError{}
	start, startErr := parseDate(rawStart, h.location)
	end, endErr := parseDate(rawEnd, h.location)
	if rawStart == "" || rawEnd == "" {
		vErr.Message = "start_date and end_date required"
	} else if startErr != nil || endErr != nil {
		vErr.Message = "Invalid date format"
		vErr.FieldErrors = map[string]string{}
		if startErr != nil {
			vErr.FieldErrors["start_date"] = "must be an ISO-8601 date"
		}
		if endErr != nil {
			vErr.FieldErrors["end_date"] = "must be an ISO-8601 date"
		}
	}
	if vErr.HasErrors() {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	result, err := h.availability.GetAvailability(r.Context(), application.AvailabilityParams{
		Principal: principal,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, h.toAvailabilityResponse(result))
}

// Create handles POST /api/appointments.
func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.appointments == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, err := req.toInput(h.location)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	detail, err := h.appointments.CreateAppointment(r.Context(), application.CreateAppointmentParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		h.logFailure(r.Context(), "Create", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, appointmentResponse{Appointment: h.toAppointmentDTO(detail)})
}

// Get handles GET /api/appointments/{id}.
func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request, id string) {
	if h == nil || h.appointments == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	params, ok := h.appointmentParams(w, r, id)
	if !ok {
		return
	}

	detail, err := h.appointments.GetAppointment(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, appointmentResponse{Appointment: h.toAppointmentDTO(detail)})
}

// Cancel handles DELETE /api/appointments/{id}.
func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request, id string) {
	if h == nil || h.appointments == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	params, ok := h.appointmentParams(w, r, id)
	if !ok {
		return
	}

	if _, err := h.appointments.CancelAppointment(r.Context(), params); err != nil {
		h.logFailure(r.Context(), "Cancel", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, messageResponse{Message: messageCancelled})
}

// Complete handles POST /api/appointments/{id}/complete.
func (h *AppointmentHandler) Complete(w http.ResponseWriter, r *http.Request, id string) {
	if h == nil || h.appointments == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	params, ok := h.appointmentParams(w, r, id)
	if !ok {
		return
	}

	detail, err := h.appointments.CompleteAppointment(r.Context(), params)
	if err != nil {
		h.logFailure(r.Context(), "Complete", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, appointmentResponse{Appointment: h.toAppointmentDTO(detail)})
}

func (h *AppointmentHandler) appointmentParams(w http.ResponseWriter, r *http.Request, id string) (application.AppointmentParams, bool) {
	id = strings.TrimSpace(id)
	if id == "" || strings.Contains(id, "/") {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAppointment)
		return application.AppointmentParams{}, false
	}
	principal, _ := PrincipalFromContext(r.Context())
	return application.AppointmentParams{Principal: principal, AppointmentID: id}, true
}

func (h *AppointmentHandler) logFailure(ctx context.Context, operation string, err error) {
	kind := application.ErrorKind(err)
	if kind == "unexpected" {
		return
	}
	handlerLogger(ctx, h.logger, "AppointmentHandler", operation).InfoContext(ctx, "appointment request refused", "error_kind", kind)
}

type appointmentRequest struct {
	AnimalID        string  `json:"animal_id"`
	ClinicID        *string `json:"clinic_id"`
	Datetime        string  `json:"datetime"`
	DurationMinutes *int    `json:"duration_minutes"`
	ServiceType     string  `json:"service_type"`
	Notes           *string `json:"notes"`
}

func (r appointmentRequest) toInput(loc *time.Location) (application.AppointmentInput, error) {
	input := application.AppointmentInput{
		AnimalID:        r.AnimalID,
		ClinicID:        r.ClinicID,
		DurationMinutes: r.DurationMinutes,
		ServiceType:     r.ServiceType,
		Notes:           r.Notes,
	}
	if raw := strings.TrimSpace(r.Datetime); raw != "" {
		instant, err := parseDatetime(raw, loc)
		if err != nil {
			return application.AppointmentInput{}, &application.ValidationError{
				Message:     "Invalid datetime format",
				FieldErrors: map[string]string{"datetime": "must be an ISO-8601 datetime"},
			}
		}
		input.Datetime = instant
	}
	return input, nil
}

var (
	errUnsupportedDatetime = errors.New("unsupported datetime format")

	offsetLayouts = []string{time.RFC3339Nano, time.RFC3339}
	localLayouts  = []string{"2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"}
)

// parseDatetime reads an ISO-8601 datetime. Values without an offset are local to loc.
func parseDatetime(value string, loc *time.Location) (time.Time, error) {
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errUnsupportedDatetime
}

// parseDate reads a calendar date, accepting a full datetime and keeping its date in loc.
func parseDate(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, value, loc); err == nil {
		return t, nil
	}
	t, err := parseDatetime(value, loc)
	if err != nil {
		return time.Time{}, err
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}
