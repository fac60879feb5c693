package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/vetclinic-scheduler/internal/application"
)

type appointmentServiceStub struct {
	createFn   func(ctx context.Context, params application.CreateAppointmentParams) (application.AppointmentDetail, error)
	getFn      func(ctx context.Context, params application.AppointmentParams) (application.AppointmentDetail, error)
	cancelFn   func(ctx context.Context, params application.AppointmentParams) (application.Appointment, error)
	completeFn func(ctx context.Context, params application.AppointmentParams) (application.AppointmentDetail, error)
}

func (s *appointmentServiceStub) CreateAppointment(ctx context.Context, params application.CreateAppointmentParams) (application.AppointmentDetail, error) {
	return s.createFn(ctx, params)
}

func (s *appointmentServiceStub) GetAppointment(ctx context.Context, params application.AppointmentParams) (application.AppointmentDetail, error) {
	return s.getFn(ctx, params)
}

func (s *appointmentServiceStub) CancelAppointment(ctx context.Context, params application.AppointmentParams) (application.Appointment, error) {
	return s.cancelFn(ctx, params)
}

func (s *appointmentServiceStub) CompleteAppointment(ctx context.Context, params application.AppointmentParams) (application.AppointmentDetail, error) {
	return s.completeFn(ctx, params)
}

type availabilityServiceStub struct {
	fn func(ctx context.Context, params application.AvailabilityParams) (application.Availability, error)
}

func (s *availabilityServiceStub) GetAvailability(ctx context.Context, params application.AvailabilityParams) (application.Availability, error) {
	return s.fn(ctx, params)
}

type verifierStub struct {
	principals map[string]application.Principal
}

func (v verifierStub) VerifyToken(_ context.Context, token string) (application.Principal, error) {
	principal, ok := v.principals[token]
	if !ok {
		return application.Principal{}, ErrInvalidToken
	}
	return principal, nil
}

var clinicZone = time.FixedZone("BRT", -3*60*60)

func stringPtr(value string) *string {
	return &value
}

func sampleDetail(loc *time.Location) application.AppointmentDetail {
	birth := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	weight := 12.5
	return application.AppointmentDetail{
		Appointment: application.Appointment{
			ID:              "appt-1",
			ClinicID:        "clinic-1",
			AnimalID:        "animal-1",
			Datetime:        time.Date(2025, 6, 2, 10, 0, 0, 0, loc),
			DurationMinutes: 30,
			ServiceType:     "consulta",
			Status:          application.AppointmentStatusScheduled,
			CreatedBy:       "staff-1",
			CreatedAt:       time.Date(2025, 6, 1, 9, 0, 0, 0, loc),
			UpdatedAt:       time.Date(2025, 6, 1, 9, 0, 0, 0, loc),
		},
		Clinic: &application.Clinic{ID: "clinic-1", Name: "Centro"},
		Animal: &application.Animal{
			ID:        "animal-1",
			TutorID:   "tutor-1",
			Name:      "Rex",
			Species:   "dog",
			BirthDate: &birth,
			WeightKg:  &weight,
		},
		Tutor: &application.Tutor{ID: "tutor-1", Name: "Maria", Phone: stringPtr("+55 11 99999-0000")},
	}
}

func newTestHandler(t *testing.T, appointments appointmentService, availability availabilityService) *AppointmentHandler {
	t.Helper()
	h := NewAppointmentHandler(appointments, availability, clinicZone, nil)
	h.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return h
}

func newTestRouter(t *testing.T, h *AppointmentHandler) http.Handler {
	t.Helper()
	principals := map[string]application.Principal{
		"owner-token": {UserID: "owner-1", Role: application.RoleOwner},
		"staff-token": {UserID: "staff-1", Role: application.RoleClinicStaff, ClinicID: stringPtr("clinic-1")},
	}
	return NewRouter(RouterConfig{
		Appointments: h,
		Health:       NewHealthHandler(nil, time.Second, nil),
		Auth:         RequireBearer(verifierStub{principals: principals}, nil),
	})
}

func doRequest(t *testing.T, handler http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}
