// Package http provides HTTP handlers and middleware for the scheduler API.
//
// The router exposes the following endpoints. Every /api/ route requires an HS256
// bearer token whose claims resolve to an application.Principal (see auth.go).
//   - GET /api/appointments/availability?start_date&end_date: the slot grid between
//     both dates, inclusive. Response: {"period":{"start","end"},"slots":[slotDTO]}.
//     Occupied slots carry appointment_id, clinic_id and the appointment only when the
//     caller may see the booking clinic.
//   - POST /api/appointments: books an appointment. Body: appointmentRequest. Returns
//     201 {"appointment"} or 409 {"error","next_available"} when the slot is taken.
//   - GET /api/appointments/{id}: returns {"appointment"}.
//   - DELETE /api/appointments/{id}: cancels the appointment and returns {"message"}.
//   - POST /api/appointments/{id}/complete: marks the appointment completed.
//   - GET /healthz and GET /readyz: liveness and readiness probes.
//
// Datetimes without an offset are read in the clinic time zone and every datetime
// is rendered as RFC 3339 in that zone. Errors are {"error","errors"?}.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
