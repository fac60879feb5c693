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

var (
	errBadRequestBody     = errors.New("Invalid request body")
	errInvalidAppointment = errors.New("Invalid appointment id")
	errMissingBearerToken = errors.New("Authorization token required")
	errInvalidBearerToken = errors.New("Invalid or expired token")
)

const (
	messageAccessDenied       = "Access denied"
	messageNotFound           = "Appointment not found"
	messageSlotOccupied       = "Time slot already occupied"
	messageInvalidTransition  = "Appointment status does not allow this change"
	messageCancelled          = "Appointment cancelled successfully"
	messageInternalError      = "Internal server error"
	messageRateLimited        = "Too many requests"
	messageServiceUnavailable = "Service unavailable"
)

type responder struct {
	logger   *slog.Logger
	location *time.Location
}

func newResponder(logger *slog.Logger, location *time.Location) responder {
	if logger == nil {
		logger = slog.Default()
	}
	if location == nil {
		location = time.UTC
	}
	return responder{logger: logger, location: location}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var conflict *application.ConflictError
	var vErr *application.ValidationError
	switch {
	case errors.As(err, &conflict):
		payload := conflictResponse{Message: messageSlotOccupied}
		if conflict.NextAvailable != nil {
			next := conflict.NextAvailable.In(r.location).Format(time.RFC3339)
			payload.NextAvailable = &next
		}
		r.writeJSON(ctx, w, http.StatusConflict, payload)
	case errors.Is(err, application.ErrConflict):
		r.writeJSON(ctx, w, http.StatusConflict, conflictResponse{Message: messageSlotOccupied})
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{Message: messageAccessDenied})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: messageNotFound})
	case errors.Is(err, application.ErrInvalidTransition):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Message: messageInvalidTransition})
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			Message: vErr.Error(),
			Errors:  vErr.FieldErrors,
		})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err, "error_kind", application.ErrorKind(err))
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: messageInternalError})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	Message string            `json:"error"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type conflictResponse struct {
	Message       string  `json:"error"`
	NextAvailable *string `json:"next_available"`
}

type messageResponse struct {
	Message string `json:"message"`
}
