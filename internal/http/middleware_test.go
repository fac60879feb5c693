package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/vetclinic-scheduler/internal/application"
)

func TestRequireBearer(t *testing.T) {
	t.Parallel()

	verifier := verifierStub{principals: map[string]application.Principal{
		"good": {UserID: "staff-1", Role: application.RoleClinicStaff},
	}}

	var seen application.Principal
	handler := RequireBearer(verifier, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			t.Errorf("expected principal in context")
		}
		seen = principal
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name    string
		header  string
		status  int
		message string
	}{
		{name: "missing header", status: http.StatusUnauthorized, message: "Authorization token required"},
		{name: "wrong scheme", header: "Basic good", status: http.StatusUnauthorized, message: "Authorization token required"},
		{name: "rejected token", header: "Bearer bad", status: http.StatusUnauthorized, message: "Invalid or expired token"},
		{name: "accepted token", header: "Bearer good", status: http.StatusNoContent},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/appointments/availability", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, recorder.Code)
		}
		if tc.message != "" {
			var payload errorResponse
			if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
				t.Fatalf("%s: decode: %v", tc.name, err)
			}
			if payload.Message != tc.message {
				t.Fatalf("%s: expected %q, got %q", tc.name, tc.message, payload.Message)
			}
		}
	}
	if seen.UserID != "staff-1" {
		t.Fatalf("expected downstream handler to see staff-1, got %+v", seen)
	}
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var requestID string
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = RequestIDFromContext(r.Context())
		if LoggerFromContext(r.Context()) == nil {
			t.Errorf("expected request scoped logger")
		}
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/appointments/appt-1", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if requestID != "req-42" || recorder.Header().Get(RequestIDHeader) != "req-42" {
		t.Fatalf("expected incoming request id to propagate, got %q / %q", requestID, recorder.Header().Get(RequestIDHeader))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var completed map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &completed); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if completed["msg"] != "request completed" || completed["status"] != float64(http.StatusTeapot) || completed["request_id"] != "req-42" {
		t.Fatalf("unexpected completion log %v", completed)
	}
}

func TestRequestLogger_GeneratesRequestID(t *testing.T) {
	t.Parallel()

	handler := RequestLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	a, b := first.Header().Get(RequestIDHeader), second.Header().Get(RequestIDHeader)
	if a == "" || b == "" || a == b {
		t.Fatalf("expected distinct generated request ids, got %q and %q", a, b)
	}
}

func TestRecover(t *testing.T) {
	t.Parallel()

	handler := Recover(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
}
