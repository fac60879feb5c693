package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/vetclinic-scheduler/internal/config"
	httptransport "github.com/example/vetclinic-scheduler/internal/http"
	"github.com/example/vetclinic-scheduler/internal/persistence/sqlite/migration"
	"github.com/example/vetclinic-scheduler/internal/testfixtures"
)

const testSecret = "integration-secret"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(dsn string) config.Config {
	return config.Config{
		StorageDriver:         config.StorageSQLite,
		SQLiteDSN:             dsn,
		ShutdownTimeout:       time.Second,
		JWTSecret:             testSecret,
		Location:              time.UTC,
		ConflictLookback:      time.Hour,
		NextAvailableAttempts: 20,
		MaxAvailabilityDays:   62,
		AvailabilityCacheTTL:  time.Second,
		RateLimit:             100,
		RateLimitWindow:       time.Minute,
		RateLimitFailOpen:     true,
	}
}

func TestParseSeed(t *testing.T) {
	t.Parallel()

	doc := `{
		"clinics": [{"id": "clinic-1", "name": "Centro"}],
		"tutors": [{"id": "tutor-1", "name": "Maria", "phone": "+55 11 99999-0000"}],
		"animals": [{"id": "animal-1", "tutor_id": "tutor-1", "name": "Rex", "species": "dog", "birth_date": "2020-03-01", "weight_kg": 12.5}]
	}`
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	snapshot, err := parseSeed(strings.NewReader(doc), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshot.Clinics) != 1 || len(snapshot.Tutors) != 1 || len(snapshot.Animals) != 1 {
		t.Fatalf("unexpected snapshot sizes: %+v", snapshot)
	}
	if !snapshot.Clinics[0].CreatedAt.Equal(now) {
		t.Fatalf("expected records stamped with now, got %s", snapshot.Clinics[0].CreatedAt)
	}
	if snapshot.Tutors[0].Phone == nil || *snapshot.Tutors[0].Phone != "+55 11 99999-0000" {
		t.Fatalf("expected tutor phone, got %v", snapshot.Tutors[0].Phone)
	}
	animal := snapshot.Animals[0]
	if animal.BirthDate == nil || animal.BirthDate.Format(time.DateOnly) != "2020-03-01" {
		t.Fatalf("expected birth date, got %v", animal.BirthDate)
	}
	if animal.WeightKg == nil || *animal.WeightKg != 12.5 {
		t.Fatalf("expected weight, got %v", animal.WeightKg)
	}
}

func TestParseSeed_Rejects(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"malformed json":     `{"clinics": [`,
		"unknown field":      `{"rooms": []}`,
		"clinic without id":  `{"clinics": [{"name": "Centro"}]}`,
		"animal sans tutor":  `{"animals": [{"id": "a", "name": "Rex", "species": "dog"}]}`,
		"invalid birth date": `{"animals": [{"id": "a", "tutor_id": "t", "name": "Rex", "species": "dog", "birth_date": "01/03/2020"}]}`,
	}
	for name, doc := range cases {
		if _, err := parseSeed(strings.NewReader(doc), time.Now()); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestTokenOptions_Claims(t *testing.T) {
	t.Parallel()

	now := time.Now()
	claims, err := tokenOptions{subject: "staff-1", role: "Clinic_Staff", clinicID: "clinic-1", ttl: time.Hour}.claims(now, "scheduler", "api")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token, err := httptransport.SignToken([]byte(testSecret), claims)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	verifier, err := httptransport.NewJWTVerifier(httptransport.JWTConfig{Secret: []byte(testSecret), Issuer: "scheduler", Audience: "api"})
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	principal, err := verifier.VerifyToken(context.Background(), token)
	if err != nil {
		t.Fatalf("expected minted token to verify, got %v", err)
	}
	if principal.UserID != "staff-1" || principal.ClinicID == nil || *principal.ClinicID != "clinic-1" {
		t.Fatalf("unexpected principal %+v", principal)
	}

	for name, opts := range map[string]tokenOptions{
		"unknown role": {subject: "u", role: "admin", ttl: time.Hour},
		"no subject":   {role: "owner", ttl: time.Hour},
		"no ttl":       {subject: "u", role: "owner"},
	} {
		if _, err := opts.claims(now, "", ""); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestOpenStore_SQLiteMigrateAndStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := testConfig(filepath.Join(t.TempDir(), "scheduler.db"))

	err := withStore(ctx, cfg, discardLogger(), func(st store) error {
		before, err := st.MigrationStatus(ctx)
		if err != nil {
			return err
		}
		if len(before.Pending) == 0 {
			t.Fatalf("expected pending migrations on a fresh database")
		}
		if err := st.Migrate(ctx); err != nil {
			return err
		}
		after, err := st.MigrationStatus(ctx)
		if err != nil {
			return err
		}
		if len(after.Pending) != 0 || after.CurrentVersion == "" {
			t.Fatalf("expected fully migrated database, got %+v", after)
		}

		var out bytes.Buffer
		printMigrationStatus(&out, after)
		if !strings.Contains(out.String(), "applied") || !strings.Contains(out.String(), after.CurrentVersion) {
			t.Fatalf("unexpected status output:\n%s", out.String())
		}
		return st.Ping(ctx)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	t.Parallel()

	cfg := testConfig("unused")
	cfg.StorageDriver = "mysql"
	if _, err := openStore(context.Background(), cfg, discardLogger()); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestPrintMigrationStatus_Empty(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	printMigrationStatus(&out, migrationStatusFixture())
	if !strings.Contains(out.String(), "Current schema version: none") {
		t.Fatalf("expected empty version marker, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "001") || !strings.Contains(out.String(), "pending") {
		t.Fatalf("expected pending row, got:\n%s", out.String())
	}
}

func migrationStatusFixture() migration.Status {
	return migration.Status{
		Pending: []migration.Migration{{Version: "001", Description: "initial schema"}},
	}
}

func TestNewApp_EndToEnd(t *testing.T) {
	t.Parallel()

	harness := testfixtures.NewSQLiteHarness(t)
	harness.Seed(t, testfixtures.NewDirectoryFixture())

	wired, err := newApp(testConfig("unused"), discardLogger(), harness.Store)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	t.Cleanup(wired.close)

	server := httptest.NewServer(wired.handler)
	t.Cleanup(server.Close)

	owner := mintToken(t, tokenOptions{subject: "owner-1", role: "owner", ttl: time.Hour})
	otherStaff := mintToken(t, tokenOptions{subject: "staff-2", role: "clinic_staff", clinicID: "clinic-2", ttl: time.Hour})

	if resp := call(t, server, http.MethodGet, "/healthz", "", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", resp.StatusCode)
	}
	if resp := call(t, server, http.MethodGet, "/readyz", "", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected readyz 200, got %d", resp.StatusCode)
	}

	body := `{"animal_id":"animal-1","clinic_id":"clinic-1","datetime":"2030-06-03T10:00:00Z","service_type":"consulta"}`
	resp := call(t, server, http.MethodPost, "/api/appointments", "", body)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	if resp.Header.Get(httptransport.RequestIDHeader) == "" {
		t.Fatalf("expected request id header on every response")
	}

	resp = call(t, server, http.MethodPost, "/api/appointments", owner, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		Appointment struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"appointment"`
	}
	decodeBody(t, resp, &created)
	if created.Appointment.ID == "" || created.Appointment.Status != "scheduled" {
		t.Fatalf("unexpected created appointment %+v", created.Appointment)
	}

	resp = call(t, server, http.MethodPost, "/api/appointments", owner, body)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for an occupied slot, got %d", resp.StatusCode)
	}
	var conflict struct {
		Error         string  `json:"error"`
		NextAvailable *string `json:"next_available"`
	}
	decodeBody(t, resp, &conflict)
	if conflict.NextAvailable == nil {
		t.Fatalf("expected next_available suggestion, got %+v", conflict)
	}

	resp = call(t, server, http.MethodGet, "/api/appointments/availability?start_date=2030-06-03&end_date=2030-06-03", otherStaff, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected availability 200, got %d", resp.StatusCode)
	}
	var availability struct {
		Slots []struct {
			Datetime      string  `json:"datetime"`
			Available     bool    `json:"available"`
			AppointmentID *string `json:"appointment_id"`
		} `json:"slots"`
	}
	decodeBody(t, resp, &availability)
	if len(availability.Slots) != 20 {
		t.Fatalf("expected 20 slots, got %d", len(availability.Slots))
	}
	booked := availability.Slots[4]
	if booked.Available || booked.AppointmentID != nil {
		t.Fatalf("expected occupied redacted 10:00 slot for another clinic, got %+v", booked)
	}

	path := "/api/appointments/" + created.Appointment.ID
	if resp := call(t, server, http.MethodGet, path, otherStaff, ""); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for another clinic, got %d", resp.StatusCode)
	}
	if resp := call(t, server, http.MethodGet, path, owner, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for the owner, got %d", resp.StatusCode)
	}
	if resp := call(t, server, http.MethodDelete, path, owner, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected cancel 200, got %d", resp.StatusCode)
	}
	if resp := call(t, server, http.MethodPost, path+"/complete", owner, ""); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected completing a cancelled appointment to conflict, got %d", resp.StatusCode)
	}

	// The freed slot can be booked again.
	if resp := call(t, server, http.MethodPost, "/api/appointments", owner, body); resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected rebooking the cancelled slot to succeed, got %d", resp.StatusCode)
	}
}

func mintToken(t *testing.T, opts tokenOptions) string {
	t.Helper()
	claims, err := opts.claims(time.Now(), "", "")
	if err != nil {
		t.Fatalf("claims: %v", err)
	}
	token, err := httptransport.SignToken([]byte(testSecret), claims)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func call(t *testing.T, server *httptest.Server, method, path, token, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
