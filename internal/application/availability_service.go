package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/example/vetclinic-scheduler/internal/scheduler"
)

// DefaultMaxAvailabilityDays caps the number of calendar days one query may span.
const DefaultMaxAvailabilityDays = 62

// AvailabilityServiceOptions tunes the availability query.
type AvailabilityServiceOptions struct {
	Grid         scheduler.Grid
	Location     *time.Location
	MaxDays      int
	CacheTTL     time.Duration
	CacheEntries int
	Logger       *slog.Logger
}

// AvailabilityService lists the slot grid annotated with occupancy and filtered by the
// caller's visibility. Reads take no schedule lock.
type AvailabilityService struct {
	appointments AppointmentReader
	directory    Directory
	grid         scheduler.Grid
	location     *time.Location
	maxDays      int
	cache        *occupancyCache
	loads        singleflight.Group
	now          func() time.Time
	logger       *slog.Logger
}

// NewAvailabilityService constructs the service for the default grid in UTC.
func NewAvailabilityService(appointments AppointmentReader, directory Directory, now func() time.Time) *AvailabilityService {
	return NewAvailabilityServiceWithOptions(appointments, directory, now, AvailabilityServiceOptions{})
}

// NewAvailabilityServiceWithOptions constructs the service with explicit options.
func NewAvailabilityServiceWithOptions(appointments AppointmentReader, directory Directory, now func() time.Time, opts AvailabilityServiceOptions) *AvailabilityService {
	if now == nil {
		now = time.Now
	}
	if opts.Grid == (scheduler.Grid{}) {
		opts.Grid = scheduler.DefaultGrid()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = DefaultMaxAvailabilityDays
	}
	return &AvailabilityService{
		appointments: appointments,
		directory:    directory,
		grid:         opts.Grid,
		location:     opts.Location,
		maxDays:      opts.MaxDays,
		cache:        newOccupancyCache(opts.CacheTTL, opts.CacheEntries, now),
		now:          now,
		logger:       defaultLogger(opts.Logger),
	}
}

// Location returns the clinic time zone used to build the grid.
func (s *AvailabilityService) Location() *time.Location {
	if s == nil || s.location == nil {
		return time.UTC
	}
	return s.location
}

// InvalidateOccupancy drops every cached occupancy range.
func (s *AvailabilityService) InvalidateOccupancy() {
	if s == nil {
		return
	}
	s.cache.Invalidate()
}

// GetAvailability returns every slot between the two calendar dates, inclusive.
func (s *AvailabilityService) GetAvailability(ctx context.Context, params AvailabilityParams) (result Availability, err error) {
	if s == nil {
		err = fmt.Errorf("AvailabilityService is nil")
		return
	}
	if s.appointments == nil {
		err = fmt.Errorf("appointment repository not configured")
		return
	}

	ctx, span := startSpan(ctx, "AvailabilityService.GetAvailability",
		attribute.String("period.start", params.StartDate.Format(time.DateOnly)),
		attribute.String("period.end", params.EndDate.Format(time.DateOnly)),
	)
	defer func() { endSpan(span, err) }()

	logger := s.loggerWith(ctx, "GetAvailability",
		"principal_id", params.Principal.UserID,
		"start_date", params.StartDate.Format(time.DateOnly),
		"end_date", params.EndDate.Format(time.DateOnly),
	)
	defer func() {
		if err != nil {
			if expectedFailure(err) {
				logger.InfoContext(ctx, "availability rejected", "error_kind", ErrorKind(err))
				return
			}
			logger.ErrorContext(ctx, "failed to compute availability", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "availability computed", "slots", len(result.Slots))
	}()

	if vErr := s.validatePeriod(params); vErr.HasErrors() {
		err = vErr
		return
	}

	result = Availability{PeriodStart: params.StartDate, PeriodEnd: params.EndDate, Slots: []AvailabilitySlot{}}
	candidates := s.grid.Slots(params.StartDate, params.EndDate, s.location)
	if len(candidates) == 0 {
		return
	}

	filter := AppointmentFilter{
		From: candidates[0],
		To:   candidates[len(candidates)-1].Add(time.Second),
	}
	var appointments []Appointment
	appointments, err = s.occupancy(ctx, filter)
	if err != nil {
		return
	}

	byID := make(map[string]Appointment, len(appointments))
	for _, appointment := range appointments {
		byID[appointment.ID] = appointment
	}

	annotated := scheduler.Redact(scheduler.Annotate(candidates, toBookings(appointments)), params.Principal)
	loader := newDetailLoader(s.directory)
	slots := make([]AvailabilitySlot, 0, len(annotated))
	for _, slot := range annotated {
		out := AvailabilitySlot{Datetime: slot.Start, Available: slot.Available}
		if slot.Disclosed {
			appointmentID := slot.AppointmentID
			clinicID := slot.ClinicID
			out.AppointmentID = &appointmentID
			out.ClinicID = &clinicID

			var detail AppointmentDetail
			detail, err = loader.load(ctx, byID[slot.AppointmentID])
			if err != nil {
				return
			}
			out.Appointment = &detail
		}
		slots = append(slots, out)
	}
	result.Slots = slots
	return
}

func (s *AvailabilityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AvailabilityService", operation, attrs...)
}

// occupancy loads the active appointments anchored in filter, coalescing identical
// concurrent loads and serving repeats from the cache.
func (s *AvailabilityService) occupancy(ctx context.Context, filter AppointmentFilter) ([]Appointment, error) {
	key := occupancyCacheKey(filter)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	generation := s.cache.Generation()
	// The shared load outlives any single waiter's cancellation.
	loadCtx := context.WithoutCancel(ctx)
	value, err, _ := s.loads.Do(key, func() (any, error) {
		appointments, err := s.appointments.ListAppointments(loadCtx, filter)
		if err != nil {
			return nil, fmt.Errorf("list appointments: %w", err)
		}
		s.cache.Store(key, generation, appointments)
		return appointments, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneAppointments(value.([]Appointment)), nil
}

func (s *AvailabilityService) validatePeriod(params AvailabilityParams) *ValidationError {
	vErr := &ValidationError{}
	if params.StartDate.IsZero() {
		vErr.add("start_date", "start_date is required")
	}
	if params.EndDate.IsZero() {
		vErr.add("end_date", "end_date is required")
	}
	if vErr.HasErrors() {
		vErr.Message = "start_date and end_date required"
		return vErr
	}

	start := time.Date(params.StartDate.Year(), params.StartDate.Month(), params.StartDate.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(params.EndDate.Year(), params.EndDate.Month(), params.EndDate.Day(), 0, 0, 0, 0, time.UTC)
	if days := int(end.Sub(start).Hours()/24) + 1; days > s.maxDays {
		vErr.Message = fmt.Sprintf("Date range exceeds %d days", s.maxDays)
		vErr.add("end_date", fmt.Sprintf("range must not exceed %d days", s.maxDays))
	}
	return vErr
}
