package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/vetclinic-scheduler/internal/application"
	"github.com/example/vetclinic-scheduler/internal/scheduler"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("appt"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("appt")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// AppointmentServiceDeps captures dependencies for constructing an appointment service.
type AppointmentServiceDeps struct {
	Appointments application.AppointmentRepository
	Directory    application.Directory
	Publisher    application.EventPublisher
	Invalidator  application.OccupancyInvalidator
	// Policy defaults to the 60 minute lookback.
	Policy       *scheduler.ConflictPolicy
	IDGenerator  func() string
	Now          func() time.Time
	Logger       *slog.Logger
}

// NewAppointmentService builds the lifecycle manager using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewAppointmentService(deps AppointmentServiceDeps) *application.AppointmentService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	opts := application.AppointmentServiceOptions{
		Policy:      scheduler.DefaultConflictPolicy(),
		Publisher:   deps.Publisher,
		Invalidator: deps.Invalidator,
		Logger:      deps.Logger,
	}
	if deps.Policy != nil {
		opts.Policy = *deps.Policy
	}
	return application.NewAppointmentServiceWithOptions(deps.Appointments, deps.Directory, idGen, now, opts)
}

// AvailabilityServiceDeps captures dependencies for constructing an availability service.
type AvailabilityServiceDeps struct {
	Appointments application.AppointmentReader
	Directory    application.Directory
	Location     *time.Location
	CacheTTL     time.Duration
	Now          func() time.Time
	Logger       *slog.Logger
}

// NewAvailabilityService builds the availability query service.
func (f *ServiceFactory) NewAvailabilityService(deps AvailabilityServiceDeps) *application.AvailabilityService {
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewAvailabilityServiceWithOptions(deps.Appointments, deps.Directory, now, application.AvailabilityServiceOptions{
		Location: deps.Location,
		CacheTTL: deps.CacheTTL,
		Logger:   deps.Logger,
	})
}
