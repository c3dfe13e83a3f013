// Package scheduling is the single entry point for callers. It checks the
// caller's role, validates input, enforces rules that span the directory,
// the appointment store and the queue engine, and publishes queue events.
package scheduling

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/doctor-queue-scheduling/internal/appointment"
	"github.com/hackgods/doctor-queue-scheduling/internal/calendar"
	"github.com/hackgods/doctor-queue-scheduling/internal/clock"
	"github.com/hackgods/doctor-queue-scheduling/internal/doctor"
	"github.com/hackgods/doctor-queue-scheduling/internal/events"
	"github.com/hackgods/doctor-queue-scheduling/internal/metrics"
	"github.com/hackgods/doctor-queue-scheduling/internal/queue"
)

var tracer = otel.Tracer("clinicqueue/scheduling")

type Service struct {
	doctors      *doctor.Directory
	appointments *appointment.Store
	queue        *queue.Engine

	clock    clock.Clock
	loc      *time.Location
	validate *validator.Validate
	events   events.Publisher
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func NewService(doctors *doctor.Directory, appts *appointment.Store, q *queue.Engine, clk clock.Clock, loc *time.Location, opts ...Option) *Service {
	if loc == nil {
		loc = time.UTC
	}
	s := &Service{
		doctors:      doctors,
		appointments: appts,
		queue:        q,
		clock:        clk,
		loc:          loc,
		validate:     newValidator(),
		events:       events.Discard{},
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func startSpan(ctx context.Context, name string, c Caller) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "scheduling."+name)
	if c.ID != "" {
		span.SetAttributes(
			attribute.String("caller.id", c.ID),
			attribute.String("caller.role", string(c.Role)),
		)
	}
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Today is the current civil date in the clinic's time zone.
func (s *Service) Today() calendar.Date {
	return calendar.DateOf(s.clock.Now().In(s.loc))
}

type Stats struct {
	Doctors       int
	ActiveDoctors int
	Appointments  appointment.Counts
	QueueActive   int
	QueueWaiting  int
}

// Stats is the admin dashboard summary.
func (s *Service) Stats(ctx context.Context, c Caller) (out Stats, err error) {
	_, span := startSpan(ctx, "stats", c)
	defer func() { endSpan(span, err) }()

	if err := c.requireAdmin(); err != nil {
		return Stats{}, err
	}
	out.Doctors, out.ActiveDoctors = s.doctors.Count()
	out.Appointments = s.appointments.Counts()
	out.QueueActive = s.queue.ActiveCount()
	for _, sum := range s.queue.Overview() {
		out.QueueWaiting += sum.WaitingCount
	}
	return out, nil
}

// SweepNoShows marks overdue scheduled appointments as NO_SHOW. It runs on
// behalf of the system, not a caller.
func (s *Service) SweepNoShows(ctx context.Context, grace time.Duration) (n int, err error) {
	ctx, span := startSpan(ctx, "sweep_no_shows", Caller{})
	defer func() { endSpan(span, err) }()

	n, err = s.appointments.SweepNoShows(ctx, grace)
	span.SetAttributes(attribute.Int("swept", n))
	return n, err
}
