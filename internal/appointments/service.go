// Package appointments orchestrates the appointment lifecycle against the
// practice management system: book, confirm, reschedule and cancel, plus the
// cached read paths the booking agent uses to offer slots.
package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/dental-booking-core/internal/availability"
	"github.com/wolfman30/dental-booking-core/internal/cache"
	"github.com/wolfman30/dental-booking-core/internal/directory"
	"github.com/wolfman30/dental-booking-core/internal/interactions"
	"github.com/wolfman30/dental-booking-core/internal/pms"
	"github.com/wolfman30/dental-booking-core/internal/roster"
	"github.com/wolfman30/dental-booking-core/pkg/logging"
)

var tracer = otel.Tracer("dental.internal.appointments")

// Gateway is the subset of the PMS client the service depends on.
type Gateway interface {
	FindPatientsByPhone(ctx context.Context, phone string) ([]pms.Contact, error)
	SearchPatients(ctx context.Context, q pms.ContactQuery) ([]pms.Contact, error)
	GetContact(ctx context.Context, id string) (*pms.Contact, error)
	CreateContact(ctx context.Context, contact pms.Contact) (*pms.Contact, error)
	GetAppointment(ctx context.Context, id string) (*pms.Appointment, error)
	AppointmentsInRange(ctx context.Context, first, last time.Time) ([]pms.Appointment, error)
	AppointmentsByContact(ctx context.Context, contactID string, scheduledOnly bool) ([]pms.Appointment, error)
	CreateAppointment(ctx context.Context, appt pms.Appointment) (*pms.Appointment, error)
	ConfirmAppointment(ctx context.Context, id, notes string) error
	CancelAppointment(ctx context.Context, id, reason string) error
}

// InteractionLogger receives one record per lifecycle operation. It must not
// block.
type InteractionLogger interface {
	Log(ctx context.Context, in interactions.Interaction)
}

// Recorder receives one observation per lifecycle operation.
type Recorder interface {
	ObserveLifecycle(operation, outcome string)
}

// Service is safe for concurrent use.
type Service struct {
	gateway      Gateway
	directory    *directory.Directory
	roster       *roster.Roster
	cache        *cache.Cache
	interactions InteractionLogger
	recorder     Recorder
	logger       *logging.Logger
	now          func() time.Time
	defaultDays  int
	maxDays      int
}

// Option configures a Service.
type Option func(*Service)

// WithCache fronts the read paths with c. The default is a private
// in-memory cache.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithInteractionLogger(l InteractionLogger) Option {
	return func(s *Service) {
		if l != nil {
			s.interactions = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAvailabilityDays sets how many days CheckAvailability covers when the
// caller does not say.
func WithAvailabilityDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.defaultDays = days
		}
	}
}

// NewService wires the orchestrator. The roster must be the one the
// directory was built from.
func NewService(gw Gateway, dir *directory.Directory, r *roster.Roster, opts ...Option) *Service {
	if gw == nil {
		panic("appointments: gateway required")
	}
	if dir == nil || r == nil {
		panic("appointments: directory and roster required")
	}
	s := &Service{
		gateway:      gw,
		directory:    dir,
		roster:       r,
		cache:        cache.New(cache.NewMemoryStore(), cache.Config{}),
		interactions: noopInteractions{},
		logger:       logging.Default(),
		now:          time.Now,
		defaultDays:  3,
		maxDays:      14,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Component("appointments")
	return s
}

type noopInteractions struct{}

func (noopInteractions) Log(context.Context, interactions.Interaction) {}

func (s *Service) location() *time.Location {
	return s.roster.Location()
}

func (s *Service) start(ctx context.Context, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "appointments."+op)
}

// finish closes the span and records the outcome of op.
func (s *Service) finish(span trace.Span, op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(KindOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.End()
	if s.recorder != nil {
		s.recorder.ObserveLifecycle(op, outcome)
	}
}

// logInteraction fills the outcome fields from err and hands the record to
// the interaction logger.
func (s *Service) logInteraction(ctx context.Context, in interactions.Interaction, err error) {
	in.Success = err == nil
	in.Outcome = "success"
	if err != nil {
		in.Outcome = string(KindOf(err))
		in.ErrorMessage = err.Error()
	}
	s.interactions.Log(ctx, in)
}

// upstream classifies a PMS error from op.
func upstream(op string, err error) error {
	switch {
	case errors.Is(err, pms.ErrNotFound):
		return fmt.Errorf("%s: %w: %w", op, ErrResourceNotFound, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrUpstreamUnavailable, err)
	}
}

// liveDay lists the appointments of one practice day straight from the PMS.
// It never reads the cache: booking decisions use current data only.
func (s *Service) liveDay(ctx context.Context, day time.Time) ([]availability.Appointment, error) {
	appts, err := s.gateway.AppointmentsInRange(ctx, day, day)
	if err != nil {
		return nil, err
	}
	engine, bad := s.toEngine(appts)
	if len(bad) > 0 {
		return nil, fmt.Errorf("unreadable appointment times: %w", errors.Join(bad...))
	}
	return engine, nil
}

// checkWindow decides whether w can be booked in operatory, ignoring the
// appointment excludeID. Errors fetching the day yield an Unknown verdict.
func (s *Service) checkWindow(ctx context.Context, w availability.Window, operatory, excludeID string) availability.Verdict {
	sched := s.roster.ScheduleFor(w.Start)
	if sched.Closed {
		return availability.CheckWindow(w, sched, nil)
	}
	appts, err := s.liveDay(ctx, w.Start)
	if err != nil {
		return availability.Unknown(err)
	}
	appts = availability.ForOperatory(appts, operatory)
	if excludeID != "" {
		appts = availability.Without(appts, excludeID)
	}
	return availability.CheckWindow(w, sched, appts)
}

// verdictError maps a non-bookable verdict to the error returned to callers.
func verdictError(op string, w availability.Window, v availability.Verdict) error {
	switch v.State {
	case availability.StateFree:
		return nil
	case availability.StateTaken:
		detail := v.Reason
		if v.Conflict != nil {
			detail = fmt.Sprintf("overlaps appointment %s (%s-%s)", v.Conflict.ID,
				v.Conflict.Window.Start.Format("3:04 PM"), v.Conflict.Window.End.Format("3:04 PM"))
		}
		return fmt.Errorf("%s: %w: %s-%s %s", op, ErrSlotConflict,
			w.Start.Format("2006-01-02 3:04 PM"), w.End.Format("3:04 PM"), detail)
	default:
		cause := v.Err
		if cause == nil {
			cause = errors.New("availability could not be determined")
		}
		return fmt.Errorf("%s: availability unknown: %w: %w", op, ErrUpstreamUnavailable, cause)
	}
}

// toEngine converts PMS appointments to the engine's view. Records whose
// times cannot be read are returned as errors.
func (s *Service) toEngine(appts []pms.Appointment) ([]availability.Appointment, []error) {
	loc := s.location()
	out := make([]availability.Appointment, 0, len(appts))
	var bad []error
	for _, a := range appts {
		start, end, err := a.Times(loc)
		if err != nil {
			bad = append(bad, err)
			continue
		}
		out = append(out, availability.Appointment{
			ID:         a.ID(),
			Window:     availability.Window{Start: start, End: end},
			ProviderID: a.ProviderID(),
			Operatory:  a.OperatoryID(),
			Cancelled:  a.IsCancelled(),
			Completed:  a.Completed,
		})
	}
	return out, bad
}

func (s *Service) notInPast(w availability.Window) error {
	if w.Start.Before(s.now()) {
		return invalidInput("%s is in the past", w.Start.Format("2006-01-02 3:04 PM"))
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func wallTime(t time.Time) string {
	return t.Format(pms.WallTimeLayout)
}
