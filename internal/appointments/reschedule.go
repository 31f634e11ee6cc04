package appointments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/dental-booking-core/internal/availability"
	"github.com/wolfman30/dental-booking-core/internal/cache"
	"github.com/wolfman30/dental-booking-core/internal/directory"
	"github.com/wolfman30/dental-booking-core/internal/interactions"
	"github.com/wolfman30/dental-booking-core/internal/pms"
)

// RescheduleRequest moves an appointment to a new window.
type RescheduleRequest struct {
	AppointmentID string
	Date          string // YYYY-MM-DD
	StartTime     string
	// EndTime is optional; the original duration is kept when empty.
	EndTime   string
	NewDoctor string
	Operatory string
	Notes     string
}

// ProviderChange says why the replacement has the provider it has.
type ProviderChange string

const (
	ProviderRequested ProviderChange = "requested" // explicit new doctor or hygienist
	ProviderRostered  ProviderChange = "rostered"  // date changed, roster doctor for the new date
	ProviderKept      ProviderChange = "kept"
)

// Saga steps, in order.
const (
	StepFetch    = "fetch"
	StepResolve  = "resolve"
	StepPrecheck = "precheck"
	StepCancel   = "cancel"
	StepCreate   = "create"
)

// Rescheduling is the result of a completed reschedule.
type Rescheduling struct {
	OriginalID       string              `json:"original_appointment_id"`
	NewAppointmentID string              `json:"new_appointment_id"`
	ContactID        string              `json:"contact_id"`
	ProviderID       string              `json:"provider_id"`
	ProviderName     string              `json:"provider_name"`
	OperatoryID      string              `json:"operatory_id"`
	ProviderChange   ProviderChange      `json:"provider_change"`
	Window           availability.Window `json:"-"`
	Steps            []string            `json:"steps"`
	State            State               `json:"state"`
}

// Reschedule moves an appointment. The PMS cannot move an appointment in
// place, so this runs as a saga: fetch the original, resolve the provider
// and operatory, check the new window, cancel the original, create the
// replacement. A failure before the cancel leaves everything untouched. A
// failure of the create after a successful cancel returns a
// *PartialRescheduleError and is never retried.
func (s *Service) Reschedule(ctx context.Context, req RescheduleRequest) (result *Rescheduling, err error) {
	ctx, span := s.start(ctx, "reschedule")
	log := interactions.Interaction{
		Type:          interactions.TypeRescheduling,
		AppointmentID: req.AppointmentID,
		Reason:        req.Notes,
		Details: map[string]any{
			"original_appointment_id": req.AppointmentID,
			"new_date":                req.Date,
			"start_time":              req.StartTime,
			"end_time":                req.EndTime,
			"new_doctor":              req.NewDoctor,
		},
	}
	var steps []string
	defer func() {
		log.Details["steps"] = steps
		if result != nil {
			log.Details["new_appointment_id"] = result.NewAppointmentID
			log.Details["provider_change"] = string(result.ProviderChange)
			log.Doctor = result.ProviderName
		}
		s.logInteraction(ctx, log, err)
		s.finish(span, "reschedule", err)
	}()

	id := strings.TrimSpace(req.AppointmentID)
	if id == "" {
		return nil, fmt.Errorf("reschedule: %w", invalidInput("appointment id is required"))
	}
	if strings.TrimSpace(req.Date) == "" || strings.TrimSpace(req.StartTime) == "" {
		return nil, fmt.Errorf("reschedule: %w", invalidInput("date and start time are required"))
	}
	// Parse early so bad input never reaches the PMS.
	if _, err := requestedWindow(req.Date, req.StartTime, req.EndTime, time.Minute, s.location()); err != nil {
		return nil, fmt.Errorf("reschedule: %w", err)
	}
	span.SetAttributes(attribute.String("dental.appointment_id", id))

	// (a) fetch the original, live.
	original, err := s.gateway.GetAppointment(ctx, id)
	if err != nil {
		return nil, upstream("reschedule: fetch original", err)
	}
	steps = append(steps, StepFetch)
	log.ContactID = original.ContactID
	log.Service = original.ShortDescription
	state := StateOf(*original)
	if !CanTransition(state, StateRescheduled) {
		return nil, fmt.Errorf("reschedule: appointment %s is %s: %w", original.ID(), state, ErrInvalidTransition)
	}
	origStart, origEnd, err := original.Times(s.location())
	if err != nil {
		return nil, fmt.Errorf("reschedule: original appointment times: %w: %w", ErrUpstreamUnavailable, err)
	}
	log.Details["original_date"] = origStart.Format(dateLayout)

	window, err := requestedWindow(req.Date, req.StartTime, req.EndTime, origEnd.Sub(origStart), s.location())
	if err != nil {
		return nil, fmt.Errorf("reschedule: %w", err)
	}
	if err := s.notInPast(window); err != nil {
		return nil, fmt.Errorf("reschedule: %w", err)
	}

	// (b) resolve provider and operatory.
	binding, change, err := s.bindForReschedule(*original, origStart, window.Start, req)
	if err != nil {
		return nil, fmt.Errorf("reschedule: %w", err)
	}
	steps = append(steps, StepResolve)
	span.SetAttributes(
		attribute.String("dental.provider_id", binding.ProviderID),
		attribute.String("dental.operatory_id", binding.OperatoryID),
		attribute.String("dental.provider_change", string(change)),
	)

	// The original still occupies its slot until cancelled, so it is
	// excluded from the check.
	verdict := s.checkWindow(ctx, window, binding.OperatoryID, original.ID())
	if err := verdictError("reschedule", window, verdict); err != nil {
		return nil, err
	}
	steps = append(steps, StepPrecheck)

	// (c) cancel the original.
	reason := "Rescheduled to " + window.Start.Format("2006-01-02 3:04 PM")
	if _, err := s.cancelUpstream(ctx, original.ID(), reason); err != nil {
		return nil, upstream("reschedule: cancel original", err)
	}
	steps = append(steps, StepCancel)
	s.forget(ctx, cache.AppointmentKey(original.ID()))
	s.forgetDerived(ctx, *original)

	// (d) create the replacement.
	description := strings.TrimSpace(req.Notes)
	if description == "" {
		description = original.ShortDescription
	}
	if description == "" {
		description = "Rescheduled appointment"
	}
	replacement := pms.Appointment{
		ContactID:        original.ContactID,
		Contact:          original.Contact,
		WallStartTime:    wallTime(window.Start),
		WallEndTime:      wallTime(window.End),
		Providers:        []pms.ResourceRef{pms.ProviderRef(binding.ProviderID, binding.DisplayName)},
		Resources:        []pms.ResourceRef{pms.OperatoryRef(binding.OperatoryID)},
		Operatory:        pms.OperatoryRef(binding.OperatoryID).Name,
		ShortDescription: description,
		Notes:            original.Notes,
	}
	created, err := s.gateway.CreateAppointment(ctx, replacement)
	if err != nil {
		s.logger.Error("reschedule left patient without appointment",
			"original_appointment_id", original.ID(),
			"contact_id", original.ContactID,
			"attempted_start", window.Start.Format(time.RFC3339),
			"attempted_end", window.End.Format(time.RFC3339),
			"provider_id", binding.ProviderID,
			"operatory_id", binding.OperatoryID,
			"error", err,
		)
		return nil, &PartialRescheduleError{
			OriginalID:  original.Name,
			ContactID:   original.ContactID,
			Attempted:   window,
			ProviderID:  binding.ProviderID,
			OperatoryID: binding.OperatoryID,
			Err:         upstream("reschedule: create replacement", err),
		}
	}
	steps = append(steps, StepCreate)
	s.recordAppointment(ctx, *created)

	s.logger.Info("appointment rescheduled",
		"original_appointment_id", original.ID(),
		"new_appointment_id", created.ID(),
		"provider_id", binding.ProviderID,
		"provider_change", string(change),
		"start", window.Start.Format(time.RFC3339),
	)
	return &Rescheduling{
		OriginalID:       original.Name,
		NewAppointmentID: created.Name,
		ContactID:        original.ContactID,
		ProviderID:       binding.ProviderID,
		ProviderName:     binding.DisplayName,
		OperatoryID:      binding.OperatoryID,
		ProviderChange:   change,
		Window:           window,
		Steps:            steps,
		State:            StateBooked,
	}, nil
}

// RescheduleByPhone reschedules the next upcoming appointment of the patient
// with the given phone number.
func (s *Service) RescheduleByPhone(ctx context.Context, phone string, req RescheduleRequest) (*Rescheduling, error) {
	appt, err := s.nextAppointmentForPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("reschedule by phone: %w", err)
	}
	req.AppointmentID = appt.Name
	return s.Reschedule(ctx, req)
}

// bindForReschedule picks the replacement's provider: an explicitly
// requested one, else the roster doctor when the date changed, else the
// original provider.
func (s *Service) bindForReschedule(original pms.Appointment, origStart, newStart time.Time, req RescheduleRequest) (directory.Binding, ProviderChange, error) {
	if strings.TrimSpace(req.NewDoctor) != "" {
		res := s.directory.ResolveProvider(req.NewDoctor, newStart)
		b, err := s.directory.Bind(res, req.Operatory)
		return b, ProviderRequested, resourceErr(err)
	}
	if !sameDay(origStart, newStart) {
		if res, err := s.directory.ProviderForDate(newStart); err == nil {
			b, err := s.directory.Bind(res, req.Operatory)
			return b, ProviderRostered, resourceErr(err)
		}
		s.logger.Warn("no doctor rostered for new date, keeping original provider",
			"appointment_id", original.ID(), "date", newStart.Format(dateLayout))
	}

	providerID := original.ProviderID()
	if providerID == "" {
		res := s.directory.ResolveProvider("", newStart)
		b, err := s.directory.Bind(res, req.Operatory)
		return b, ProviderKept, resourceErr(err)
	}
	res := directory.Resolution{ProviderID: providerID, DisplayName: providerName(original)}
	if p, ok := s.roster.Provider(providerID); ok {
		res.DisplayName = p.DisplayName
		res.Kind = p.Kind
	}
	operatory := strings.TrimSpace(req.Operatory)
	if operatory == "" {
		operatory = original.OperatoryID()
	}
	if operatory == "" {
		b, err := s.directory.Bind(res, "")
		return b, ProviderKept, resourceErr(err)
	}
	return directory.Binding{Resolution: res, OperatoryID: operatory, OperatoryOverridden: req.Operatory != ""}, ProviderKept, nil
}
