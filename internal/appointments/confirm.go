package appointments

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/dental-booking-core/internal/cache"
	"github.com/wolfman30/dental-booking-core/internal/interactions"
	"github.com/wolfman30/dental-booking-core/internal/pms"
)

// Confirmation is the result of Confirm. Confirming an already confirmed
// appointment yields the same result without a second PMS mutation.
type Confirmation struct {
	AppointmentID string `json:"appointment_id"`
	ContactID     string `json:"contact_id"`
	State         State  `json:"state"`
}

// Confirm marks an appointment confirmed. Notes annotate the confirmation
// and do not change state.
func (s *Service) Confirm(ctx context.Context, appointmentID, notes string) (result *Confirmation, err error) {
	ctx, span := s.start(ctx, "confirm")
	log := interactions.Interaction{
		Type:          interactions.TypeConfirmation,
		AppointmentID: appointmentID,
		Reason:        notes,
		Details:       map[string]any{},
	}
	defer func() {
		s.logInteraction(ctx, log, err)
		s.finish(span, "confirm", err)
	}()

	appointmentID = strings.TrimSpace(appointmentID)
	if appointmentID == "" {
		return nil, fmt.Errorf("confirm: %w", invalidInput("appointment id is required"))
	}
	span.SetAttributes(attribute.String("dental.appointment_id", appointmentID))

	// State is read live so a stale cached copy cannot hide a cancellation.
	appt, err := s.gateway.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, upstream("confirm", err)
	}
	log.ContactID = appt.ContactID
	log.Doctor = providerName(*appt)
	log.Service = appt.ShortDescription
	result = &Confirmation{AppointmentID: appt.Name, ContactID: appt.ContactID, State: StateConfirmed}

	state := StateOf(*appt)
	if state == StateConfirmed {
		log.Details["already_confirmed"] = true
		s.logger.Info("appointment already confirmed", "appointment_id", appt.ID())
		return result, nil
	}
	if !CanTransition(state, StateConfirmed) {
		return nil, fmt.Errorf("confirm: appointment %s is %s: %w", appt.ID(), state, ErrInvalidTransition)
	}

	if err := s.gateway.ConfirmAppointment(ctx, appt.ID(), notes); err != nil {
		return nil, upstream("confirm", err)
	}
	appt.Confirmed = true
	s.remember(ctx, cache.AppointmentKey(appt.ID()), cache.ClassRecord, *appt)
	s.logger.Info("appointment confirmed", "appointment_id", appt.ID())
	return result, nil
}

// ConfirmByPhone confirms the next upcoming appointment of the patient with
// the given phone number.
func (s *Service) ConfirmByPhone(ctx context.Context, phone, notes string) (*Confirmation, error) {
	appt, err := s.nextAppointmentForPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("confirm by phone: %w", err)
	}
	return s.Confirm(ctx, appt.Name, notes)
}

// nextAppointmentForPhone finds the earliest upcoming scheduled appointment
// across the active patients sharing phone. Appointment lists are read live.
func (s *Service) nextAppointmentForPhone(ctx context.Context, phone string) (pms.Appointment, error) {
	contacts, err := s.FindContactsByPhone(ctx, phone)
	if err != nil {
		return pms.Appointment{}, err
	}
	now := s.now()
	var upcoming []pms.Appointment
	for _, c := range contacts {
		appts, err := s.gateway.AppointmentsByContact(ctx, c.Name, true)
		if err != nil {
			return pms.Appointment{}, upstream("appointments for "+c.Name, err)
		}
		for _, a := range appts {
			start, _, err := a.Times(s.location())
			if err != nil || a.IsCancelled() || a.Completed || start.Before(now) {
				continue
			}
			upcoming = append(upcoming, a)
		}
	}
	if len(upcoming) == 0 {
		return pms.Appointment{}, fmt.Errorf("no upcoming appointment for phone %s: %w", maskPhone(phone), ErrResourceNotFound)
	}
	loc := s.location()
	sort.SliceStable(upcoming, func(i, j int) bool {
		a, _, _ := upcoming[i].Times(loc)
		b, _, _ := upcoming[j].Times(loc)
		return a.Before(b)
	})
	return upcoming[0], nil
}

func providerName(a pms.Appointment) string {
	for _, p := range a.Providers {
		if p.DisplayName != "" {
			return p.DisplayName
		}
	}
	return a.ProviderID()
}

func maskPhone(phone string) string {
	digits := pms.NormalizePhone(phone)
	if len(digits) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}
