package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/dental-booking-core/internal/cache"
	"github.com/wolfman30/dental-booking-core/internal/interactions"
	"github.com/wolfman30/dental-booking-core/internal/pms"
)

// Cancellation is the result of Cancel.
type Cancellation struct {
	AppointmentID    string `json:"appointment_id"`
	State            State  `json:"state"`
	AlreadyCancelled bool   `json:"already_cancelled"`
}

// Cancel cancels an appointment on behalf of the practice. An appointment
// the PMS already reports as cancelled is a success.
func (s *Service) Cancel(ctx context.Context, appointmentID, reason string) (result *Cancellation, err error) {
	ctx, span := s.start(ctx, "cancel")
	log := interactions.Interaction{
		Type:          interactions.TypeCancellation,
		AppointmentID: appointmentID,
		Reason:        reason,
		Details:       map[string]any{},
	}
	defer func() {
		if result != nil {
			log.Details["already_cancelled"] = result.AlreadyCancelled
		}
		s.logInteraction(ctx, log, err)
		s.finish(span, "cancel", err)
	}()

	appointmentID = strings.TrimSpace(appointmentID)
	if appointmentID == "" {
		return nil, fmt.Errorf("cancel: %w", invalidInput("appointment id is required"))
	}
	span.SetAttributes(attribute.String("dental.appointment_id", appointmentID))

	known, cached := s.cachedAppointment(ctx, appointmentID)
	if cached {
		log.ContactID = known.ContactID
		log.Doctor = providerName(known)
		log.Service = known.ShortDescription
	}

	already, err := s.cancelUpstream(ctx, appointmentID, reason)
	if err != nil {
		return nil, upstream("cancel", err)
	}

	s.forget(ctx, cache.AppointmentKey(appointmentID))
	if cached {
		s.forgetDerived(ctx, known)
	}
	s.logger.Info("appointment cancelled", "appointment_id", appointmentID, "already_cancelled", already)
	return &Cancellation{
		AppointmentID:    "appointments/" + strings.TrimPrefix(appointmentID, "appointments/"),
		State:            StateCancelled,
		AlreadyCancelled: already,
	}, nil
}

// cancelUpstream cancels id and reports whether it was already cancelled.
func (s *Service) cancelUpstream(ctx context.Context, id, reason string) (bool, error) {
	err := s.gateway.CancelAppointment(ctx, id, reason)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, pms.ErrAlreadyCancelled):
		return true, nil
	default:
		return false, err
	}
}
