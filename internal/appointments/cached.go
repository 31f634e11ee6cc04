package appointments

import (
	"context"
	"time"

	"github.com/wolfman30/dental-booking-core/internal/cache"
	"github.com/wolfman30/dental-booking-core/internal/pms"
)

func (s *Service) remember(ctx context.Context, key string, class cache.Class, payload any) {
	if err := s.cache.Put(ctx, key, class, payload); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

func (s *Service) forget(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := s.cache.Invalidate(ctx, key); err != nil {
			s.logger.Warn("cache invalidate failed", "key", key, "error", err)
		}
	}
}

// forgetDay drops every cached schedule range that covers day, whatever
// its span, so the next availability read sees the change.
func (s *Service) forgetDay(ctx context.Context, day time.Time) {
	if _, err := s.cache.InvalidateSchedules(ctx, day.In(s.location())); err != nil {
		s.logger.Warn("cache schedule invalidate failed", "date", day.Format("2006-01-02"), "error", err)
	}
}

// recordAppointment writes appt into the cache and drops the derived reads
// it changes.
func (s *Service) recordAppointment(ctx context.Context, appt pms.Appointment) {
	s.remember(ctx, cache.AppointmentKey(appt.ID()), cache.ClassRecord, appt)
	s.forgetDerived(ctx, appt)
}

func (s *Service) forgetDerived(ctx context.Context, appt pms.Appointment) {
	if appt.ContactID != "" {
		s.forget(ctx, cache.ContactAppointmentsKey(appt.ContactID))
	}
	if start, _, err := appt.Times(s.location()); err == nil {
		s.forgetDay(ctx, start)
	}
}

// cachedAppointment returns the cached record for id, if any.
func (s *Service) cachedAppointment(ctx context.Context, id string) (pms.Appointment, bool) {
	var appt pms.Appointment
	if err := s.cache.Get(ctx, cache.AppointmentKey(id), &appt); err != nil {
		return pms.Appointment{}, false
	}
	return appt, true
}
