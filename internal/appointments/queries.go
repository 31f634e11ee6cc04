package appointments

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/dental-booking-core/internal/availability"
	"github.com/wolfman30/dental-booking-core/internal/cache"
	"github.com/wolfman30/dental-booking-core/internal/pms"
)

// AvailabilityRequest asks for the slot grid of consecutive days.
type AvailabilityRequest struct {
	Date string // YYYY-MM-DD, defaults to today
	Days int
	// Doctor narrows the check to the operatory of the named provider.
	Doctor string
}

// CheckAvailability returns the slot grid for each requested day. Booked
// appointments come from the cached schedule range, so the grid is advisory;
// Book and Reschedule check the live schedule again before committing.
func (s *Service) CheckAvailability(ctx context.Context, req AvailabilityRequest) (days []availability.DayAvailability, err error) {
	ctx, span := s.start(ctx, "check_availability")
	defer func() { s.finish(span, "check_availability", err) }()

	first, last, err := s.dayRange(req.Date, req.Days, s.defaultDays)
	if err != nil {
		return nil, fmt.Errorf("check availability: %w", err)
	}
	loc := s.location()

	var operatory string
	if strings.TrimSpace(req.Doctor) != "" {
		binding, err := s.directory.Resolve(req.Doctor, first, "")
		if err != nil {
			return nil, fmt.Errorf("check availability: %w", resourceErr(err))
		}
		operatory = binding.OperatoryID
	}

	var booked []pms.Appointment
	_, err = s.cache.GetOrLoad(ctx, cache.ScheduleKey(first, last), cache.ClassSchedule, &booked, func(ctx context.Context) (any, error) {
		return s.gateway.AppointmentsInRange(ctx, first, last)
	})
	if err != nil {
		return nil, upstream("check availability", err)
	}
	appts, bad := s.toEngine(booked)
	for _, e := range bad {
		s.logger.Warn("skipping appointment with unreadable times", "error", e)
	}
	appts = availability.ForOperatory(appts, operatory)

	days = make([]availability.DayAvailability, 0, s.maxDays)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		days = append(days, availability.ComputeSlots(day, s.roster.ScheduleFor(day), availability.OnDate(appts, day, loc)))
	}
	return days, nil
}

// dayRange resolves a YYYY-MM-DD start (today when empty) and a day count
// into the first and last practice day, both at midnight.
func (s *Service) dayRange(date string, days, fallback int) (first, last time.Time, err error) {
	loc := s.location()
	first = s.now().In(loc)
	if strings.TrimSpace(date) != "" {
		if first, err = ParseDate(date, loc); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	y, m, d := first.Date()
	first = time.Date(y, m, d, 0, 0, 0, 0, loc)

	if days <= 0 {
		days = fallback
	}
	if days > s.maxDays {
		return time.Time{}, time.Time{}, invalidInput("at most %d days per request", s.maxDays)
	}
	return first, first.AddDate(0, 0, days-1), nil
}

// FindContactsByPhone returns the active patients with phone, read through
// the cache.
func (s *Service) FindContactsByPhone(ctx context.Context, phone string, opts ...ReadOption) ([]pms.Contact, error) {
	digits := phoneDigits(phone)
	if len(digits) < 10 {
		return nil, invalidInput("phone number must have at least 10 digits")
	}
	var contacts []pms.Contact
	err := s.readThrough(ctx, cache.PhoneContactsKey(digits), cache.ClassRecord, &contacts, opts, func(ctx context.Context) (any, error) {
		return s.gateway.FindPatientsByPhone(ctx, digits)
	})
	if err != nil {
		return nil, upstream("find contacts", err)
	}
	if len(contacts) == 0 {
		return nil, fmt.Errorf("no patient with phone %s: %w", maskPhone(digits), ErrResourceNotFound)
	}
	return contacts, nil
}

// ContactSearch finds active patients by any combination of name, email
// and phone.
type ContactSearch struct {
	Name  string
	Email string
	Phone string
}

// SearchContacts returns the active patients matching every field of q,
// read through the cache. A phone-only search shares the phone lookup.
func (s *Service) SearchContacts(ctx context.Context, q ContactSearch, opts ...ReadOption) ([]pms.Contact, error) {
	q.Name = strings.Join(strings.Fields(q.Name), " ")
	q.Email = strings.ToLower(strings.TrimSpace(q.Email))
	q.Phone = strings.TrimSpace(q.Phone)
	if q.Name == "" && q.Email == "" && q.Phone == "" {
		return nil, invalidInput("name, email or phone is required")
	}
	var digits string
	if q.Phone != "" {
		if digits = phoneDigits(q.Phone); len(digits) < 10 {
			return nil, invalidInput("phone number must have at least 10 digits")
		}
	}
	if q.Name == "" && q.Email == "" {
		return s.FindContactsByPhone(ctx, digits, opts...)
	}

	var contacts []pms.Contact
	err := s.readThrough(ctx, cache.ContactSearchKey(q.Name, q.Email, digits), cache.ClassRecord, &contacts, opts, func(ctx context.Context) (any, error) {
		return s.gateway.SearchPatients(ctx, pms.ContactQuery{Name: q.Name, Email: q.Email, Phone: digits})
	})
	if err != nil {
		return nil, upstream("search contacts", err)
	}
	if len(contacts) == 0 {
		return nil, fmt.Errorf("no patient matches the search: %w", ErrResourceNotFound)
	}
	return contacts, nil
}

// AppointmentSummary is a caller-facing view of one appointment.
type AppointmentSummary struct {
	AppointmentID string    `json:"appointment_id"`
	ContactID     string    `json:"contact_id"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	ProviderID    string    `json:"provider_id"`
	ProviderName  string    `json:"provider_name"`
	OperatoryID   string    `json:"operatory_id"`
	Service       string    `json:"service"`
	State         State     `json:"state"`
}

// FindAppointments lists a contact's appointments, earliest first, read
// through the cache.
func (s *Service) FindAppointments(ctx context.Context, contactID string, opts ...ReadOption) ([]AppointmentSummary, error) {
	contactID = strings.TrimSpace(contactID)
	if contactID == "" {
		return nil, invalidInput("contact id is required")
	}
	var appts []pms.Appointment
	err := s.readThrough(ctx, cache.ContactAppointmentsKey(contactID), cache.ClassRecord, &appts, opts, func(ctx context.Context) (any, error) {
		return s.gateway.AppointmentsByContact(ctx, contactID, false)
	})
	if err != nil {
		return nil, upstream("find appointments", err)
	}
	return s.summarize(appts), nil
}

// FindAppointmentsByPhone lists the appointments of every patient with phone.
func (s *Service) FindAppointmentsByPhone(ctx context.Context, phone string, opts ...ReadOption) ([]AppointmentSummary, error) {
	contacts, err := s.FindContactsByPhone(ctx, phone, opts...)
	if err != nil {
		return nil, err
	}
	var out []AppointmentSummary
	for _, c := range contacts {
		appts, err := s.FindAppointments(ctx, c.Name, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, appts...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// GetAppointment returns one appointment, read through the cache.
func (s *Service) GetAppointment(ctx context.Context, id string, opts ...ReadOption) (*AppointmentSummary, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalidInput("appointment id is required")
	}
	var appt pms.Appointment
	err := s.readThrough(ctx, cache.AppointmentKey(id), cache.ClassRecord, &appt, opts, func(ctx context.Context) (any, error) {
		return s.gateway.GetAppointment(ctx, id)
	})
	if err != nil {
		return nil, upstream("get appointment", err)
	}
	out := s.summarize([]pms.Appointment{appt})
	if len(out) == 0 {
		return nil, fmt.Errorf("get appointment %s: unreadable times: %w", id, ErrUpstreamUnavailable)
	}
	return &out[0], nil
}

func (s *Service) summarize(appts []pms.Appointment) []AppointmentSummary {
	loc := s.location()
	out := make([]AppointmentSummary, 0, len(appts))
	for _, a := range appts {
		start, end, err := a.Times(loc)
		if err != nil {
			s.logger.Warn("skipping appointment with unreadable times", "appointment_id", a.ID(), "error", err)
			continue
		}
		out = append(out, AppointmentSummary{
			AppointmentID: a.Name,
			ContactID:     a.ContactID,
			Start:         start,
			End:           end,
			ProviderID:    a.ProviderID(),
			ProviderName:  providerName(a),
			OperatoryID:   a.OperatoryID(),
			Service:       a.ShortDescription,
			State:         StateOf(a),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
