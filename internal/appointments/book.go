package appointments

import (
	"context"
	"errors"
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

// BookRequest describes a new appointment.
type BookRequest struct {
	PatientName string
	// Contact is required unless ContactID names an existing contact.
	Contact   ContactInput
	ContactID string
	Date      string // YYYY-MM-DD
	Time      string // 10:00 AM, 10:00AM or 14:30
	Service   string
	// SlotsNeeded multiplies the service duration for extended visits.
	SlotsNeeded int
	Doctor      string
	Operatory   string
	IsCleaning  bool
	Notes       string
}

// Booking is the result of a successful Book.
type Booking struct {
	AppointmentID  string              `json:"appointment_id"`
	ContactID      string              `json:"contact_id"`
	NewContact     bool                `json:"new_contact"`
	PatientName    string              `json:"patient_name"`
	ProviderID     string              `json:"provider_id"`
	ProviderName   string              `json:"provider_name"`
	ResolutionTier directory.Tier      `json:"resolution_tier"`
	OperatoryID    string              `json:"operatory_id"`
	Window         availability.Window `json:"-"`
	Service        string              `json:"service"`
	State          State               `json:"state"`
}

// Book validates the request, binds a provider and operatory, checks the
// whole requested window against the live schedule and submits the
// appointment. A new contact is created for every booking that does not name
// an existing one. The interaction is logged whatever the outcome.
func (s *Service) Book(ctx context.Context, req BookRequest) (booking *Booking, err error) {
	ctx, span := s.start(ctx, "book")
	log := interactions.Interaction{
		Type:        interactions.TypeBooking,
		PatientName: req.PatientName,
		ContactID:   req.ContactID,
		Service:     req.Service,
		Doctor:      req.Doctor,
		Reason:      req.Notes,
		Details:     map[string]any{"date": req.Date, "time": req.Time, "slots_needed": req.SlotsNeeded},
	}
	defer func() {
		if booking != nil {
			log.AppointmentID = booking.AppointmentID
			log.ContactID = booking.ContactID
			log.Doctor = booking.ProviderName
			log.Details["operatory"] = booking.OperatoryID
			log.Details["resolution_tier"] = string(booking.ResolutionTier)
		}
		s.logInteraction(ctx, log, err)
		s.finish(span, "book", err)
	}()

	// Local validation before any upstream call.
	var contact ContactInfo
	if strings.TrimSpace(req.ContactID) == "" || req.Contact != nil {
		contact, err = NormalizeContact(req.Contact, req.PatientName)
		if err != nil {
			return nil, fmt.Errorf("book: %w", err)
		}
		log.ContactNumber = contact.Phone
		if log.PatientName == "" {
			log.PatientName = contact.FullName()
		}
	}
	slots := req.SlotsNeeded
	if slots < 1 {
		slots = 1
	}
	duration := s.roster.ServiceDuration(req.Service) * time.Duration(slots)
	window, err := requestedWindow(req.Date, req.Time, "", duration, s.location())
	if err != nil {
		return nil, fmt.Errorf("book: %w", err)
	}
	if err := s.notInPast(window); err != nil {
		return nil, fmt.Errorf("book: %w", err)
	}

	binding, err := s.bindForBooking(req, window.Start)
	if err != nil {
		return nil, fmt.Errorf("book: %w", err)
	}
	span.SetAttributes(
		attribute.String("dental.provider_id", binding.ProviderID),
		attribute.String("dental.operatory_id", binding.OperatoryID),
		attribute.String("dental.resolution_tier", string(binding.Tier)),
	)

	verdict := s.checkWindow(ctx, window, binding.OperatoryID, "")
	if err := verdictError("book", window, verdict); err != nil {
		return nil, err
	}

	contactID, contactName, created, err := s.ensureContact(ctx, req.ContactID, contact)
	if err != nil {
		return nil, err
	}
	if log.PatientName == "" {
		log.PatientName = contactName
	}

	service := strings.TrimSpace(req.Service)
	if service == "" {
		service = "Appointment"
	}
	given, family := splitName(contactName)
	appt, err := s.gateway.CreateAppointment(ctx, pms.Appointment{
		ContactID: contactID,
		Contact: &pms.ContactRef{
			Name:       contactID,
			GivenName:  given,
			FamilyName: family,
		},
		WallStartTime:    wallTime(window.Start),
		WallEndTime:      wallTime(window.End),
		Providers:        []pms.ResourceRef{pms.ProviderRef(binding.ProviderID, binding.DisplayName)},
		Resources:        []pms.ResourceRef{pms.OperatoryRef(binding.OperatoryID)},
		Operatory:        pms.OperatoryRef(binding.OperatoryID).Name,
		ShortDescription: service,
		Notes:            req.Notes,
	})
	if err != nil {
		// The PMS is the final arbiter of double booking.
		if pms.IsConflict(err) {
			return nil, fmt.Errorf("book: rejected by practice system: %w: %w", ErrSlotConflict, err)
		}
		return nil, upstream("book", err)
	}
	span.SetAttributes(attribute.String("dental.appointment_id", appt.ID()))

	s.recordAppointment(ctx, *appt)
	s.logger.Info("appointment booked",
		"appointment_id", appt.ID(),
		"contact_id", contactID,
		"provider_id", binding.ProviderID,
		"operatory_id", binding.OperatoryID,
		"start", window.Start.Format(time.RFC3339),
		"new_contact", created,
	)

	return &Booking{
		AppointmentID:  appt.Name,
		ContactID:      contactID,
		NewContact:     created,
		PatientName:    contactName,
		ProviderID:     binding.ProviderID,
		ProviderName:   binding.DisplayName,
		ResolutionTier: binding.Tier,
		OperatoryID:    binding.OperatoryID,
		Window:         window,
		Service:        service,
		State:          StateBooked,
	}, nil
}

// bindForBooking picks the provider for a booking. Cleanings go to the
// named hygienist or the first rostered one; everything else goes to the
// named doctor or the doctor rostered for the day.
func (s *Service) bindForBooking(req BookRequest, day time.Time) (directory.Binding, error) {
	var (
		res directory.Resolution
		err error
	)
	switch {
	case req.IsCleaning && strings.TrimSpace(req.Doctor) == "":
		res, err = s.directory.HygienistForDate(day)
	default:
		res = s.directory.ResolveProvider(req.Doctor, day)
	}
	if err != nil {
		return directory.Binding{}, resourceErr(err)
	}
	binding, err := s.directory.Bind(res, req.Operatory)
	if err != nil {
		return directory.Binding{}, resourceErr(err)
	}
	return binding, nil
}

// ensureContact returns the contact to book for. An existing ID is verified
// upstream; otherwise a new contact is always created.
func (s *Service) ensureContact(ctx context.Context, existingID string, info ContactInfo) (id, name string, created bool, err error) {
	if existingID = strings.TrimSpace(existingID); existingID != "" {
		var c pms.Contact
		_, err := s.cache.GetOrLoad(ctx, cache.ContactKey(existingID), cache.ClassRecord, &c, func(ctx context.Context) (any, error) {
			return s.gateway.GetContact(ctx, existingID)
		})
		if err != nil {
			return "", "", false, upstream("book: contact "+existingID, err)
		}
		return c.Name, c.FullName(), false, nil
	}

	c, err := s.gateway.CreateContact(ctx, info.toPMS())
	if err != nil {
		return "", "", false, fmt.Errorf("book: %w: %w", ErrContactCreationFailed, err)
	}
	s.remember(ctx, cache.ContactKey(c.Name), cache.ClassRecord, c)
	s.forget(ctx, cache.PhoneContactsKey(info.Phone))
	name = c.FullName()
	if name == "" {
		name = info.FullName()
	}
	return c.Name, name, true, nil
}

func resourceErr(err error) error {
	if errors.Is(err, directory.ErrResourceNotFound) {
		return fmt.Errorf("%w: %w", ErrResourceNotFound, err)
	}
	return err
}
