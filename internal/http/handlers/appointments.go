package handlers

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/wolfman30/dental-booking-core/internal/appointments"
	"github.com/wolfman30/dental-booking-core/internal/availability"
	"github.com/wolfman30/dental-booking-core/internal/interactions"
	"github.com/wolfman30/dental-booking-core/internal/pms"
	"github.com/wolfman30/dental-booking-core/pkg/logging"
)

// AppointmentService is the lifecycle core the handlers translate to.
type AppointmentService interface {
	Book(ctx context.Context, req appointments.BookRequest) (*appointments.Booking, error)
	Confirm(ctx context.Context, appointmentID, notes string) (*appointments.Confirmation, error)
	ConfirmByPhone(ctx context.Context, phone, notes string) (*appointments.Confirmation, error)
	Reschedule(ctx context.Context, req appointments.RescheduleRequest) (*appointments.Rescheduling, error)
	RescheduleByPhone(ctx context.Context, phone string, req appointments.RescheduleRequest) (*appointments.Rescheduling, error)
	Cancel(ctx context.Context, appointmentID, reason string) (*appointments.Cancellation, error)
	CheckAvailability(ctx context.Context, req appointments.AvailabilityRequest) ([]availability.DayAvailability, error)
	RefreshAvailability(ctx context.Context, req appointments.ScheduleRequest) (*appointments.AvailabilityRefresh, error)
	CacheStatus(ctx context.Context, req appointments.ScheduleRequest) (*appointments.CacheStatus, error)
	GetAppointment(ctx context.Context, id string, opts ...appointments.ReadOption) (*appointments.AppointmentSummary, error)
	FindAppointments(ctx context.Context, contactID string, opts ...appointments.ReadOption) ([]appointments.AppointmentSummary, error)
	FindAppointmentsByPhone(ctx context.Context, phone string, opts ...appointments.ReadOption) ([]appointments.AppointmentSummary, error)
	SearchContacts(ctx context.Context, q appointments.ContactSearch, opts ...appointments.ReadOption) ([]pms.Contact, error)
}

// InteractionReporter aggregates logged interactions.
type InteractionReporter interface {
	Summary(ctx context.Context, from, to time.Time) ([]interactions.TypeSummary, error)
}

// AppointmentsHandler serves the booking endpoints.
type AppointmentsHandler struct {
	service  AppointmentService
	reporter InteractionReporter
	logger   *logging.Logger
}

// NewAppointmentsHandler creates the handler. reporter may be nil.
func NewAppointmentsHandler(service AppointmentService, reporter InteractionReporter, logger *logging.Logger) *AppointmentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentsHandler{service: service, reporter: reporter, logger: logger.Component("http")}
}

// Routes mounts the booking endpoints.
func (h *AppointmentsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/availability", func(r chi.Router) {
		r.Get("/", h.CheckAvailability)
		r.Post("/refresh", h.RefreshAvailability)
		r.Get("/cache-status", h.CacheStatus)
	})
	r.Get("/contacts/search", h.SearchContacts)
	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", h.Book)
		r.Get("/", h.ListAppointments)
		r.Post("/confirm-by-phone", h.ConfirmByPhone)
		r.Post("/reschedule-by-phone", h.RescheduleByPhone)
		r.Get("/{appointmentID}", h.GetAppointment)
		r.Post("/{appointmentID}/confirm", h.Confirm)
		r.Post("/{appointmentID}/reschedule", h.Reschedule)
		r.Post("/{appointmentID}/cancel", h.Cancel)
	})
	if h.reporter != nil {
		r.Get("/interactions/summary", h.InteractionSummary)
	}
	return r
}

type bookBody struct {
	Name        string                       `json:"name"`
	Contact     json.RawMessage              `json:"contact"`
	ContactInfo *appointments.ContactDetails `json:"contact_info"`
	ContactID   string                       `json:"contact_id"`
	Date        string                       `json:"date" validate:"required,wall_date"`
	Time        string                       `json:"time" validate:"required"`
	Service     string                       `json:"service_booked"`
	SlotsNeeded int                          `json:"slots_needed" validate:"gte=0,lte=16"`
	Doctor      string                       `json:"doctor_for_appointment"`
	Operatory   string                       `json:"operatory"`
	IsCleaning  bool                         `json:"iscleaning"`
	Notes       string                       `json:"notes"`
}

// contactInput turns the loosely typed contact field into a ContactInput.
// A string is a phone number and an object is a contact map; contact_info
// wins when present.
func (b bookBody) contactInput() (appointments.ContactInput, bool) {
	if b.ContactInfo != nil {
		return *b.ContactInfo, true
	}
	raw := bytes.TrimSpace(b.Contact)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, true
	}
	switch raw[0] {
	case '"':
		var phone string
		if err := json.Unmarshal(raw, &phone); err != nil {
			return nil, false
		}
		return appointments.PhoneContact(phone), true
	case '{':
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, false
		}
		return appointments.ContactMap(m), true
	default:
		return appointments.PhoneContact(string(raw)), true
	}
}

type windowJSON struct {
	Date  string `json:"date"`
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

func windowOf(w availability.Window) windowJSON {
	return windowJSON{
		Date:  w.Start.Format("2006-01-02"),
		Start: w.Start.Format("3:04 PM"),
		End:   w.End.Format("3:04 PM"),
	}
}

// Book handles POST /v1/appointments.
func (h *AppointmentsHandler) Book(w http.ResponseWriter, r *http.Request) {
	var body bookBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !valid(w, body) {
		return
	}
	contact, ok := body.contactInput()
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid contact")
		return
	}
	booking, err := h.service.Book(r.Context(), appointments.BookRequest{
		PatientName: body.Name,
		Contact:     contact,
		ContactID:   body.ContactID,
		Date:        body.Date,
		Time:        body.Time,
		Service:     body.Service,
		SlotsNeeded: body.SlotsNeeded,
		Doctor:      body.Doctor,
		Operatory:   body.Operatory,
		IsCleaning:  body.IsCleaning,
		Notes:       body.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Success bool `json:"success"`
		*appointments.Booking
		windowJSON
	}{true, booking, windowOf(booking.Window)})
}

type confirmBody struct {
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

type confirmByPhoneBody struct {
	Phone string `json:"phone" validate:"required"`
	Notes string `json:"notes"`
}

// Confirm handles POST /v1/appointments/{appointmentID}/confirm.
func (h *AppointmentsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var body confirmBody
	if !decodeOptional(w, r, &body) {
		return
	}
	result, err := h.service.Confirm(r.Context(), chi.URLParam(r, "appointmentID"), body.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*appointments.Confirmation
	}{true, result})
}

// ConfirmByPhone handles POST /v1/appointments/confirm-by-phone.
func (h *AppointmentsHandler) ConfirmByPhone(w http.ResponseWriter, r *http.Request) {
	var body confirmByPhoneBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !valid(w, body) {
		return
	}
	result, err := h.service.ConfirmByPhone(r.Context(), body.Phone, body.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*appointments.Confirmation
	}{true, result})
}

type rescheduleBody struct {
	Phone     string `json:"phone"`
	Date      string `json:"date" validate:"required,wall_date"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time"`
	NewDoctor string `json:"new_doctor"`
	Operatory string `json:"operatory"`
	Notes     string `json:"notes"`
}

func (b rescheduleBody) request(id string) appointments.RescheduleRequest {
	return appointments.RescheduleRequest{
		AppointmentID: id,
		Date:          b.Date,
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		NewDoctor:     b.NewDoctor,
		Operatory:     b.Operatory,
		Notes:         b.Notes,
	}
}

// Reschedule handles POST /v1/appointments/{appointmentID}/reschedule.
func (h *AppointmentsHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var body rescheduleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !valid(w, body) {
		return
	}
	result, err := h.service.Reschedule(r.Context(), body.request(chi.URLParam(r, "appointmentID")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeRescheduled(w, result)
}

// RescheduleByPhone handles POST /v1/appointments/reschedule-by-phone.
func (h *AppointmentsHandler) RescheduleByPhone(w http.ResponseWriter, r *http.Request) {
	var body rescheduleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !valid(w, body) {
		return
	}
	if strings.TrimSpace(body.Phone) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Status: "invalid_request", Error: "phone is required"})
		return
	}
	result, err := h.service.RescheduleByPhone(r.Context(), body.Phone, body.request(""))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeRescheduled(w, result)
}

func (h *AppointmentsHandler) writeRescheduled(w http.ResponseWriter, result *appointments.Rescheduling) {
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*appointments.Rescheduling
		windowJSON
	}{true, result, windowOf(result.Window)})
}

type cancelBody struct {
	Reason string `json:"reason"`
}

// Cancel handles POST /v1/appointments/{appointmentID}/cancel.
func (h *AppointmentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var body cancelBody
	if !decodeOptional(w, r, &body) {
		return
	}
	result, err := h.service.Cancel(r.Context(), chi.URLParam(r, "appointmentID"), body.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*appointments.Cancellation
	}{true, result})
}

// CheckAvailability handles GET /v1/availability?date=&days=&doctor=.
func (h *AppointmentsHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, ok := queryDays(w, q.Get("days"))
	if !ok {
		return
	}
	result, err := h.service.CheckAvailability(r.Context(), appointments.AvailabilityRequest{
		Date:   q.Get("date"),
		Days:   days,
		Doctor: q.Get("doctor"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"days":    availability.Summarize(result),
	})
}

type refreshBody struct {
	Date string `json:"date" validate:"omitempty,wall_date"`
	Days int    `json:"days" validate:"gte=0"`
}

// RefreshAvailability handles POST /v1/availability/refresh. The body is
// optional and defaults to the next seven days.
func (h *AppointmentsHandler) RefreshAvailability(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if !decodeOptional(w, r, &body) {
		return
	}
	if !valid(w, body) {
		return
	}
	result, err := h.service.RefreshAvailability(r.Context(), appointments.ScheduleRequest{Date: body.Date, Days: body.Days})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*appointments.AvailabilityRefresh
	}{true, result})
}

// CacheStatus handles GET /v1/availability/cache-status?date=&days=.
func (h *AppointmentsHandler) CacheStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, ok := queryDays(w, q.Get("days"))
	if !ok {
		return
	}
	status, err := h.service.CacheStatus(r.Context(), appointments.ScheduleRequest{Date: q.Get("date"), Days: days})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// SearchContacts handles GET /v1/contacts/search?name=&email=&phone=&refresh=.
func (h *AppointmentsHandler) SearchContacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	refresh, ok := queryRefresh(w, q.Get("refresh"))
	if !ok {
		return
	}
	contacts, err := h.service.SearchContacts(r.Context(), appointments.ContactSearch{
		Name:  q.Get("name"),
		Email: q.Get("email"),
		Phone: q.Get("phone"),
	}, appointments.RefreshIf(refresh))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "contacts": contacts})
}

// GetAppointment handles GET /v1/appointments/{appointmentID}?refresh=.
func (h *AppointmentsHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	refresh, ok := queryRefresh(w, r.URL.Query().Get("refresh"))
	if !ok {
		return
	}
	appt, err := h.service.GetAppointment(r.Context(), chi.URLParam(r, "appointmentID"), appointments.RefreshIf(refresh))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// ListAppointments handles GET /v1/appointments?phone= or ?contact_id=,
// with an optional refresh=true.
func (h *AppointmentsHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	refresh, ok := queryRefresh(w, q.Get("refresh"))
	if !ok {
		return
	}
	read := appointments.RefreshIf(refresh)
	var (
		list []appointments.AppointmentSummary
		err  error
	)
	switch {
	case q.Get("contact_id") != "":
		list, err = h.service.FindAppointments(r.Context(), q.Get("contact_id"), read)
	case q.Get("phone") != "":
		list, err = h.service.FindAppointmentsByPhone(r.Context(), q.Get("phone"), read)
	default:
		writeMessage(w, http.StatusBadRequest, "phone or contact_id is required")
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []appointments.AppointmentSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": list})
}

// InteractionSummary handles GET /v1/interactions/summary?from=&to=. The
// range defaults to the last seven days.
func (h *AppointmentsHandler) InteractionSummary(w http.ResponseWriter, r *http.Request) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -7)
	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
		from = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
		to = t.AddDate(0, 0, 1)
	}
	summary, err := h.reporter.Summary(r.Context(), from, to)
	if err != nil {
		h.logger.Error("interaction summary failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "failed to summarize interactions")
		return
	}
	type row struct {
		Type        interactions.Type `json:"type"`
		Total       int               `json:"total"`
		Succeeded   int               `json:"succeeded"`
		SuccessRate float64           `json:"success_rate"`
	}
	rows := make([]row, 0, len(summary))
	for _, s := range summary {
		rows = append(rows, row{s.Type, s.Total, s.Succeeded, s.SuccessRate()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":    from.Format("2006-01-02"),
		"to":      to.AddDate(0, 0, -1).Format("2006-01-02"),
		"summary": rows,
	})
}

// queryDays parses an optional positive day count.
func queryDays(w http.ResponseWriter, raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		writeMessage(w, http.StatusBadRequest, "days must be a positive integer")
		return 0, false
	}
	return n, true
}

// queryRefresh parses an optional boolean refresh flag.
func queryRefresh(w http.ResponseWriter, raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, true
	}
	on, err := strconv.ParseBool(raw)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "refresh must be true or false")
		return false, false
	}
	return on, true
}

// decodeOptional decodes a JSON body when one was sent.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
