package pms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ListAppointments returns the appointments matching a filter expression.
// GET /appointments?filter=...
func (c *Client) ListAppointments(ctx context.Context, filter string) ([]Appointment, error) {
	q := url.Values{}
	if filter != "" {
		q.Set("filter", filter)
	}
	appts, err := listAll[Appointment](ctx, c, "list_appointments", "/appointments", "appointments", q)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// AppointmentsInRange lists appointments starting on any calendar day from
// first to last inclusive, with day boundaries taken in the practice zone.
func (c *Client) AppointmentsInRange(ctx context.Context, first, last time.Time) ([]Appointment, error) {
	loc := c.cfg.Location
	fy, fm, fd := first.Date()
	ly, lm, ld := last.Date()
	from := time.Date(fy, fm, fd, 0, 0, 0, 0, loc)
	until := time.Date(ly, lm, ld, 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	if !until.After(from) {
		return nil, fmt.Errorf("pms: range end %s before start %s", last.Format("2006-01-02"), first.Format("2006-01-02"))
	}
	f := NewFilter().
		Gt("start_time", from.Add(-time.Second).UTC().Format(time.RFC3339)).
		Lt("start_time", until.UTC().Format(time.RFC3339))
	return c.ListAppointments(ctx, f.String())
}

// AppointmentsByContact lists a contact's appointments, optionally only the
// ones still scheduled.
func (c *Client) AppointmentsByContact(ctx context.Context, contactID string, scheduledOnly bool) ([]Appointment, error) {
	name := contactID
	if !strings.HasPrefix(name, "contacts/") {
		name = "contacts/" + name
	}
	f := NewFilter().Eq("contact_id", name)
	if scheduledOnly {
		f.Eq("state", "SCHEDULED")
	}
	return c.ListAppointments(ctx, f.String())
}

// GetAppointment retrieves an appointment by ID.
// GET /appointments/{id}
func (c *Client) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	var appt Appointment
	if err := c.do(ctx, "get_appointment", http.MethodGet, "/appointments/"+escapeID(id, "appointments/"), nil, nil, &appt); err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return &appt, nil
}

// CreateAppointment submits a new appointment. The scheduler defaults to the
// configured scheduler identity.
// POST /appointments
func (c *Client) CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	if appt.Scheduler == nil {
		appt.Scheduler = &ResourceRef{RemoteID: c.cfg.SchedulerID}
	}
	if appt.AppointmentTypeID == "" {
		appt.AppointmentTypeID = "appointmenttypes/1"
	}
	var created Appointment
	if err := c.do(ctx, "create_appointment", http.MethodPost, "/appointments", nil, appt, &created); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	if created.Name == "" {
		return nil, fmt.Errorf("create appointment: response carried no appointment name")
	}
	return &created, nil
}

type confirmRequest struct {
	Name             string `json:"name"`
	Confirmed        bool   `json:"confirmed"`
	ConfirmationType string `json:"confirmation_type"`
	Notes            string `json:"notes,omitempty"`
}

// ConfirmAppointment marks an appointment confirmed.
// POST /appointments/{id}:confirm
func (c *Client) ConfirmAppointment(ctx context.Context, id, notes string) error {
	bare := strings.TrimPrefix(id, "appointments/")
	body := confirmRequest{
		Name:             "appointments/" + bare,
		Confirmed:        true,
		ConfirmationType: "confirmationTypes/1",
		Notes:            notes,
	}
	if err := c.do(ctx, "confirm_appointment", http.MethodPost, "/appointments/"+url.PathEscape(bare)+":confirm", nil, body, nil); err != nil {
		return fmt.Errorf("confirm appointment: %w", err)
	}
	return nil
}

type cancelRequest struct {
	Name          string      `json:"name"`
	Canceler      ResourceRef `json:"canceler"`
	ProcedureCode string      `json:"procedure_code"`
	Reason        string      `json:"reason,omitempty"`
}

// CancelAppointment cancels an appointment on behalf of the configured
// canceling party. A PMS answer saying the appointment is already cancelled
// is reported as ErrAlreadyCancelled.
// POST /appointments/{id}:cancel
func (c *Client) CancelAppointment(ctx context.Context, id, reason string) error {
	bare := strings.TrimPrefix(id, "appointments/")
	body := cancelRequest{
		Name: bare,
		Canceler: ResourceRef{
			Name:     "resources/provider_" + c.cfg.CancelerID,
			RemoteID: c.cfg.CancelerID,
		},
		Reason: reason,
	}
	err := c.do(ctx, "cancel_appointment", http.MethodPost, "/appointments/"+url.PathEscape(bare)+":cancel", nil, body, nil)
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusConflict || mentionsCancelled(apiErr.Body)) {
		return fmt.Errorf("cancel appointment %s: %w", bare, ErrAlreadyCancelled)
	}
	return fmt.Errorf("cancel appointment: %w", err)
}

func mentionsCancelled(body string) bool {
	b := strings.ToLower(body)
	return strings.Contains(b, "already cancel") || strings.Contains(b, "already canceled")
}
