package appointments

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-booking-core/internal/cache"
	"github.com/wolfman30/dental-booking-core/internal/directory"
	"github.com/wolfman30/dental-booking-core/internal/interactions"
	"github.com/wolfman30/dental-booking-core/internal/pms"
	"github.com/wolfman30/dental-booking-core/internal/roster"
	"github.com/wolfman30/dental-booking-core/pkg/logging"
)

// fakeGateway is an in-memory PMS.
type fakeGateway struct {
	mu       sync.Mutex
	loc      *time.Location
	appts    map[string]pms.Appointment
	contacts map[string]pms.Contact
	nextID   int
	calls    []string

	createAppointmentErr error
	createContactErr     error
	cancelErr            error
	rangeErr             error
}

func newFakeGateway(loc *time.Location) *fakeGateway {
	return &fakeGateway{
		loc:      loc,
		appts:    map[string]pms.Appointment{},
		contacts: map[string]pms.Contact{},
	}
}

func (f *fakeGateway) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeGateway) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeGateway) count(prefix string) int {
	n := 0
	for _, c := range f.callLog() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeGateway) appointment(id string) pms.Appointment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appts[strings.TrimPrefix(id, "appointments/")]
}

func notFound(op string) error {
	return fmt.Errorf("%s: %w", op, &pms.APIError{Operation: op, StatusCode: http.StatusNotFound, Body: `{"error":"not found"}`})
}

func (f *fakeGateway) FindPatientsByPhone(_ context.Context, phone string) ([]pms.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("find_contacts")
	var out []pms.Contact
	for _, c := range f.contacts {
		if c.PrimaryPhone() == phone {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeGateway) SearchPatients(_ context.Context, q pms.ContactQuery) ([]pms.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("search_contacts")
	words := strings.Fields(q.Name)
	var out []pms.Contact
	for _, c := range f.contacts {
		switch len(words) {
		case 0:
		case 1:
			if !strings.EqualFold(c.FamilyName, words[0]) {
				continue
			}
		default:
			if !strings.EqualFold(c.GivenName, words[0]) || !strings.EqualFold(c.FamilyName, strings.Join(words[1:], " ")) {
				continue
			}
		}
		if q.Phone != "" && c.PrimaryPhone() != q.Phone {
			continue
		}
		if q.Email != "" && (len(c.EmailAddresses) == 0 || !strings.EqualFold(c.EmailAddresses[0].Address, q.Email)) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeGateway) GetContact(_ context.Context, id string) (*pms.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get_contact")
	c, ok := f.contacts[strings.TrimPrefix(id, "contacts/")]
	if !ok {
		return nil, notFound("get_contact")
	}
	return &c, nil
}

func (f *fakeGateway) CreateContact(_ context.Context, contact pms.Contact) (*pms.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create_contact")
	if f.createContactErr != nil {
		return nil, f.createContactErr
	}
	f.nextID++
	id := fmt.Sprintf("C-%d", f.nextID)
	contact.Name = "contacts/" + id
	f.contacts[id] = contact
	return &contact, nil
}

func (f *fakeGateway) GetAppointment(_ context.Context, id string) (*pms.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get_appointment")
	a, ok := f.appts[strings.TrimPrefix(id, "appointments/")]
	if !ok {
		return nil, notFound("get_appointment")
	}
	return &a, nil
}

func (f *fakeGateway) AppointmentsInRange(_ context.Context, first, last time.Time) ([]pms.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("appointments_in_range")
	if f.rangeErr != nil {
		return nil, f.rangeErr
	}
	fy, fm, fd := first.Date()
	ly, lm, ld := last.Date()
	from := time.Date(fy, fm, fd, 0, 0, 0, 0, f.loc)
	until := time.Date(ly, lm, ld, 0, 0, 0, 0, f.loc).AddDate(0, 0, 1)
	var out []pms.Appointment
	for _, a := range f.appts {
		start, _, err := a.Times(f.loc)
		if err != nil {
			continue
		}
		if !start.Before(from) && start.Before(until) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeGateway) AppointmentsByContact(_ context.Context, contactID string, scheduledOnly bool) ([]pms.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("appointments_by_contact")
	var out []pms.Appointment
	for _, a := range f.appts {
		if a.ContactID != contactID {
			continue
		}
		if scheduledOnly && a.IsCancelled() {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeGateway) CreateAppointment(_ context.Context, appt pms.Appointment) (*pms.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create_appointment")
	if f.createAppointmentErr != nil {
		return nil, f.createAppointmentErr
	}
	f.nextID++
	id := fmt.Sprintf("APT-%d", 100+f.nextID)
	appt.Name = "appointments/" + id
	f.appts[id] = appt
	return &appt, nil
}

func (f *fakeGateway) ConfirmAppointment(_ context.Context, id, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("confirm_appointment")
	key := strings.TrimPrefix(id, "appointments/")
	a, ok := f.appts[key]
	if !ok {
		return notFound("confirm_appointment")
	}
	a.Confirmed = true
	f.appts[key] = a
	return nil
}

func (f *fakeGateway) CancelAppointment(_ context.Context, id, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("cancel_appointment")
	if f.cancelErr != nil {
		return f.cancelErr
	}
	key := strings.TrimPrefix(id, "appointments/")
	a, ok := f.appts[key]
	if !ok {
		return notFound("cancel_appointment")
	}
	if a.Cancelled {
		return fmt.Errorf("cancel appointment %s: %w", key, pms.ErrAlreadyCancelled)
	}
	a.Cancelled = true
	f.appts[key] = a
	return nil
}

// seed stores an appointment; times are practice wall clock.
func (f *fakeGateway) seed(id, contactID, providerID, operatory, start, end string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appts[id] = pms.Appointment{
		Name:             "appointments/" + id,
		ContactID:        contactID,
		Contact:          &pms.ContactRef{Name: contactID, GivenName: "Jane", FamilyName: "Doe"},
		WallStartTime:    start,
		WallEndTime:      end,
		Providers:        []pms.ResourceRef{pms.ProviderRef(providerID, "")},
		Operatory:        "resources/" + operatory,
		ShortDescription: "Exam",
	}
}

func (f *fakeGateway) seedContact(id, given, family, phone string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contacts[id] = pms.Contact{
		Name:         "contacts/" + id,
		Type:         "PATIENT",
		State:        "ACTIVE",
		GivenName:    given,
		FamilyName:   family,
		PhoneNumbers: []pms.PhoneNumber{{Number: phone, Type: "MOBILE"}},
	}
}

type capturedInteractions struct {
	mu   sync.Mutex
	logs []interactions.Interaction
}

func (c *capturedInteractions) Log(_ context.Context, in interactions.Interaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, in)
}

func (c *capturedInteractions) all() []interactions.Interaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]interactions.Interaction(nil), c.logs...)
}

type lifecycleRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *lifecycleRecorder) ObserveLifecycle(operation, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, operation+":"+outcome)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	svc          *Service
	gw           *fakeGateway
	cache        *cache.Cache
	interactions *capturedInteractions
	recorder     *lifecycleRecorder
	clock        *clock
	loc          *time.Location
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	r := roster.Default()
	loc := r.Location()
	logger := logging.NewWithWriter(&bytes.Buffer{}, "error")
	clk := &clock{now: time.Date(2025, 6, 1, 8, 0, 0, 0, loc)}
	gw := newFakeGateway(loc)
	ints := &capturedInteractions{}
	rec := &lifecycleRecorder{}
	c := cache.New(cache.NewMemoryStore(), cache.Config{}, cache.WithClock(clk.Now), cache.WithLogger(logger))
	svc := NewService(gw, directory.New(r, directory.WithLogger(logger)), r,
		WithCache(c),
		WithInteractionLogger(ints),
		WithRecorder(rec),
		WithLogger(logger),
		WithClock(clk.Now),
	)
	require.NotNil(t, svc)
	return &harness{svc: svc, gw: gw, cache: c, interactions: ints, recorder: rec, clock: clk, loc: loc}
}

func (h *harness) at(day, hour, minute int) time.Time {
	return time.Date(2025, 6, day, hour, minute, 0, 0, h.loc)
}
