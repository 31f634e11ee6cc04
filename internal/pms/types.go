package pms

import (
	"fmt"
	"strings"
	"time"
)

// WallTimeLayout is the PMS wall-clock timestamp format.
const WallTimeLayout = "2006-01-02 15:04:05"

// Contact is a PMS contact resource.
type Contact struct {
	Name           string         `json:"name,omitempty"` // "contacts/123"
	RemoteID       string         `json:"remote_id,omitempty"`
	Type           string         `json:"type,omitempty"`  // PATIENT
	State          string         `json:"state,omitempty"` // ACTIVE, ARCHIVED
	GivenName      string         `json:"given_name,omitempty"`
	FamilyName     string         `json:"family_name,omitempty"`
	PreferredName  string         `json:"preferred_name,omitempty"`
	Gender         string         `json:"gender,omitempty"`
	BirthDate      string         `json:"birth_date,omitempty"` // YYYY-MM-DD
	Notes          string         `json:"notes,omitempty"`
	PhoneNumbers   []PhoneNumber  `json:"phone_numbers,omitempty"`
	EmailAddresses []EmailAddress `json:"email_addresses,omitempty"`
	Addresses      []Address      `json:"addresses,omitempty"`
	OptIns         *OptIns        `json:"opt_ins,omitempty"`
	FirstVisit     string         `json:"first_visit,omitempty"`
}

// ID returns the identifier portion of the resource name.
func (c Contact) ID() string {
	return strings.TrimPrefix(c.Name, "contacts/")
}

// FullName joins given and family name.
func (c Contact) FullName() string {
	return strings.TrimSpace(c.GivenName + " " + c.FamilyName)
}

// PrimaryPhone returns the first phone number, if any.
func (c Contact) PrimaryPhone() string {
	if len(c.PhoneNumbers) == 0 {
		return ""
	}
	return c.PhoneNumbers[0].Number
}

type PhoneNumber struct {
	Number string `json:"number"`
	Type   string `json:"type,omitempty"` // MOBILE, HOME, WORK
}

type EmailAddress struct {
	Address string `json:"address"`
	Type    string `json:"type,omitempty"`
}

type Address struct {
	StreetAddress string `json:"street_address,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
	PostalCode    string `json:"postal_code,omitempty"`
	CountryCode   string `json:"country_code,omitempty"`
	Type          string `json:"type,omitempty"`
}

type OptIns struct {
	SMS   *bool `json:"sms,omitempty"`
	Email *bool `json:"email,omitempty"`
}

// ResourceRef points at a provider, operatory or scheduler.
type ResourceRef struct {
	Name        string `json:"name"`
	RemoteID    string `json:"remote_id,omitempty"`
	Type        string `json:"type,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// ContactRef is the contact summary embedded in an appointment.
type ContactRef struct {
	Name       string `json:"name,omitempty"`
	RemoteID   string `json:"remote_id,omitempty"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
}

// Appointment is a PMS appointment resource.
type Appointment struct {
	Name              string        `json:"name,omitempty"` // "appointments/123"
	ContactID         string        `json:"contact_id,omitempty"`
	Contact           *ContactRef   `json:"contact,omitempty"`
	WallStartTime     string        `json:"wall_start_time,omitempty"`
	WallEndTime       string        `json:"wall_end_time,omitempty"`
	StartTime         string        `json:"start_time,omitempty"` // RFC3339, set by the PMS
	EndTime           string        `json:"end_time,omitempty"`
	Providers         []ResourceRef `json:"providers,omitempty"`
	Resources         []ResourceRef `json:"resources,omitempty"`
	Operatory         string        `json:"operatory,omitempty"`
	AppointmentTypeID string        `json:"appointment_type_id,omitempty"`
	Scheduler         *ResourceRef  `json:"scheduler,omitempty"`
	ShortDescription  string        `json:"short_description,omitempty"`
	Notes             string        `json:"notes,omitempty"`
	State             string        `json:"state,omitempty"`
	Cancelled         bool          `json:"cancelled"`
	Completed         bool          `json:"completed"`
	Confirmed         bool          `json:"confirmed"`
	Broken            bool          `json:"broken,omitempty"`
}

// ID returns the identifier portion of the resource name.
func (a Appointment) ID() string {
	return strings.TrimPrefix(a.Name, "appointments/")
}

// IsCancelled treats broken appointments as cancelled.
func (a Appointment) IsCancelled() bool {
	return a.Cancelled || a.Broken || strings.EqualFold(a.State, "CANCELLED")
}

// ProviderID returns the remote id of the first provider.
func (a Appointment) ProviderID() string {
	for _, p := range a.Providers {
		if p.RemoteID != "" {
			return p.RemoteID
		}
		if id := strings.TrimPrefix(p.Name, "resources/provider_"); id != p.Name {
			return id
		}
	}
	return ""
}

// OperatoryID returns the operatory without its "resources/" prefix.
func (a Appointment) OperatoryID() string {
	op := a.Operatory
	if op == "" {
		for _, r := range a.Resources {
			if strings.Contains(r.Name, "operatory") {
				op = r.Name
				break
			}
		}
	}
	return strings.TrimPrefix(op, "resources/")
}

// Times returns the appointment bounds on the wall clock of loc. Wall times
// are read as loc-local; RFC3339 times are converted into loc.
func (a Appointment) Times(loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	start, err := parseTime(a.WallStartTime, a.StartTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("appointment %s start: %w", a.ID(), err)
	}
	end, err := parseTime(a.WallEndTime, a.EndTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("appointment %s end: %w", a.ID(), err)
	}
	return start, end, nil
}

func parseTime(wall, instant string, loc *time.Location) (time.Time, error) {
	if wall != "" {
		return time.ParseInLocation(WallTimeLayout, wall, loc)
	}
	if instant != "" {
		t, err := time.Parse(time.RFC3339, instant)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(loc), nil
	}
	return time.Time{}, fmt.Errorf("no time set")
}

// Resource is a provider or operatory listed by the PMS.
type Resource struct {
	Name        string `json:"name"`
	RemoteID    string `json:"remote_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Type        string `json:"type,omitempty"`
	Active      bool   `json:"active"`
}

// ID returns the remote id when the PMS sends one, otherwise the name
// without its resource prefix.
func (r Resource) ID() string {
	if r.RemoteID != "" {
		return r.RemoteID
	}
	if id := strings.TrimPrefix(r.Name, "resources/provider_"); id != r.Name {
		return id
	}
	return strings.TrimPrefix(r.Name, "resources/")
}

// ProviderRef builds the provider reference for a provider id.
func ProviderRef(id, displayName string) ResourceRef {
	return ResourceRef{Name: "resources/provider_" + id, RemoteID: id, Type: "PROVIDER", DisplayName: displayName}
}

// OperatoryRef builds the resource reference for an operatory id.
func OperatoryRef(id string) ResourceRef {
	return ResourceRef{Name: "resources/" + strings.TrimPrefix(id, "resources/"), Type: "operatory"}
}

// NormalizePhone keeps only the digits of a phone number.
func NormalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeGender maps free-form gender input to the PMS enumeration.
func NormalizeGender(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "M", "MALE":
		return "MALE"
	case "F", "FEMALE":
		return "FEMALE"
	default:
		return "GENDER_UNSPECIFIED"
	}
}
