package appointments

import (
	"fmt"
	"strings"

	"github.com/wolfman30/dental-booking-core/internal/pms"
)

// ContactInput is how a caller describes the patient to contact. It is one
// of PhoneContact, ContactMap or ContactDetails, and is normalized into a
// ContactInfo before any business logic runs.
type ContactInput interface {
	details() ContactDetails
}

// PhoneContact is a bare phone number.
type PhoneContact string

func (p PhoneContact) details() ContactDetails {
	return ContactDetails{Phone: string(p)}
}

// ContactMap is a loosely typed contact payload, as agents tend to send.
type ContactMap map[string]any

func (m ContactMap) details() ContactDetails {
	return ContactDetails{
		GivenName:     m.first("given_name", "first_name"),
		FamilyName:    m.first("family_name", "last_name"),
		Phone:         m.first("number", "phone_number", "phone", "mobile"),
		Email:         m.first("email", "email_address"),
		BirthDate:     m.first("birth_date", "dob"),
		Gender:        m.first("gender"),
		StreetAddress: m.first("street_address", "address"),
		City:          m.first("city"),
		State:         m.first("state_address", "address_state"),
		PostalCode:    m.first("postal_code", "zip"),
		CountryCode:   m.first("country_code"),
	}
}

func (m ContactMap) first(keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = fmt.Sprintf("%.0f", t)
		default:
			s = fmt.Sprint(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// ContactDetails is a structured contact.
type ContactDetails struct {
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	BirthDate     string `json:"birth_date,omitempty"`
	Gender        string `json:"gender,omitempty"`
	StreetAddress string `json:"street_address,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
	PostalCode    string `json:"postal_code,omitempty"`
	CountryCode   string `json:"country_code,omitempty"`
}

func (c ContactDetails) details() ContactDetails {
	return c
}

// ContactInfo is a validated, normalized contact. Phone holds digits only.
type ContactInfo struct {
	ContactDetails
}

// FullName joins the given and family names.
func (c ContactInfo) FullName() string {
	return strings.TrimSpace(c.GivenName + " " + c.FamilyName)
}

// NormalizeContact validates in and fills missing names from fullName. A
// contact needs a name and a phone number of at least ten digits.
func NormalizeContact(in ContactInput, fullName string) (ContactInfo, error) {
	if in == nil {
		return ContactInfo{}, invalidInput("contact is required")
	}
	d := in.details()
	d.GivenName = strings.TrimSpace(d.GivenName)
	d.FamilyName = strings.TrimSpace(d.FamilyName)
	if d.GivenName == "" || d.FamilyName == "" {
		given, family := splitName(fullName)
		if d.GivenName == "" {
			d.GivenName = given
		}
		if d.FamilyName == "" {
			d.FamilyName = family
		}
	}
	if d.GivenName == "" {
		return ContactInfo{}, invalidInput("patient name is required")
	}
	d.Phone = phoneDigits(d.Phone)
	if len(d.Phone) < 10 {
		return ContactInfo{}, invalidInput("contact phone number must have at least 10 digits")
	}
	d.Email = strings.TrimSpace(d.Email)
	d.Gender = pms.NormalizeGender(d.Gender)
	return ContactInfo{ContactDetails: d}, nil
}

// phoneDigits keeps the digits of a phone number and drops a leading US
// country code.
func phoneDigits(s string) string {
	d := pms.NormalizePhone(s)
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	return d
}

func splitName(full string) (string, string) {
	parts := strings.SplitN(strings.Join(strings.Fields(full), " "), " ", 2)
	switch len(parts) {
	case 2:
		return parts[0], parts[1]
	case 1:
		return parts[0], ""
	default:
		return "", ""
	}
}

// toPMS builds the contact creation payload.
func (c ContactInfo) toPMS() pms.Contact {
	contact := pms.Contact{
		Type:         "PATIENT",
		State:        "ACTIVE",
		GivenName:    c.GivenName,
		FamilyName:   c.FamilyName,
		Gender:       c.Gender,
		BirthDate:    c.BirthDate,
		PhoneNumbers: []pms.PhoneNumber{{Number: c.Phone, Type: "MOBILE"}},
	}
	if c.Email != "" {
		contact.EmailAddresses = []pms.EmailAddress{{Address: c.Email, Type: "HOME"}}
	}
	if c.StreetAddress != "" || c.City != "" || c.PostalCode != "" {
		contact.Addresses = []pms.Address{{
			StreetAddress: c.StreetAddress,
			City:          c.City,
			State:         c.State,
			PostalCode:    c.PostalCode,
			CountryCode:   c.CountryCode,
			Type:          "HOME",
		}}
	}
	return contact
}
