package pms

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ListContacts returns the contacts matching a filter expression.
// GET /contacts?filter=...
func (c *Client) ListContacts(ctx context.Context, filter string) ([]Contact, error) {
	q := url.Values{}
	if filter != "" {
		q.Set("filter", filter)
	}
	contacts, err := listAll[Contact](ctx, c, "list_contacts", "/contacts", "contacts", q)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return contacts, nil
}

// FindPatientsByPhone returns active patients whose phone matches.
func (c *Client) FindPatientsByPhone(ctx context.Context, phone string) ([]Contact, error) {
	digits := NormalizePhone(phone)
	if digits == "" {
		return nil, fmt.Errorf("pms: phone number has no digits")
	}
	f := NewFilter().Eq("type", "PATIENT").Eq("state", "ACTIVE").Eq("phone", digits)
	return c.ListContacts(ctx, f.String())
}

// ContactQuery narrows a patient search. Empty fields are ignored.
type ContactQuery struct {
	Name  string
	Email string
	Phone string
}

// Empty reports whether q names no field.
func (q ContactQuery) Empty() bool {
	return strings.TrimSpace(q.Name) == "" && strings.TrimSpace(q.Email) == "" && NormalizePhone(q.Phone) == ""
}

// Filter renders q for active patients. A one-word name matches the family
// name; a longer one is split into given name and family name.
func (q ContactQuery) Filter() *Filter {
	f := NewFilter().Eq("type", "PATIENT").Eq("state", "ACTIVE")
	switch words := strings.Fields(q.Name); len(words) {
	case 0:
	case 1:
		f.Eq("family_name", words[0])
	default:
		f.Eq("given_name", words[0]).Eq("family_name", strings.Join(words[1:], " "))
	}
	if email := strings.ToLower(strings.TrimSpace(q.Email)); email != "" {
		f.Eq("email", email)
	}
	if digits := NormalizePhone(q.Phone); digits != "" {
		f.Eq("phone", digits)
	}
	return f
}

// SearchPatients returns active patients matching every field of q.
func (c *Client) SearchPatients(ctx context.Context, q ContactQuery) ([]Contact, error) {
	if q.Empty() {
		return nil, fmt.Errorf("pms: contact search needs a name, email or phone")
	}
	return c.ListContacts(ctx, q.Filter().String())
}

// GetContact retrieves a contact by ID.
// GET /contacts/{id}
func (c *Client) GetContact(ctx context.Context, id string) (*Contact, error) {
	var contact Contact
	if err := c.do(ctx, "get_contact", http.MethodGet, "/contacts/"+escapeID(id, "contacts/"), nil, nil, &contact); err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return &contact, nil
}

// CreateContact creates a contact. Type and state default to an active
// patient; the PMS assigns the resource name.
// POST /contacts
func (c *Client) CreateContact(ctx context.Context, contact Contact) (*Contact, error) {
	if contact.Type == "" {
		contact.Type = "PATIENT"
	}
	if contact.State == "" {
		contact.State = "ACTIVE"
	}
	contact.Gender = NormalizeGender(contact.Gender)
	contact.PhoneNumbers = append([]PhoneNumber(nil), contact.PhoneNumbers...)
	contact.EmailAddresses = append([]EmailAddress(nil), contact.EmailAddresses...)
	for i := range contact.PhoneNumbers {
		contact.PhoneNumbers[i].Number = NormalizePhone(contact.PhoneNumbers[i].Number)
		if contact.PhoneNumbers[i].Type == "" {
			contact.PhoneNumbers[i].Type = "MOBILE"
		}
	}
	for i := range contact.EmailAddresses {
		if contact.EmailAddresses[i].Type == "" {
			contact.EmailAddresses[i].Type = "HOME"
		}
	}

	var created Contact
	if err := c.do(ctx, "create_contact", http.MethodPost, "/contacts", nil, contact, &created); err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}
	if created.Name == "" {
		return nil, fmt.Errorf("create contact: response carried no contact name")
	}
	return &created, nil
}
