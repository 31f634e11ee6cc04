package cache

import (
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout     = "2006-01-02"
	schedulePrefix = "schedule:"
)

// ScheduleKey is the key for a date-range schedule read, e.g.
// "schedule:2025-06-18_2025-06-20".
func ScheduleKey(start, end time.Time) string {
	return schedulePrefix + start.Format(dateLayout) + "_" + end.Format(dateLayout)
}

// ParseScheduleKey returns the first and last day named by a ScheduleKey,
// as midnight in loc.
func ParseScheduleKey(key string, loc *time.Location) (first, last time.Time, err error) {
	rest, ok := strings.CutPrefix(key, schedulePrefix)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("cache: %q is not a schedule key", key)
	}
	from, to, ok := strings.Cut(rest, "_")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("cache: malformed schedule key %q", key)
	}
	if first, err = time.ParseInLocation(dateLayout, from, loc); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("cache: schedule key %q: %w", key, err)
	}
	if last, err = time.ParseInLocation(dateLayout, to, loc); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("cache: schedule key %q: %w", key, err)
	}
	if last.Before(first) {
		return time.Time{}, time.Time{}, fmt.Errorf("cache: schedule key %q ends before it starts", key)
	}
	return first, last, nil
}

// AppointmentKey is the key for one appointment record.
func AppointmentKey(id string) string {
	return "appointment:" + strings.TrimPrefix(id, "appointments/")
}

// ContactKey is the key for one contact record.
func ContactKey(id string) string {
	return "contact:" + strings.TrimPrefix(id, "contacts/")
}

// ContactAppointmentsKey is the key for the appointments of one contact.
func ContactAppointmentsKey(contactID string) string {
	return "contact_appointments:" + strings.TrimPrefix(contactID, "contacts/")
}

// PhoneContactsKey is the key for a contact search by phone number.
func PhoneContactsKey(phone string) string {
	return "phone_contacts:" + phone
}

// ContactSearchKey is the key for a patient search. Name and email are
// matched case-insensitively.
func ContactSearchKey(name, email, phone string) string {
	return "contact_search:" + strings.ToLower(strings.Join(strings.Fields(name), " ")) + "|" + strings.ToLower(email) + "|" + phone
}
