package appointments

import (
	"strings"
	"time"

	"github.com/wolfman30/dental-booking-core/internal/availability"
)

const dateLayout = "2006-01-02"

var timeLayouts = []string{"3:04 PM", "3:04PM", "15:04", "3 PM", "3PM", "15:04:05"}

// ParseDate reads a YYYY-MM-DD date as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, invalidInput("date is required")
	}
	d, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, invalidInput("date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}

// ParseTimeOn reads a clock time such as "10:00 AM", "10:00AM" or "14:30"
// and places it on date in loc.
func ParseTimeOn(date time.Time, s string, loc *time.Location) (time.Time, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return time.Time{}, invalidInput("time is required")
	}
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		y, m, d := date.Date()
		return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, loc), nil
	}
	return time.Time{}, invalidInput("time %q: want e.g. 10:00 AM or 14:30", s)
}

// requestedWindow builds the window for date+time. When end is given it
// wins; otherwise the window is duration long.
func requestedWindow(date, start, end string, duration time.Duration, loc *time.Location) (availability.Window, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return availability.Window{}, err
	}
	from, err := ParseTimeOn(day, start, loc)
	if err != nil {
		return availability.Window{}, err
	}
	w := availability.NewWindow(from, duration)
	if strings.TrimSpace(end) != "" {
		until, err := ParseTimeOn(day, end, loc)
		if err != nil {
			return availability.Window{}, err
		}
		w.End = until
	}
	if !w.Valid() {
		return availability.Window{}, invalidInput("end time must be after start time")
	}
	return w, nil
}
