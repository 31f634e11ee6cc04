package roster

import (
	"fmt"
	"strings"
	"time"
)

// Clock is a wall-clock time of day in minutes after midnight.
type Clock int

var clockLayouts = []string{"15:04", "3:04 PM", "3:04PM", "3 PM", "3PM", "15:04:05"}

// ParseClock accepts 24-hour ("13:30") and 12-hour ("1:30 PM") forms.
func ParseClock(s string) (Clock, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "" {
		return 0, fmt.Errorf("roster: empty time of day")
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return Clock(t.Hour()*60 + t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("roster: unrecognised time of day %q", s)
}

// On places the clock on the calendar day of date in loc.
func (c Clock) On(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, int(c)/60, int(c)%60, 0, 0, loc)
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}
