package availability

import (
	"fmt"

	"github.com/wolfman30/dental-booking-core/internal/roster"
)

// State is the tri-state outcome of an availability check.
type State int

const (
	// StateUnknown means the check could not be completed, for example
	// because the booked appointments could not be fetched. It is never
	// bookable.
	StateUnknown State = iota
	StateFree
	StateTaken
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateTaken:
		return "taken"
	default:
		return "unknown"
	}
}

// Reasons a window is taken.
const (
	ReasonClosed        = "closed"
	ReasonOutsideHours  = "outside_hours"
	ReasonLunch         = "lunch"
	ReasonConflict      = "conflict"
	ReasonInvalidWindow = "invalid_window"
)

// Verdict is the result of checking one requested window.
type Verdict struct {
	State    State
	Reason   string
	Conflict *Appointment
	Err      error
}

// Bookable is true only for a free window.
func (v Verdict) Bookable() bool {
	return v.State == StateFree
}

func (v Verdict) String() string {
	switch {
	case v.Conflict != nil:
		return fmt.Sprintf("%s (%s with %s)", v.State, v.Reason, v.Conflict.ID)
	case v.Reason != "":
		return fmt.Sprintf("%s (%s)", v.State, v.Reason)
	default:
		return v.State.String()
	}
}

// Unknown builds the verdict for a check that could not run.
func Unknown(err error) Verdict {
	return Verdict{State: StateUnknown, Err: err}
}

// CheckWindow decides whether the whole requested window can be booked. The
// window is checked as one interval, so a multi-slot request that collides
// with an appointment anywhere inside its span is taken even when some of
// the slot-sized cells it covers are free.
func CheckWindow(w Window, sched roster.PracticeSchedule, appts []Appointment) Verdict {
	if sched.Closed {
		return Verdict{State: StateTaken, Reason: ReasonClosed}
	}
	loc := sched.Open.Location()
	w = w.In(loc)
	if !w.Valid() {
		return Verdict{State: StateTaken, Reason: ReasonInvalidWindow}
	}
	hours := Window{Start: sched.Open, End: sched.Close}
	if !hours.Contains(w) {
		return Verdict{State: StateTaken, Reason: ReasonOutsideHours}
	}
	if sched.HasLunch() && w.Overlaps(Window{Start: sched.LunchStart, End: sched.LunchEnd}) {
		return Verdict{State: StateTaken, Reason: ReasonLunch}
	}
	if conflicts := blockingWithin(appts, w, loc); len(conflicts) > 0 {
		conflict := conflicts[0]
		return Verdict{State: StateTaken, Reason: ReasonConflict, Conflict: &conflict}
	}
	return Verdict{State: StateFree}
}
