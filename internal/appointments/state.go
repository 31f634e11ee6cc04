package appointments

import "github.com/wolfman30/dental-booking-core/internal/pms"

// State is the lifecycle state of an appointment as seen by this service.
type State string

const (
	StateRequested   State = "requested"
	StateBooked      State = "booked"
	StateConfirmed   State = "confirmed"
	StateCancelled   State = "cancelled"
	StateRescheduled State = "rescheduled"
	StateCompleted   State = "completed"
)

var transitions = map[State][]State{
	StateRequested: {StateBooked},
	StateBooked:    {StateConfirmed, StateCancelled, StateRescheduled},
	StateConfirmed: {StateConfirmed, StateCancelled, StateRescheduled},
}

// CanTransition reports whether an appointment in from may move to to.
// Confirmed to confirmed is allowed so confirmation stays idempotent.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// StateOf derives the lifecycle state of a PMS appointment.
func StateOf(a pms.Appointment) State {
	switch {
	case a.IsCancelled():
		return StateCancelled
	case a.Completed:
		return StateCompleted
	case a.Confirmed:
		return StateConfirmed
	default:
		return StateBooked
	}
}
