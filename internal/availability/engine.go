// Package availability turns a practice schedule and its booked appointments
// into bookable slots, and decides whether a requested window is free.
package availability

import (
	"sort"
	"time"

	"github.com/wolfman30/dental-booking-core/internal/roster"
)

// Status tags a day so callers can tell "not operating" from "no availability".
type Status string

const (
	StatusOpen        Status = "open"
	StatusClosed      Status = "closed"
	StatusFullyBooked Status = "fully_booked"
)

// Appointment is the engine's view of a booked appointment.
type Appointment struct {
	ID         string
	Window     Window
	ProviderID string
	Operatory  string
	Cancelled  bool
	Completed  bool
}

// Blocking reports whether the appointment occupies its window.
func (a Appointment) Blocking() bool {
	return !a.Cancelled && !a.Completed
}

// Slot is a candidate appointment window. Slots are derived, never stored.
type Slot struct {
	Window
	Available bool
}

// DayAvailability is the slot grid for one date.
type DayAvailability struct {
	Date        time.Time
	Status      Status
	Slots       []Slot
	FreeCount   int
	BookedCount int
	TotalCount  int
}

// FreeSlots returns the bookable slots in start order.
func (d DayAvailability) FreeSlots() []Slot {
	out := make([]Slot, 0, d.FreeCount)
	for _, s := range d.Slots {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}

// ComputeSlots builds the slot grid for a date. Slots are slot-duration
// sized, start at opening time, end no later than closing time and never
// touch the lunch window. A slot is unavailable when any blocking
// appointment overlaps it. Closed days return no slots and StatusClosed.
func ComputeSlots(date time.Time, sched roster.PracticeSchedule, appts []Appointment) DayAvailability {
	day := DayAvailability{Date: sched.Date, Status: StatusClosed}
	if day.Date.IsZero() {
		day.Date = date
	}
	if sched.Closed || sched.SlotDuration <= 0 || !sched.Close.After(sched.Open) {
		return day
	}

	loc := sched.Open.Location()
	blocking := blockingWithin(appts, Window{Start: sched.Open, End: sched.Close}, loc)

	var lunch Window
	if sched.HasLunch() {
		lunch = Window{Start: sched.LunchStart, End: sched.LunchEnd}
	}

	for cur := sched.Open; !cur.Add(sched.SlotDuration).After(sched.Close); cur = cur.Add(sched.SlotDuration) {
		w := NewWindow(cur, sched.SlotDuration)
		if sched.HasLunch() && w.Overlaps(lunch) {
			continue
		}
		slot := Slot{Window: w, Available: true}
		for _, a := range blocking {
			if w.Overlaps(a.Window) {
				slot.Available = false
				break
			}
		}
		day.Slots = append(day.Slots, slot)
		if slot.Available {
			day.FreeCount++
		} else {
			day.BookedCount++
		}
	}

	day.TotalCount = len(day.Slots)
	day.Status = StatusOpen
	if day.FreeCount == 0 {
		day.Status = StatusFullyBooked
	}
	return day
}

// ForOperatory keeps the appointments booked in the given operatory, plus
// the ones with no operatory recorded since they may occupy any room. An
// empty operatory returns appts unchanged.
func ForOperatory(appts []Appointment, operatory string) []Appointment {
	if operatory == "" {
		return appts
	}
	out := make([]Appointment, 0, len(appts))
	for _, a := range appts {
		if a.Operatory == operatory || a.Operatory == "" {
			out = append(out, a)
		}
	}
	return out
}

// Without drops the appointment with the given ID.
func Without(appts []Appointment, id string) []Appointment {
	out := make([]Appointment, 0, len(appts))
	for _, a := range appts {
		if a.ID != id {
			out = append(out, a)
		}
	}
	return out
}

// OnDate keeps the appointments that overlap the calendar day of date in loc.
func OnDate(appts []Appointment, date time.Time, loc *time.Location) []Appointment {
	y, m, d := date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return within(appts, Window{Start: start, End: start.AddDate(0, 0, 1)}, loc)
}

func blockingWithin(appts []Appointment, bounds Window, loc *time.Location) []Appointment {
	out := make([]Appointment, 0, len(appts))
	for _, a := range within(appts, bounds, loc) {
		if a.Blocking() {
			out = append(out, a)
		}
	}
	return out
}

func within(appts []Appointment, bounds Window, loc *time.Location) []Appointment {
	out := make([]Appointment, 0, len(appts))
	for _, a := range appts {
		a.Window = a.Window.In(loc)
		if a.Window.Valid() && a.Window.Overlaps(bounds) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Window.Start.Before(out[j].Window.Start) })
	return out
}
