package availability

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-booking-core/internal/roster"
)

var practice = roster.Default()

func at(day, hour, minute int) time.Time {
	return time.Date(2025, 6, day, hour, minute, 0, 0, practice.Location())
}

func appt(id string, start, end time.Time) Appointment {
	return Appointment{ID: id, Window: Window{Start: start, End: end}, Operatory: "operatory_7"}
}

func wednesday() roster.PracticeSchedule {
	return practice.ScheduleFor(at(18, 0, 0))
}

func TestOverlapsHalfOpen(t *testing.T) {
	nine, nineThirty, ten, tenThirty := at(18, 9, 0), at(18, 9, 30), at(18, 10, 0), at(18, 10, 30)

	assert.True(t, Overlaps(nineThirty, ten, nine, ten))
	assert.False(t, Overlaps(ten, tenThirty, nine, ten), "touching end is free")
	assert.False(t, Overlaps(nine, nineThirty, nineThirty, ten), "touching start is free")
	assert.True(t, Overlaps(nine, tenThirty, nineThirty, ten), "containment overlaps")
}

func TestComputeSlotsClosedDay(t *testing.T) {
	sunday := practice.ScheduleFor(at(22, 0, 0))
	day := ComputeSlots(at(22, 0, 0), sunday, nil)

	assert.Equal(t, StatusClosed, day.Status)
	assert.Empty(t, day.Slots)
	assert.Zero(t, day.TotalCount)
}

func TestComputeSlotsGridAvoidsLunch(t *testing.T) {
	sched := wednesday()
	day := ComputeSlots(sched.Date, sched, nil)

	require.Equal(t, StatusOpen, day.Status)
	assert.Equal(t, 14, day.TotalCount)
	assert.Equal(t, 14, day.FreeCount)

	lunch := Window{Start: sched.LunchStart, End: sched.LunchEnd}
	hours := Window{Start: sched.Open, End: sched.Close}
	for i, s := range day.Slots {
		assert.Equal(t, sched.SlotDuration, s.Duration())
		assert.False(t, s.Overlaps(lunch), "slot %s overlaps lunch", s.Start)
		assert.True(t, hours.Contains(s.Window))
		assert.Zero(t, s.Start.Sub(sched.Open)%sched.SlotDuration, "slot not aligned")
		if i > 0 {
			assert.True(t, day.Slots[i-1].Start.Before(s.Start))
		}
	}
	assert.Equal(t, at(18, 12, 30), day.Slots[7].Start)
	assert.Equal(t, at(18, 14, 0), day.Slots[8].Start)
}

func TestComputeSlotsMarksBookedCells(t *testing.T) {
	sched := wednesday()
	day := ComputeSlots(sched.Date, sched, []Appointment{
		appt("a1", at(18, 9, 0), at(18, 10, 0)),
		{ID: "gone", Window: Window{Start: at(18, 10, 0), End: at(18, 11, 0)}, Cancelled: true},
		{ID: "done", Window: Window{Start: at(18, 11, 0), End: at(18, 11, 30)}, Completed: true},
	})

	assert.Equal(t, 2, day.BookedCount)
	assert.Equal(t, 12, day.FreeCount)
	free := day.FreeSlots()
	require.NotEmpty(t, free)
	assert.Equal(t, at(18, 10, 0), free[0].Start, "slot starting when appointment ends is free")
}

func TestComputeSlotsFullyBookedIsNotClosed(t *testing.T) {
	sched := wednesday()
	day := ComputeSlots(sched.Date, sched, []Appointment{appt("all-day", sched.Open, sched.Close)})

	assert.Equal(t, StatusFullyBooked, day.Status)
	assert.Zero(t, day.FreeCount)
	assert.Equal(t, 14, day.TotalCount)
}

func TestComputeSlotsNormalizesForeignZones(t *testing.T) {
	sched := wednesday()
	// 13:00Z is 09:00 in New York during daylight time.
	utc := Appointment{ID: "utc", Window: Window{
		Start: time.Date(2025, 6, 18, 13, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 18, 13, 30, 0, 0, time.UTC),
	}}
	// 02:00Z on the 19th is still the evening of the 18th locally, after close.
	lateUTC := Appointment{ID: "late", Window: Window{
		Start: time.Date(2025, 6, 19, 2, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 19, 3, 0, 0, 0, time.UTC),
	}}
	day := ComputeSlots(sched.Date, sched, []Appointment{utc, lateUTC})

	require.NotEmpty(t, day.Slots)
	assert.False(t, day.Slots[0].Available)
	assert.Equal(t, 1, day.BookedCount)
}

func TestCheckWindowBoundaries(t *testing.T) {
	sched := wednesday()
	booked := []Appointment{appt("APT-9", at(18, 9, 0), at(18, 10, 0))}

	v := CheckWindow(Window{Start: at(18, 9, 30), End: at(18, 10, 0)}, sched, booked)
	assert.Equal(t, StateTaken, v.State)
	assert.Equal(t, ReasonConflict, v.Reason)
	require.NotNil(t, v.Conflict)
	assert.Equal(t, "APT-9", v.Conflict.ID)
	assert.False(t, v.Bookable())

	v = CheckWindow(Window{Start: at(18, 10, 0), End: at(18, 10, 30)}, sched, booked)
	assert.Equal(t, StateFree, v.State)
	assert.True(t, v.Bookable())
}

func TestCheckWindowMultiSlotSpanIsAtomic(t *testing.T) {
	sched := wednesday()
	booked := []Appointment{appt("mid", at(18, 9, 30), at(18, 10, 0))}

	first := CheckWindow(NewWindow(at(18, 9, 0), 30*time.Minute), sched, booked)
	assert.True(t, first.Bookable(), "first half-hour cell alone is free")

	span := CheckWindow(NewWindow(at(18, 9, 0), 60*time.Minute), sched, booked)
	assert.Equal(t, StateTaken, span.State)
	assert.Equal(t, "mid", span.Conflict.ID)
}

func TestCheckWindowScheduleRules(t *testing.T) {
	sched := wednesday()
	tests := []struct {
		name   string
		window Window
		reason string
	}{
		{"before opening", NewWindow(at(18, 8, 30), 30*time.Minute), ReasonOutsideHours},
		{"past closing", NewWindow(at(18, 16, 30), 60*time.Minute), ReasonOutsideHours},
		{"into lunch", NewWindow(at(18, 12, 30), 60*time.Minute), ReasonLunch},
		{"empty window", Window{Start: at(18, 10, 0), End: at(18, 10, 0)}, ReasonInvalidWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := CheckWindow(tt.window, sched, nil)
			assert.Equal(t, StateTaken, v.State)
			assert.Equal(t, tt.reason, v.Reason)
		})
	}

	closed := CheckWindow(NewWindow(at(22, 10, 0), 30*time.Minute), practice.ScheduleFor(at(22, 0, 0)), nil)
	assert.Equal(t, ReasonClosed, closed.Reason)

	lunchEdge := CheckWindow(NewWindow(at(18, 12, 30), 30*time.Minute), sched, nil)
	assert.True(t, lunchEdge.Bookable(), "slot ending at lunch start is free")
}

func TestCheckWindowNormalizesRequest(t *testing.T) {
	sched := wednesday()
	booked := []Appointment{appt("a", at(18, 10, 0), at(18, 10, 30))}
	// 14:00Z is 10:00 local.
	req := NewWindow(time.Date(2025, 6, 18, 14, 0, 0, 0, time.UTC), 30*time.Minute)
	v := CheckWindow(req, sched, booked)
	assert.Equal(t, StateTaken, v.State)
}

func TestUnknownIsNeverBookable(t *testing.T) {
	v := Unknown(errors.New("upstream timeout"))
	assert.Equal(t, StateUnknown, v.State)
	assert.False(t, v.Bookable())
	assert.Equal(t, "unknown", v.String())
}

func TestOperatoryFilters(t *testing.T) {
	appts := []Appointment{
		{ID: "a", Operatory: "operatory_7"},
		{ID: "b", Operatory: "operatory_8"},
		{ID: "c", Operatory: "operatory_7"},
		{ID: "d"},
	}
	assert.Len(t, ForOperatory(appts, "operatory_7"), 3)
	assert.Len(t, ForOperatory(appts, "operatory_8"), 2)
	assert.Len(t, ForOperatory(appts, ""), 4)
	rest := Without(appts, "a")
	require.Len(t, rest, 3)
	assert.Equal(t, "b", rest[0].ID)
}

func TestOnDate(t *testing.T) {
	appts := []Appointment{
		appt("today", at(18, 9, 0), at(18, 9, 30)),
		appt("tomorrow", at(19, 9, 0), at(19, 9, 30)),
		{ID: "cancelled", Window: Window{Start: at(18, 11, 0), End: at(18, 11, 30)}, Cancelled: true},
	}
	got := OnDate(appts, at(18, 0, 0), practice.Location())
	require.Len(t, got, 2)
	assert.Equal(t, "today", got[0].ID)
	assert.Equal(t, "cancelled", got[1].ID)
}

func TestSummarize(t *testing.T) {
	sched := wednesday()
	days := []DayAvailability{
		ComputeSlots(sched.Date, sched, []Appointment{appt("a", at(18, 9, 0), at(18, 12, 0))}),
		ComputeSlots(at(22, 0, 0), practice.ScheduleFor(at(22, 0, 0)), nil),
	}
	out := Summarize(days)
	require.Len(t, out, 2)
	assert.Equal(t, "2025-06-18", out[0].Date)
	assert.Equal(t, "Wednesday", out[0].Weekday)
	assert.Equal(t, 6, out[0].BookedSlots)
	assert.Equal(t, 8, out[0].FreeSlots)
	assert.Equal(t, "12:00 PM", out[0].AvailableTimes[0])
	assert.Equal(t, StatusClosed, out[1].Status)
	assert.Empty(t, out[1].AvailableTimes)
}
