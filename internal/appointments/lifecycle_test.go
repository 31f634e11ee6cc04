package appointments

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-booking-core/internal/availability"
	"github.com/wolfman30/dental-booking-core/internal/interactions"
	"github.com/wolfman30/dental-booking-core/internal/pms"
)

func TestConfirmIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.gw.seed("APT-1", "contacts/C-1", "001", "operatory_7", "2025-06-18 10:00:00", "2025-06-18 11:00:00")

	first, err := h.svc.Confirm(context.Background(), "APT-1", "patient confirmed by phone")
	require.NoError(t, err)
	second, err := h.svc.Confirm(context.Background(), "appointments/APT-1", "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, StateConfirmed, second.State)
	assert.Equal(t, 1, h.gw.count("confirm_appointment"))
	assert.Zero(t, h.gw.count("create_appointment"))
	assert.True(t, h.gw.appointment("APT-1").Confirmed)

	logs := h.interactions.all()
	require.Len(t, logs, 2)
	assert.True(t, logs[0].Success)
	assert.True(t, logs[1].Success)
	assert.Equal(t, true, logs[1].Details["already_confirmed"])
}

func TestConfirmRejectsCancelledAppointment(t *testing.T) {
	h := newHarness(t)
	h.gw.seed("APT-1", "contacts/C-1", "001", "operatory_7", "2025-06-18 10:00:00", "2025-06-18 11:00:00")
	_, err := h.svc.Cancel(context.Background(), "APT-1", "")
	require.NoError(t, err)

	_, err = h.svc.Confirm(context.Background(), "APT-1", "")
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Zero(t, h.gw.count("confirm_appointment"))
}

func TestConfirmUnknownAppointment(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Confirm(context.Background(), "nope", "")
	require.ErrorIs(t, err, ErrResourceNotFound)

	_, err = h.svc.Confirm(context.Background(), "  ", "")
	require.ErrorIs(t, err, ErrInvalidTimeInput)
}

func TestConfirmByPhonePicksNextUpcoming(t *testing.T) {
	h := newHarness(t)
	h.gw.seedContact("C-1", "Jane", "Doe", "5551234567")
	h.gw.seed("PAST", "contacts/C-1", "001", "operatory_7", "2025-05-20 10:00:00", "2025-05-20 11:00:00")
	h.gw.seed("LATER", "contacts/C-1", "001", "operatory_7", "2025-06-25 10:00:00", "2025-06-25 11:00:00")
	h.gw.seed("NEXT", "contacts/C-1", "001", "operatory_7", "2025-06-18 10:00:00", "2025-06-18 11:00:00")

	result, err := h.svc.ConfirmByPhone(context.Background(), "+1 (555) 123-4567", "")
	require.NoError(t, err)
	assert.Equal(t, "appointments/NEXT", result.AppointmentID)
	assert.True(t, h.gw.appointment("NEXT").Confirmed)
	assert.False(t, h.gw.appointment("LATER").Confirmed)

	_, err = h.svc.ConfirmByPhone(context.Background(), "5559999999", "")
	require.ErrorIs(t, err, ErrResourceNotFound)
}

func TestCancelTreatsAlreadyCancelledAsSuccess(t *testing.T) {
	h := newHarness(t)
	h.gw.seed("APT-1", "contacts/C-1", "001", "operatory_7", "2025-06-18 10:00:00", "2025-06-18 11:00:00")

	first, err := h.svc.Cancel(context.Background(), "APT-1", "patient request")
	require.NoError(t, err)
	assert.False(t, first.AlreadyCancelled)
	assert.Equal(t, StateCancelled, first.State)

	second, err := h.svc.Cancel(context.Background(), "appointments/APT-1", "patient request")
	require.NoError(t, err)
	assert.True(t, second.AlreadyCancelled)
	assert.Equal(t, first.AppointmentID, second.AppointmentID)

	logs := h.interactions.all()
	require.Len(t, logs, 2)
	assert.Equal(t, interactions.TypeCancellation, logs[1].Type)
	assert.True(t, logs[1].Success)
}

func TestCancelUpstreamFailure(t *testing.T) {
	h := newHarness(t)
	h.gw.cancelErr = &pms.APIError{Operation: "cancel_appointment", StatusCode: http.StatusBadGateway}

	_, err := h.svc.Cancel(context.Background(), "APT-1", "")
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestCancelInvalidatesCachedAppointment(t *testing.T) {
	h := newHarness(t)
	h.gw.seed("APT-1", "contacts/C-1", "001", "operatory_7", "2025-06-18 10:00:00", "2025-06-18 11:00:00")

	got, err := h.svc.GetAppointment(context.Background(), "APT-1")
	require.NoError(t, err)
	assert.Equal(t, StateBooked, got.State)

	_, err = h.svc.Cancel(context.Background(), "APT-1", "")
	require.NoError(t, err)

	got, err = h.svc.GetAppointment(context.Background(), "APT-1")
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, got.State)
	assert.Equal(t, 2, h.gw.count("get_appointment"))
}

func TestRescheduleToNewDateUsesRosterDoctor(t *testing.T) {
	h := newHarness(t)
	// Dr. Hanna (001) works Wednesdays, Dr. Parmar (101) Thursdays.
	h.gw.seed("APT-1", "contacts/C-1", "001", "operatory_7", "2025-06-18 10:00:00", "2025-06-18 11:00:00")

	result, err := h.svc.Reschedule(context.Background(), RescheduleRequest{
		AppointmentID: "APT-1",
		Date:          "2025-06-19",
		StartTime:     "2:00 PM",
	})
	require.NoError(t, err)

	assert.Equal(t, "101", result.ProviderID)
	assert.Equal(t, "operatory_11", result.OperatoryID)
	assert.Equal(t, ProviderRostered, result.ProviderChange)
	assert.Equal(t, "appointments/APT-1", result.OriginalID)
	assert.Equal(t, h.at(19, 14, 0), result.Window.Start)
	assert.Equal(t, h.at(19, 15, 0), result.Window.End, "original duration is kept")
	assert.Equal(t, []string{StepFetch, StepResolve, StepPrecheck, StepCancel, StepCreate}, result.Steps)

	calls := h.gw.callLog()
	cancelAt, createAt := -1, -1
	for i, c := range calls {
		switch c {
		case "cancel_appointment":
			cancelAt = i
		case "create_appointment":
			createAt = i
		}
	}
	require.NotEqual(t, -1, cancelAt)
	require.NotEqual(t, -1, createAt)
	assert.Less(t, cancelAt, createAt, "original is cancelled before the replacement is created")

	assert.True(t, h.gw.appointment("APT-1").Cancelled)
	replacement := h.gw.appointment(result.NewAppointmentID)
	assert.Equal(t, "contacts/C-1", replacement.ContactID)
	assert.Equal(t, "101", replacement.ProviderID())
	assert.Equal(t, "operatory_11", replacement.OperatoryID())
	assert.Equal(t, "2025-06-19 14:00:00", replacement.WallStartTime)
}

func TestRescheduleWithExplicitDoctor(t *testing.T) {
	h := newHarness(t)
	h.gw.seed("APT-1", "contacts/C-1", "001", "operatory_7", "2025-06-18 10:00:00", "2025-06-18 11:00:00")

	result, err := h.svc.Reschedule(context.Background(), RescheduleRequest{
		AppointmentID: "APT-1",
		Date:          "2025-06-19",
		StartTime:     "9:00 AM",
		EndTime:       "9:30 AM",
		NewDoctor:     "Lee",
	})
	require.NoError(t, err)
	assert.Equal(t, "102", result.ProviderID)
	assert.Equal(t, "operatory_10", result.OperatoryID)
	assert.Equal(t, ProviderRequested, result.ProviderChange)
	assert.Equal(t, 30*time.Minute, result.Window.Duration())
}

func TestRescheduleSameDayKeepsProvider(t *testing.T) {
	h := newHarness(t)
	h.gw.seed("APT-1", "contacts/C-1", "100", "operatory_8", "2025-06-18 10:00:00", "2025-06-18 11:00:00")

	// Overlaps the original itself, which must not count as a conflict.
	result, err := h.svc.Reschedule(context.Background(), RescheduleRequest{
		AppointmentID: "APT-1",
		Date:          "2025-06-18",
		StartTime:     "10:30",
	})
	require.NoError(t, err)
	assert.Equal(t, "100", result.ProviderID)
	assert.Equal(t, "operatory_8", result.OperatoryID)
	assert.Equal(t, ProviderKept, result.ProviderChange)
}

func TestReschedulePartialFailure(t *testing.T) {
	h := newHarness(t)
	h.gw.seed("APT-1", "contacts/C-1", "001", "operatory_7", "2025-06-18 10:00:00", "2025-06-18 11:00:00")
	h.gw.createAppointmentErr = &pms.APIError{Operation: "create_appointment", StatusCode: http.StatusInternalServerError, Body: "internal error"}

	_, err := h.svc.Reschedule(context.Background(), RescheduleRequest{
		AppointmentID: "APT-1",
		Date:          "2025-06-19",
		StartTime:     "2:00 PM",
	})
	require.Error(t, err)

	var partial *PartialRescheduleError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, "appointments/APT-1", partial.OriginalID)
	assert.Equal(t, "contacts/C-1", partial.ContactID)
	assert.Equal(t, h.at(19, 14, 0), partial.Attempted.Start)
	assert.Equal(t, h.at(19, 15, 0), partial.Attempted.End)
	assert.ErrorIs(t, err, ErrPartialRescheduleFailure)
	assert.Equal(t, KindPartialRescheduleError, KindOf(err))
	assert.NotErrorIs(t, err, ErrSlotConflict)

	assert.True(t, h.gw.appointment("APT-1").Cancelled)
	assert.Equal(t, 1, h.gw.count("create_appointment"), "replacement creation is never retried")

	logs := h.interactions.all()
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Success)
	assert.Equal(t, string(KindPartialRescheduleError), logs[0].Outcome)
	assert.Equal(t, []string{"reschedule:" + string(KindPartialRescheduleError)}, h.recorder.outcomes)
}

func TestRescheduleConflictLeavesOriginalUntouched(t *testing.T) {
	h := newHarness(t)
	h.gw.seed("APT-1", "contacts/C-1", "001", "operatory_7", "2025-06-18 10:00:00", "2025-06-18 11:00:00")
	h.gw.seed("BUSY", "contacts/C-2", "101", "operatory_11", "2025-06-19 14:30:00", "2025-06-19 15:00:00")

	_, err := h.svc.Reschedule(context.Background(), RescheduleRequest{
		AppointmentID: "APT-1",
		Date:          "2025-06-19",
		StartTime:     "2:00 PM",
	})
	require.ErrorIs(t, err, ErrSlotConflict)
	assert.False(t, h.gw.appointment("APT-1").Cancelled)
	assert.Zero(t, h.gw.count("cancel_appointment"))
}

func TestRescheduleCancelFailureChangesNothing(t *testing.T) {
	h := newHarness(t)
	h.gw.seed("APT-1", "contacts/C-1", "001", "operatory_7", "2025-06-18 10:00:00", "2025-06-18 11:00:00")
	h.gw.cancelErr = &pms.APIError{Operation: "cancel_appointment", StatusCode: http.StatusServiceUnavailable}

	_, err := h.svc.Reschedule(context.Background(), RescheduleRequest{AppointmentID: "APT-1", Date: "2025-06-19", StartTime: "2:00 PM"})
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.NotErrorIs(t, err, ErrPartialRescheduleFailure)
	assert.Zero(t, h.gw.count("create_appointment"))
}

func TestRescheduleRejectsCancelledOriginal(t *testing.T) {
	h := newHarness(t)
	h.gw.seed("APT-1", "contacts/C-1", "001", "operatory_7", "2025-06-18 10:00:00", "2025-06-18 11:00:00")
	_, err := h.svc.Cancel(context.Background(), "APT-1", "")
	require.NoError(t, err)

	_, err = h.svc.Reschedule(context.Background(), RescheduleRequest{AppointmentID: "APT-1", Date: "2025-06-19", StartTime: "2:00 PM"})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRescheduleValidatesInput(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Reschedule(context.Background(), RescheduleRequest{AppointmentID: "APT-1", Date: "2025-06-19"})
	require.ErrorIs(t, err, ErrInvalidTimeInput)
	_, err = h.svc.Reschedule(context.Background(), RescheduleRequest{AppointmentID: "APT-1", Date: "2025-06-19", StartTime: "3 PM", EndTime: "2 PM"})
	require.ErrorIs(t, err, ErrInvalidTimeInput)
	assert.Empty(t, h.gw.callLog())
}

func TestRescheduleByPhone(t *testing.T) {
	h := newHarness(t)
	h.gw.seedContact("C-1", "Jane", "Doe", "5551234567")
	h.gw.seed("APT-1", "contacts/C-1", "001", "operatory_7", "2025-06-18 10:00:00", "2025-06-18 11:00:00")

	result, err := h.svc.RescheduleByPhone(context.Background(), "555-123-4567", RescheduleRequest{Date: "2025-06-20", StartTime: "9:00 AM"})
	require.NoError(t, err)
	assert.Equal(t, "appointments/APT-1", result.OriginalID)
	assert.Equal(t, "102", result.ProviderID, "Dr. Lee works Fridays")
}

func TestCheckAvailabilityReadsThroughCache(t *testing.T) {
	h := newHarness(t)
	h.gw.seed("APT-1", "contacts/C-1", "001", "operatory_7", "2025-06-18 09:00:00", "2025-06-18 10:00:00")
	req := AvailabilityRequest{Date: "2025-06-18", Days: 3}

	days, err := h.svc.CheckAvailability(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, 1, h.gw.count("appointments_in_range"))

	wed := days[0]
	assert.Equal(t, availability.StatusOpen, wed.Status)
	assert.Equal(t, 2, wed.BookedCount)
	assert.False(t, wed.Slots[0].Available)
	assert.False(t, wed.Slots[1].Available)
	assert.True(t, wed.Slots[2].Available)

	_, err = h.svc.CheckAvailability(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, h.gw.count("appointments_in_range"), "fresh schedule is served from cache")

	h.clock.Advance(25 * time.Hour)
	_, err = h.svc.CheckAvailability(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, h.gw.count("appointments_in_range"), "expired schedule is fetched exactly once more")
}

func TestCheckAvailabilityClosedDay(t *testing.T) {
	h := newHarness(t)
	days, err := h.svc.CheckAvailability(context.Background(), AvailabilityRequest{Date: "2025-06-21", Days: 2})
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, availability.StatusOpen, days[0].Status, "Saturday half day")
	assert.Equal(t, availability.StatusClosed, days[1].Status)
	assert.Empty(t, days[1].Slots)
}

func TestCheckAvailabilityByDoctorAndLimits(t *testing.T) {
	h := newHarness(t)
	h.gw.seed("OTHER_ROOM", "contacts/C-2", "100", "operatory_8", "2025-06-18 09:00:00", "2025-06-18 10:00:00")

	days, err := h.svc.CheckAvailability(context.Background(), AvailabilityRequest{Date: "2025-06-18", Days: 1, Doctor: "Dr. Hanna"})
	require.NoError(t, err)
	assert.Zero(t, days[0].BookedCount)

	_, err = h.svc.CheckAvailability(context.Background(), AvailabilityRequest{Date: "2025-06-18", Days: 30})
	require.ErrorIs(t, err, ErrInvalidTimeInput)
}

func TestBookInvalidatesCachedSchedule(t *testing.T) {
	h := newHarness(t)
	req := AvailabilityRequest{Date: "2025-06-18", Days: 3}
	_, err := h.svc.CheckAvailability(context.Background(), req)
	require.NoError(t, err)

	_, err = h.svc.Book(context.Background(), examRequest("2025-06-18", "9:00 AM"))
	require.NoError(t, err)

	days, err := h.svc.CheckAvailability(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, days[0].Slots[0].Available)
}

func TestFindAppointmentsByPhone(t *testing.T) {
	h := newHarness(t)
	h.gw.seedContact("C-1", "Jane", "Doe", "5551234567")
	h.gw.seed("B", "contacts/C-1", "001", "operatory_7", "2025-06-25 10:00:00", "2025-06-25 11:00:00")
	h.gw.seed("A", "contacts/C-1", "001", "operatory_7", "2025-06-18 10:00:00", "2025-06-18 11:00:00")

	got, err := h.svc.FindAppointmentsByPhone(context.Background(), "5551234567")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "appointments/A", got[0].AppointmentID)
	assert.Equal(t, "appointments/B", got[1].AppointmentID)

	_, err = h.svc.FindAppointmentsByPhone(context.Background(), "5551234567")
	require.NoError(t, err)
	assert.Equal(t, 1, h.gw.count("find_contacts"))
	assert.Equal(t, 1, h.gw.count("appointments_by_contact"))
}
