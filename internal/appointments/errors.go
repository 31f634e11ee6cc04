package appointments

import (
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/dental-booking-core/internal/availability"
)

var (
	// ErrInvalidTimeInput covers unparseable dates and times and missing
	// required fields. It is always returned before any upstream call.
	ErrInvalidTimeInput = errors.New("invalid time input")

	// ErrContactCreationFailed is returned when the PMS did not create the
	// patient contact a booking needs.
	ErrContactCreationFailed = errors.New("contact creation failed")

	// ErrResourceNotFound is returned when no provider or operatory can be
	// bound, or the appointment does not exist upstream.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrSlotConflict is returned when the requested window is not free.
	ErrSlotConflict = errors.New("slot conflict")

	// ErrUpstreamUnavailable covers network failures, timeouts and non-2xx
	// answers from the PMS.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrInvalidTransition is returned for a lifecycle change the current
	// appointment state does not allow, such as confirming a cancelled
	// appointment.
	ErrInvalidTransition = errors.New("invalid appointment state transition")

	// ErrPartialRescheduleFailure matches every *PartialRescheduleError.
	ErrPartialRescheduleFailure = errors.New("partial reschedule failure")
)

// Kind is the stable name of an error category.
type Kind string

const (
	KindInvalidTimeInput       Kind = "invalid_time_input"
	KindContactCreationFailed  Kind = "contact_creation_failed"
	KindResourceNotFound       Kind = "resource_not_found"
	KindSlotConflict           Kind = "slot_conflict"
	KindUpstreamUnavailable    Kind = "upstream_unavailable"
	KindInvalidTransition      Kind = "invalid_transition"
	KindPartialRescheduleError Kind = "partial_reschedule_failure"
	KindInternal               Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	// Partial failure first: it wraps the upstream cause.
	{ErrPartialRescheduleFailure, KindPartialRescheduleError},
	{ErrInvalidTimeInput, KindInvalidTimeInput},
	{ErrContactCreationFailed, KindContactCreationFailed},
	{ErrResourceNotFound, KindResourceNotFound},
	{ErrSlotConflict, KindSlotConflict},
	{ErrInvalidTransition, KindInvalidTransition},
	{ErrUpstreamUnavailable, KindUpstreamUnavailable},
}

// KindOf classifies err. Nil maps to the empty kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// PartialRescheduleError reports that the original appointment was cancelled
// but its replacement was not created. The patient has no appointment on
// record until staff follow up.
type PartialRescheduleError struct {
	OriginalID  string
	ContactID   string
	Attempted   availability.Window
	ProviderID  string
	OperatoryID string
	Err         error
}

func (e *PartialRescheduleError) Error() string {
	return fmt.Sprintf("reschedule: appointment %s was cancelled but the replacement for %s-%s was not created: %v",
		e.OriginalID,
		e.Attempted.Start.Format(time.RFC3339),
		e.Attempted.End.Format(time.RFC3339),
		e.Err,
	)
}

func (e *PartialRescheduleError) Unwrap() error {
	return e.Err
}

func (e *PartialRescheduleError) Is(target error) bool {
	return target == ErrPartialRescheduleFailure
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTimeInput, fmt.Sprintf(format, args...))
}
