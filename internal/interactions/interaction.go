// Package interactions records the outcome of every appointment lifecycle
// operation for staff reporting. Logging is fire-and-forget: it never blocks
// or fails the operation being logged.
package interactions

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type classifies an interaction.
type Type string

const (
	TypeBooking      Type = "booking"
	TypeRescheduling Type = "rescheduling"
	TypeConfirmation Type = "confirmation"
	TypeCancellation Type = "cancellation"
	TypeMisc         Type = "misc"
)

// Interaction is one logged lifecycle outcome.
type Interaction struct {
	ID            uuid.UUID
	Type          Type
	PatientName   string
	ContactNumber string
	ContactID     string
	AppointmentID string
	Service       string
	Doctor        string
	Success       bool
	Outcome       string // success, slot_conflict, partial_failure, ...
	ErrorMessage  string
	Reason        string
	Details       map[string]any
	TraceID       string
	CreatedAt     time.Time
}

// Store persists interactions.
type Store interface {
	Save(ctx context.Context, in Interaction) error
}

// TypeSummary aggregates interactions of one type.
type TypeSummary struct {
	Type      Type
	Total     int
	Succeeded int
}

// SuccessRate is the share of successful interactions, in percent.
func (s TypeSummary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Total) * 100
}
