package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"

	"github.com/wolfman30/dental-booking-core/internal/appointments"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Success: false, Status: "error", Error: message})
}

type errorBody struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Error   string `json:"error"`

	// Set for partial reschedule failures only.
	OriginalAppointmentID string `json:"original_appointment_id,omitempty"`
	ContactID             string `json:"contact_id,omitempty"`
	AttemptedStart        string `json:"attempted_start,omitempty"`
	AttemptedEnd          string `json:"attempted_end,omitempty"`
}

var statusByKind = map[appointments.Kind]int{
	appointments.KindInvalidTimeInput:       http.StatusBadRequest,
	appointments.KindResourceNotFound:       http.StatusNotFound,
	appointments.KindSlotConflict:           http.StatusConflict,
	appointments.KindInvalidTransition:      http.StatusUnprocessableEntity,
	appointments.KindContactCreationFailed:  http.StatusBadGateway,
	appointments.KindUpstreamUnavailable:    http.StatusServiceUnavailable,
	appointments.KindPartialRescheduleError: http.StatusInternalServerError,
}

// writeError maps a core error to its HTTP status and body. Partial
// reschedule failures carry what staff need to restore the appointment.
func (h *AppointmentsHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := appointments.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	body := errorBody{Success: false, Status: string(kind), Error: err.Error()}

	var partial *appointments.PartialRescheduleError
	if errors.As(err, &partial) {
		body.Status = "partial_failure"
		body.OriginalAppointmentID = partial.OriginalID
		body.ContactID = partial.ContactID
		body.AttemptedStart = partial.Attempted.Start.Format(time.RFC3339)
		body.AttemptedEnd = partial.Attempted.End.Format(time.RFC3339)
	}

	level := h.logger.Warn
	if status >= http.StatusInternalServerError {
		level = h.logger.Error
	}
	level("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
		"kind", string(kind),
		"status", status,
		"error", err,
	)
	if kind == appointments.KindInternal {
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}
