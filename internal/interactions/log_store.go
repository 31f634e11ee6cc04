package interactions

import (
	"context"

	"github.com/wolfman30/dental-booking-core/pkg/logging"
)

// LogStore writes interactions to the structured log. It is used when no
// database is configured.
type LogStore struct {
	logger *logging.Logger
}

func NewLogStore(logger *logging.Logger) *LogStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogStore{logger: logger.Component("interactions")}
}

func (s *LogStore) Save(ctx context.Context, in Interaction) error {
	s.logger.InfoContext(ctx, "patient interaction",
		"interaction_id", in.ID.String(),
		"type", string(in.Type),
		"success", in.Success,
		"outcome", in.Outcome,
		"appointment_id", in.AppointmentID,
		"contact_id", in.ContactID,
		"doctor", in.Doctor,
		"service", in.Service,
		"error", in.ErrorMessage,
		"trace_id", in.TraceID,
	)
	return nil
}
