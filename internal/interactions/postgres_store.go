package interactions

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore persists interactions in the patient_interactions table.
type PostgresStore struct {
	db querier
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("interactions: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithQuerier(q querier) *PostgresStore {
	if q == nil {
		panic("interactions: querier required")
	}
	return &PostgresStore{db: q}
}

// Save inserts one interaction. Re-saving an ID is a no-op.
func (s *PostgresStore) Save(ctx context.Context, in Interaction) error {
	details := in.Details
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("interactions: marshal details: %w", err)
	}

	query := `
		INSERT INTO patient_interactions (
			id, interaction_type, patient_name, contact_number, contact_id,
			appointment_id, service_type, doctor, success, outcome,
			error_message, reason, details, trace_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.db.Exec(ctx, query,
		in.ID.String(), string(in.Type), in.PatientName, in.ContactNumber, in.ContactID,
		in.AppointmentID, in.Service, in.Doctor, in.Success, in.Outcome,
		in.ErrorMessage, in.Reason, detailsJSON, in.TraceID, in.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("interactions: insert: %w", err)
	}
	return nil
}

// Summary counts interactions per type created in [from, to).
func (s *PostgresStore) Summary(ctx context.Context, from, to time.Time) ([]TypeSummary, error) {
	query := `
		SELECT interaction_type, COUNT(*), COUNT(*) FILTER (WHERE success)
		FROM patient_interactions
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY interaction_type
		ORDER BY interaction_type
	`
	rows, err := s.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("interactions: summary: %w", err)
	}
	defer rows.Close()

	var out []TypeSummary
	for rows.Next() {
		var (
			typ       string
			total     int
			succeeded int
		)
		if err := rows.Scan(&typ, &total, &succeeded); err != nil {
			return nil, fmt.Errorf("interactions: scan summary: %w", err)
		}
		out = append(out, TypeSummary{Type: Type(typ), Total: total, Succeeded: succeeded})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("interactions: summary rows: %w", err)
	}
	return out, nil
}
