// Package migrations embeds the SQL schema applied by cmd/migrate.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
)

//go:embed *.sql
var FS embed.FS

// RequiredTables lists the tables the service writes to.
var RequiredTables = []string{"patient_interactions"}

// Verify checks that every required table exists.
func Verify(ctx context.Context, db *sql.DB) error {
	for _, table := range RequiredTables {
		var exists bool
		err := db.QueryRowContext(ctx, `SELECT to_regclass($1) IS NOT NULL`, "public."+table).Scan(&exists)
		if err != nil {
			return fmt.Errorf("migrations: check %s: %w", table, err)
		}
		if !exists {
			return fmt.Errorf("migrations: table %s missing, run cmd/migrate", table)
		}
	}
	return nil
}
