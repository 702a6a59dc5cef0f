package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateSessionsTable, downCreateSessionsTable)
}

func upCreateSessionsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
		CREATE TABLE sessions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			coach_id UUID NOT NULL,
			capacity INT NOT NULL CHECK (capacity >= 1),
			reserved_count INT NOT NULL DEFAULT 0 CHECK (reserved_count >= 0 AND reserved_count <= capacity),
			start_at TIMESTAMP WITH TIME ZONE NOT NULL,
			end_at TIMESTAMP WITH TIME ZONE NOT NULL,
			location TEXT NOT NULL,
			session_type TEXT NOT NULL,
			difficulty_level TEXT NOT NULL,
			is_cancelled BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			CHECK (end_at > start_at)
		);

		CREATE INDEX idx_sessions_start_at ON sessions (start_at);
		CREATE INDEX idx_sessions_coach_id ON sessions (coach_id);
	`

	_, err := tx.ExecContext(ctx, query)

	if err != nil {
		return err
	}

	return nil
}

func downCreateSessionsTable(ctx context.Context, tx *sql.Tx) error {
	query := `DROP TABLE IF EXISTS sessions;`
	_, err := tx.ExecContext(ctx, query)

	if err != nil {
		return err
	}

	return nil
}
