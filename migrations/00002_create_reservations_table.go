package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateReservationsTable, downCreateReservationsTable)
}

func upCreateReservationsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
		CREATE TABLE reservations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			user_id UUID NOT NULL,
			status TEXT NOT NULL DEFAULT 'confirmed' CHECK (status IN ('confirmed', 'cancelled')),
			reserved_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);

		-- One active reservation per (session, user); cancelled rows stay
		-- behind as history and do not block a re-reservation.
		CREATE UNIQUE INDEX idx_reservations_active
			ON reservations (session_id, user_id)
			WHERE status = 'confirmed';

		CREATE INDEX idx_reservations_user_id ON reservations (user_id);
		CREATE INDEX idx_reservations_session_id ON reservations (session_id);
	`

	_, err := tx.ExecContext(ctx, query)

	if err != nil {
		return err
	}

	return nil
}

func downCreateReservationsTable(ctx context.Context, tx *sql.Tx) error {
	query := `DROP TABLE IF EXISTS reservations;`
	_, err := tx.ExecContext(ctx, query)
	if err != nil {
		return err
	}
	return nil
}
