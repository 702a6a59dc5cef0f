package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"session-service/internal/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ReservationFilter narrows listing results. A nil Status matches every
// status; IncludePast keeps reservations whose session already ended.
type ReservationFilter struct {
	Status      *model.ReservationStatus
	IncludePast bool
	Page        int
	Limit       int
}

type PaginatedReservations struct {
	Data []model.Reservation `json:"data"`
	Meta PaginationMeta      `json:"meta"`
}

type PaginatedReservationDetails struct {
	Data []model.ReservationDetails `json:"data"`
	Meta PaginationMeta             `json:"meta"`
}

type ReservationRepository interface {
	// Reserve admits a user onto a session. The capacity check and the
	// counter increment run as one transaction so two racing callers can
	// never both take the last spot.
	Reserve(ctx context.Context, sessionID, userID uuid.UUID) (*model.Reservation, error)
	FindByID(ctx context.Context, reservationID uuid.UUID) (*model.Reservation, error)
	// Cancel marks a confirmed reservation cancelled and releases its
	// spot in the same transaction.
	Cancel(ctx context.Context, reservationID uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID, filter ReservationFilter) (*PaginatedReservationDetails, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, filter ReservationFilter) (*PaginatedReservations, error)
	// CancelAllUpcomingForUser cancels every confirmed reservation the
	// user holds on sessions that have not yet ended and returns how
	// many were cancelled. Used when billing revokes a membership.
	CancelAllUpcomingForUser(ctx context.Context, userID uuid.UUID) (int, error)
}

type postgresReservationRepository struct {
	db *sqlx.DB
}

func NewPostgresReservationRepository(db *sqlx.DB) ReservationRepository {
	return &postgresReservationRepository{db: db}
}

const reservationColumns = `id, session_id, user_id, status, reserved_at, created_at, updated_at`

func (r *postgresReservationRepository) Reserve(ctx context.Context, sessionID, userID uuid.UUID) (*model.Reservation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Conditional claim: the WHERE guard makes the row update itself the
	// admission check, so concurrent callers serialize on the session row.
	claimQuery := `
		UPDATE sessions
		SET reserved_count = reserved_count + 1, updated_at = now()
		WHERE id = $1
		  AND is_cancelled = FALSE
		  AND end_at > now()
		  AND reserved_count < capacity
		RETURNING reserved_count
	`

	var reservedCount int
	err = tx.GetContext(ctx, &reservedCount, claimQuery, sessionID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.classifyClaimMiss(ctx, tx, sessionID, userID)
		}

		return nil, classifyPgError(err)
	}

	insertQuery := `
		INSERT INTO reservations (session_id, user_id)
		VALUES ($1, $2)
		RETURNING ` + reservationColumns

	var reservation model.Reservation
	err = tx.GetContext(ctx, &reservation, insertQuery, sessionID, userID)

	if err != nil {
		// The partial unique index on (session_id, user_id) for confirmed
		// rows rejects duplicate active reservations here; the rollback
		// undoes the counter increment.
		return nil, classifyPgError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyPgError(err)
	}

	return &reservation, nil
}

// classifyClaimMiss reads the session inside the same transaction to
// report why the conditional claim matched no row. The end-time check
// uses the database clock, the same one the claim query consulted.
func (r *postgresReservationRepository) classifyClaimMiss(ctx context.Context, tx *sqlx.Tx, sessionID, userID uuid.UUID) error {
	var state struct {
		IsCancelled bool `db:"is_cancelled"`
		HasEnded    bool `db:"has_ended"`
	}

	query := `SELECT is_cancelled, end_at <= now() AS has_ended FROM sessions WHERE id = $1`
	err := tx.GetContext(ctx, &state, query, sessionID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}

		return err
	}

	if state.IsCancelled || state.HasEnded {
		return ErrSessionClosed
	}

	// An open session only rejects the claim when it is full. A caller
	// who already holds a spot on it gets the duplicate answer, not the
	// capacity one.
	var alreadyHeld bool
	heldQuery := `SELECT EXISTS (SELECT 1 FROM reservations WHERE session_id = $1 AND user_id = $2 AND status = 'confirmed')`
	if err := tx.GetContext(ctx, &alreadyHeld, heldQuery, sessionID, userID); err != nil {
		return err
	}
	if alreadyHeld {
		return ErrDuplicateReservation
	}

	return ErrNoCapacity
}

func (r *postgresReservationRepository) FindByID(ctx context.Context, reservationID uuid.UUID) (*model.Reservation, error) {
	var reservation model.Reservation
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	err := r.db.GetContext(ctx, &reservation, query, reservationID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return &reservation, nil
}

func (r *postgresReservationRepository) Cancel(ctx context.Context, reservationID uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// The status guard makes re-cancellation a no-match rather than a
	// second decrement.
	cancelQuery := `
		UPDATE reservations
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status = 'confirmed'
		RETURNING session_id
	`

	var sessionID uuid.UUID
	err = tx.GetContext(ctx, &sessionID, cancelQuery, reservationID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			var status string
			findErr := tx.GetContext(ctx, &status, `SELECT status FROM reservations WHERE id = $1`, reservationID)
			if errors.Is(findErr, sql.ErrNoRows) {
				return ErrNotFound
			}
			if findErr != nil {
				return findErr
			}
			return ErrNotActive
		}

		return classifyPgError(err)
	}

	releaseQuery := `
		UPDATE sessions
		SET reserved_count = GREATEST(reserved_count - 1, 0), updated_at = now()
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, releaseQuery, sessionID); err != nil {
		return classifyPgError(err)
	}

	if err := tx.Commit(); err != nil {
		return classifyPgError(err)
	}

	return nil
}

func (r *postgresReservationRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter ReservationFilter) (*PaginatedReservationDetails, error) {
	offset := (filter.Page - 1) * filter.Limit

	baseQuery := `
		SELECT r.id, r.session_id, r.user_id, r.status, r.reserved_at, r.created_at, r.updated_at,
		       s.title AS session_title, s.start_at AS session_start, s.end_at AS session_end, s.location
		FROM reservations r
		JOIN sessions s ON s.id = r.session_id
		WHERE r.user_id = $1
	`

	args := []interface{}{userID}
	argID := 2

	if filter.Status != nil {
		baseQuery += fmt.Sprintf(" AND r.status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if !filter.IncludePast {
		baseQuery += " AND s.end_at >= now()"
	}

	countQuery := "SELECT COUNT(*) FROM (" + baseQuery + ") AS count_query"
	var totalItems int
	if err := r.db.GetContext(ctx, &totalItems, countQuery, args...); err != nil {
		return nil, err
	}

	baseQuery += fmt.Sprintf(" ORDER BY r.reserved_at DESC LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, filter.Limit, offset)

	var reservations []model.ReservationDetails
	if err := r.db.SelectContext(ctx, &reservations, baseQuery, args...); err != nil {
		return nil, err
	}

	if reservations == nil {
		reservations = []model.ReservationDetails{}
	}

	totalPages := (totalItems + filter.Limit - 1) / filter.Limit

	return &PaginatedReservationDetails{
		Data: reservations,
		Meta: PaginationMeta{
			CurrentPage: filter.Page,
			TotalPages:  totalPages,
			TotalItems:  totalItems,
			PerPage:     filter.Limit,
		},
	}, nil
}

func (r *postgresReservationRepository) ListBySession(ctx context.Context, sessionID uuid.UUID, filter ReservationFilter) (*PaginatedReservations, error) {
	offset := (filter.Page - 1) * filter.Limit

	baseQuery := `SELECT ` + reservationColumns + ` FROM reservations WHERE session_id = $1`

	args := []interface{}{sessionID}
	argID := 2

	if filter.Status != nil {
		baseQuery += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}

	countQuery := "SELECT COUNT(*) FROM (" + baseQuery + ") AS count_query"
	var totalItems int
	if err := r.db.GetContext(ctx, &totalItems, countQuery, args...); err != nil {
		return nil, err
	}

	baseQuery += fmt.Sprintf(" ORDER BY reserved_at ASC LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, filter.Limit, offset)

	var reservations []model.Reservation
	if err := r.db.SelectContext(ctx, &reservations, baseQuery, args...); err != nil {
		return nil, err
	}

	if reservations == nil {
		reservations = []model.Reservation{}
	}

	totalPages := (totalItems + filter.Limit - 1) / filter.Limit

	return &PaginatedReservations{
		Data: reservations,
		Meta: PaginationMeta{
			CurrentPage: filter.Page,
			TotalPages:  totalPages,
			TotalItems:  totalItems,
			PerPage:     filter.Limit,
		},
	}, nil
}

func (r *postgresReservationRepository) CancelAllUpcomingForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	cancelQuery := `
		UPDATE reservations r
		SET status = 'cancelled', updated_at = now()
		FROM sessions s
		WHERE r.session_id = s.id
		  AND r.user_id = $1
		  AND r.status = 'confirmed'
		  AND s.end_at > now()
		RETURNING r.session_id
	`

	rows, err := tx.QueryxContext(ctx, cancelQuery, userID)
	if err != nil {
		return 0, classifyPgError(err)
	}

	released := map[uuid.UUID]int{}
	cancelled := 0
	for rows.Next() {
		var sessionID uuid.UUID
		if err := rows.Scan(&sessionID); err != nil {
			rows.Close()
			return 0, err
		}
		released[sessionID]++
		cancelled++
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	releaseQuery := `
		UPDATE sessions
		SET reserved_count = GREATEST(reserved_count - $2, 0), updated_at = now()
		WHERE id = $1
	`
	for sessionID, count := range released {
		if _, err := tx.ExecContext(ctx, releaseQuery, sessionID, count); err != nil {
			return 0, classifyPgError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, classifyPgError(err)
	}

	return cancelled, nil
}
