package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"session-service/internal/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PaginationMeta struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	TotalItems  int `json:"total_items"`
	PerPage     int `json:"per_page"`
}

type PaginatedSessions struct {
	Data []model.Session `json:"data"`
	Meta PaginationMeta  `json:"meta"`
}

// SessionFilter narrows List results. Zero values mean "no filter".
type SessionFilter struct {
	Date        *time.Time
	SessionType string
	CoachID     *uuid.UUID
	IncludePast bool
	Page        int
	Limit       int
}

type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) (*model.Session, error)
	FindByID(ctx context.Context, sessionID uuid.UUID) (*model.Session, error)
	Update(ctx context.Context, sessionID uuid.UUID, update *model.SessionUpdate) (*model.Session, error)
	Delete(ctx context.Context, sessionID uuid.UUID) error
	List(ctx context.Context, filter SessionFilter) (*PaginatedSessions, error)
}

type postgresSessionRepository struct {
	db *sqlx.DB
}

func NewPostgresSessionRepository(db *sqlx.DB) SessionRepository {
	return &postgresSessionRepository{db: db}
}

const sessionColumns = `id, title, description, coach_id, capacity, reserved_count,
		start_at, end_at, location, session_type, difficulty_level, is_cancelled,
		created_at, updated_at`

func (r *postgresSessionRepository) Create(ctx context.Context, session *model.Session) (*model.Session, error) {
	query := `
		INSERT INTO sessions (title, description, coach_id, capacity, start_at, end_at, location, session_type, difficulty_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, reserved_count, is_cancelled, created_at, updated_at
	`

	row := r.db.QueryRowxContext(ctx, query,
		session.Title, session.Description, session.CoachID, session.Capacity,
		session.StartAt, session.EndAt, session.Location, session.SessionType, session.DifficultyLevel,
	)
	err := row.Scan(&session.ID, &session.ReservedCount, &session.IsCancelled, &session.CreatedAt, &session.UpdatedAt)

	if err != nil {
		return nil, err
	}

	return session, nil
}

func (r *postgresSessionRepository) FindByID(ctx context.Context, sessionID uuid.UUID) (*model.Session, error) {
	var session model.Session
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	err := r.db.GetContext(ctx, &session, query, sessionID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return &session, nil
}

// Update applies only the fields present on the update. A capacity
// change carries a guard so the counter can never be squeezed below the
// reservations already admitted; when the guard misses, the session is
// re-read to tell a missing row apart from a rejected shrink.
func (r *postgresSessionRepository) Update(ctx context.Context, sessionID uuid.UUID, update *model.SessionUpdate) (*model.Session, error) {
	setParts := []string{}
	args := []interface{}{}
	argID := 1

	addSet := func(column string, value interface{}) {
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, argID))
		args = append(args, value)
		argID++
	}

	if update.Title != nil {
		addSet("title", *update.Title)
	}
	if update.Description != nil {
		addSet("description", *update.Description)
	}
	if update.Capacity != nil {
		addSet("capacity", *update.Capacity)
	}
	if update.StartAt != nil {
		addSet("start_at", *update.StartAt)
	}
	if update.EndAt != nil {
		addSet("end_at", *update.EndAt)
	}
	if update.Location != nil {
		addSet("location", *update.Location)
	}
	if update.SessionType != nil {
		addSet("session_type", *update.SessionType)
	}
	if update.DifficultyLevel != nil {
		addSet("difficulty_level", *update.DifficultyLevel)
	}
	if update.IsCancelled != nil {
		addSet("is_cancelled", *update.IsCancelled)
	}

	setParts = append(setParts, "updated_at = now()")

	query := fmt.Sprintf(`UPDATE sessions SET %s WHERE id = $%d`, strings.Join(setParts, ", "), argID)
	args = append(args, sessionID)
	argID++

	if update.Capacity != nil {
		query += fmt.Sprintf(" AND reserved_count <= $%d", argID)
		args = append(args, *update.Capacity)
	}

	query += " RETURNING " + sessionColumns

	var session model.Session
	err := r.db.GetContext(ctx, &session, query, args...)

	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, classifyPgError(err)
		}

		existing, findErr := r.FindByID(ctx, sessionID)
		if findErr != nil {
			return nil, findErr
		}
		if existing == nil {
			return nil, ErrNotFound
		}
		return nil, ErrCapacityBelowReserved
	}

	return &session, nil
}

func (r *postgresSessionRepository) Delete(ctx context.Context, sessionID uuid.UUID) error {
	// Reservations go with the session via ON DELETE CASCADE.
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *postgresSessionRepository) List(ctx context.Context, filter SessionFilter) (*PaginatedSessions, error) {
	offset := (filter.Page - 1) * filter.Limit

	baseQuery := `SELECT ` + sessionColumns + ` FROM sessions WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.Date != nil {
		day := filter.Date.Truncate(24 * time.Hour)
		baseQuery += fmt.Sprintf(" AND start_at >= $%d AND start_at < $%d", argID, argID+1)
		args = append(args, day, day.Add(24*time.Hour))
		argID += 2
	}
	if filter.SessionType != "" {
		baseQuery += fmt.Sprintf(" AND session_type = $%d", argID)
		args = append(args, filter.SessionType)
		argID++
	}
	if filter.CoachID != nil {
		baseQuery += fmt.Sprintf(" AND coach_id = $%d", argID)
		args = append(args, *filter.CoachID)
		argID++
	}
	if !filter.IncludePast {
		baseQuery += " AND end_at >= now()"
	}

	countQuery := "SELECT COUNT(*) FROM (" + baseQuery + ") AS count_query"
	var totalItems int
	err := r.db.GetContext(ctx, &totalItems, countQuery, args...)
	if err != nil {
		return nil, err
	}

	baseQuery += fmt.Sprintf(" ORDER BY start_at ASC LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, filter.Limit, offset)

	var sessions []model.Session
	err = r.db.SelectContext(ctx, &sessions, baseQuery, args...)
	if err != nil {
		return nil, err
	}

	if sessions == nil {
		sessions = []model.Session{}
	}

	totalPages := (totalItems + filter.Limit - 1) / filter.Limit

	return &PaginatedSessions{
		Data: sessions,
		Meta: PaginationMeta{
			CurrentPage: filter.Page,
			TotalPages:  totalPages,
			TotalItems:  totalItems,
			PerPage:     filter.Limit,
		},
	}, nil
}
