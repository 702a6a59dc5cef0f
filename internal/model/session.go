package model

import (
	"time"

	"github.com/google/uuid"
)

type Session struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Title           string    `db:"title" json:"title"`
	Description     string    `db:"description" json:"description"`
	CoachID         uuid.UUID `db:"coach_id" json:"coach_id"`
	Capacity        int       `db:"capacity" json:"capacity"`
	ReservedCount   int       `db:"reserved_count" json:"reserved_count"`
	StartAt         time.Time `db:"start_at" json:"start_at"`
	EndAt           time.Time `db:"end_at" json:"end_at"`
	Location        string    `db:"location" json:"location"`
	SessionType     string    `db:"session_type" json:"session_type"`
	DifficultyLevel string    `db:"difficulty_level" json:"difficulty_level"`
	IsCancelled     bool      `db:"is_cancelled" json:"is_cancelled"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// SessionDetails is the read model returned to clients. CoachName is
// resolved from the identity service at read time and is never stored.
type SessionDetails struct {
	Session
	CoachName string `json:"coach_name,omitempty"`
}

// SessionUpdate carries a partial update. Nil fields are left unchanged.
type SessionUpdate struct {
	Title           *string    `json:"title,omitempty"`
	Description     *string    `json:"description,omitempty"`
	Capacity        *int       `json:"capacity,omitempty"`
	StartAt         *time.Time `json:"start_at,omitempty"`
	EndAt           *time.Time `json:"end_at,omitempty"`
	Location        *string    `json:"location,omitempty"`
	SessionType     *string    `json:"session_type,omitempty"`
	DifficultyLevel *string    `json:"difficulty_level,omitempty"`
	IsCancelled     *bool      `json:"is_cancelled,omitempty"`
}

// IsEmpty reports whether the update contains no fields at all.
func (u *SessionUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Capacity == nil &&
		u.StartAt == nil && u.EndAt == nil && u.Location == nil &&
		u.SessionType == nil && u.DifficultyLevel == nil && u.IsCancelled == nil
}
