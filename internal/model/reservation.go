package model

import (
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

type Reservation struct {
	ID         uuid.UUID         `db:"id" json:"id"`
	SessionID  uuid.UUID         `db:"session_id" json:"session_id"`
	UserID     uuid.UUID         `db:"user_id" json:"user_id"`
	Status     ReservationStatus `db:"status" json:"status"`
	ReservedAt time.Time         `db:"reserved_at" json:"reserved_at"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time         `db:"updated_at" json:"updated_at"`
}

// ReservationDetails joins a reservation with the session it claims a
// spot on, for user-facing listings.
type ReservationDetails struct {
	Reservation
	SessionTitle string    `db:"session_title" json:"session_title"`
	SessionStart time.Time `db:"session_start" json:"session_start"`
	SessionEnd   time.Time `db:"session_end" json:"session_end"`
	Location     string    `db:"location" json:"location"`
}
