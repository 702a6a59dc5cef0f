// Package repository implements the Postgres-backed session store. The
// sentinel errors below let the service layer distinguish storage
// outcomes without inspecting driver error codes itself.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when the targeted session or reservation
	// row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoCapacity is returned by Reserve when the session has no
	// remaining spots.
	ErrNoCapacity = errors.New("session has no remaining capacity")

	// ErrSessionClosed is returned by Reserve when the session is
	// cancelled or its end time has passed.
	ErrSessionClosed = errors.New("session is cancelled or has ended")

	// ErrDuplicateReservation is returned by Reserve when the user
	// already holds a confirmed reservation for the session.
	ErrDuplicateReservation = errors.New("active reservation already exists")

	// ErrNotActive is returned by Cancel when the reservation is not in
	// the confirmed state.
	ErrNotActive = errors.New("reservation is not active")

	// ErrCapacityBelowReserved is returned by Update when the new
	// capacity would fall below the current reserved count.
	ErrCapacityBelowReserved = errors.New("capacity below reserved count")

	// ErrSerialization is returned when Postgres aborts a transaction
	// due to a serialization failure or deadlock. Callers may retry.
	ErrSerialization = errors.New("transaction serialization conflict")
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// classifyPgError translates driver-level Postgres errors into the
// package sentinels. Unrecognized errors pass through unchanged.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrDuplicateReservation
		case pgSerializationFailure, pgDeadlockDetected:
			return ErrSerialization
		}
	}
	return err
}
