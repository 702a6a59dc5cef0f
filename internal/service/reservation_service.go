package service

import (
	"context"
	"errors"

	"session-service/internal/events"
	"session-service/internal/model"
	"session-service/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrSessionFull          = errors.New("session is full")
	ErrSessionUnavailable   = errors.New("session is cancelled or already ended")
	ErrAlreadyReserved      = errors.New("user already has an active reservation for this session")
	ErrReservationNotActive = errors.New("reservation is already cancelled")
	ErrNotReservationOwner  = errors.New("caller does not own this reservation")
)

// admissionRetries bounds how often a reservation is retried when the
// store aborts the transaction with a serialization conflict.
const admissionRetries = 3

type ReservationService interface {
	CreateReservation(ctx context.Context, sessionID, userID uuid.UUID) (*model.Reservation, error)
	GetReservation(ctx context.Context, reservationID, callerID uuid.UUID, role string) (*model.Reservation, error)
	CancelReservation(ctx context.Context, reservationID, callerID uuid.UUID, role string) error
	ListUserReservations(ctx context.Context, userID uuid.UUID, filter repository.ReservationFilter) (*repository.PaginatedReservationDetails, error)
	ListSessionReservations(ctx context.Context, sessionID, callerID uuid.UUID, role string, filter repository.ReservationFilter) (*repository.PaginatedReservations, error)
	CancelAllForUser(ctx context.Context, userID uuid.UUID) (int, error)
}

type reservationService struct {
	reservationRepo repository.ReservationRepository
	sessionRepo     repository.SessionRepository
	publisher       events.EventPublisher
}

func NewReservationService(reservationRepo repository.ReservationRepository, sessionRepo repository.SessionRepository, pub events.EventPublisher) ReservationService {
	return &reservationService{
		reservationRepo: reservationRepo,
		sessionRepo:     sessionRepo,
		publisher:       pub,
	}
}

func (s *reservationService) CreateReservation(ctx context.Context, sessionID, userID uuid.UUID) (*model.Reservation, error) {
	var reservation *model.Reservation
	var err error

	for attempt := 0; attempt < admissionRetries; attempt++ {
		reservation, err = s.reservationRepo.Reserve(ctx, sessionID, userID)
		if !errors.Is(err, repository.ErrSerialization) {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrSessionNotFound
		case errors.Is(err, repository.ErrSessionClosed):
			return nil, ErrSessionUnavailable
		case errors.Is(err, repository.ErrDuplicateReservation):
			return nil, ErrAlreadyReserved
		case errors.Is(err, repository.ErrNoCapacity), errors.Is(err, repository.ErrSerialization):
			// A lost race on the last spot surfaces the same way as a
			// full session, never as an internal error.
			return nil, ErrSessionFull
		default:
			return nil, err
		}
	}

	go s.publisher.PublishReservationCreated(reservation)

	return reservation, nil
}

func (s *reservationService) GetReservation(ctx context.Context, reservationID, callerID uuid.UUID, role string) (*model.Reservation, error) {
	reservation, err := s.reservationRepo.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation == nil {
		return nil, ErrReservationNotFound
	}
	if role != RoleAdmin && reservation.UserID != callerID {
		return nil, ErrNotReservationOwner
	}

	return reservation, nil
}

func (s *reservationService) CancelReservation(ctx context.Context, reservationID, callerID uuid.UUID, role string) error {
	reservation, err := s.reservationRepo.FindByID(ctx, reservationID)
	if err != nil {
		return err
	}
	if reservation == nil {
		return ErrReservationNotFound
	}
	if role != RoleAdmin && reservation.UserID != callerID {
		return ErrNotReservationOwner
	}

	err = s.reservationRepo.Cancel(ctx, reservationID)

	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return ErrReservationNotFound
		case errors.Is(err, repository.ErrNotActive):
			return ErrReservationNotActive
		default:
			return err
		}
	}

	go s.publisher.PublishReservationCancelled(reservation.ID, reservation.SessionID, reservation.UserID)

	return nil
}

func (s *reservationService) ListUserReservations(ctx context.Context, userID uuid.UUID, filter repository.ReservationFilter) (*repository.PaginatedReservationDetails, error) {
	normalizeReservationFilter(&filter)
	return s.reservationRepo.ListByUser(ctx, userID, filter)
}

func (s *reservationService) ListSessionReservations(ctx context.Context, sessionID, callerID uuid.UUID, role string, filter repository.ReservationFilter) (*repository.PaginatedReservations, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if role != RoleAdmin && session.CoachID != callerID {
		return nil, ErrNotSessionOwner
	}

	normalizeReservationFilter(&filter)
	return s.reservationRepo.ListBySession(ctx, sessionID, filter)
}

func (s *reservationService) CancelAllForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.reservationRepo.CancelAllUpcomingForUser(ctx, userID)
}

func normalizeReservationFilter(filter *repository.ReservationFilter) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
}
