package service

import (
	"context"
	"errors"

	"session-service/internal/events"
	"session-service/internal/identity"
	"session-service/internal/model"
	"session-service/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrInvalidSessionTime    = errors.New("session end time must be after start time")
	ErrInvalidCapacity       = errors.New("capacity must be at least 1")
	ErrCapacityBelowReserved = errors.New("capacity cannot be reduced below current reservations")
	ErrNotSessionOwner       = errors.New("caller does not own this session")
	ErrEmptyUpdate           = errors.New("update contains no fields")
)

const RoleAdmin = "admin"

type SessionService interface {
	CreateSession(ctx context.Context, session *model.Session) (*model.Session, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*model.SessionDetails, error)
	UpdateSession(ctx context.Context, sessionID, callerID uuid.UUID, role string, update *model.SessionUpdate) (*model.Session, error)
	DeleteSession(ctx context.Context, sessionID, callerID uuid.UUID, role string) error
	ListSessions(ctx context.Context, filter repository.SessionFilter) (*repository.PaginatedSessions, error)
}

type sessionService struct {
	sessionRepo repository.SessionRepository
	publisher   events.EventPublisher
	identity    identity.Client
}

func NewSessionService(repo repository.SessionRepository, pub events.EventPublisher, idc identity.Client) SessionService {
	return &sessionService{sessionRepo: repo, publisher: pub, identity: idc}
}

func (s *sessionService) CreateSession(ctx context.Context, session *model.Session) (*model.Session, error) {
	if session.Capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	if !session.EndAt.After(session.StartAt) {
		return nil, ErrInvalidSessionTime
	}

	createdSession, err := s.sessionRepo.Create(ctx, session)

	if err != nil {
		return nil, err
	}

	go s.publisher.PublishSessionCreated(createdSession)

	return createdSession, nil
}

func (s *sessionService) GetSession(ctx context.Context, sessionID uuid.UUID) (*model.SessionDetails, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	details := &model.SessionDetails{Session: *session}

	// Coach display metadata is owned by the identity service; a lookup
	// failure degrades to an empty name rather than failing the read.
	if coach, err := s.identity.GetUser(ctx, session.CoachID); err == nil {
		details.CoachName = coach.Name
	}

	return details, nil
}

func (s *sessionService) UpdateSession(ctx context.Context, sessionID, callerID uuid.UUID, role string, update *model.SessionUpdate) (*model.Session, error) {
	if update.IsEmpty() {
		return nil, ErrEmptyUpdate
	}
	if update.Capacity != nil && *update.Capacity < 1 {
		return nil, ErrInvalidCapacity
	}

	existing, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrSessionNotFound
	}
	if role != RoleAdmin && existing.CoachID != callerID {
		return nil, ErrNotSessionOwner
	}

	// Absent time fields keep their stored values; the resulting window
	// still has to be coherent.
	startAt := existing.StartAt
	endAt := existing.EndAt
	if update.StartAt != nil {
		startAt = *update.StartAt
	}
	if update.EndAt != nil {
		endAt = *update.EndAt
	}
	if !endAt.After(startAt) {
		return nil, ErrInvalidSessionTime
	}

	updated, err := s.sessionRepo.Update(ctx, sessionID, update)

	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrSessionNotFound
		case errors.Is(err, repository.ErrCapacityBelowReserved):
			return nil, ErrCapacityBelowReserved
		default:
			return nil, err
		}
	}

	go s.publisher.PublishSessionUpdated(updated)

	return updated, nil
}

func (s *sessionService) DeleteSession(ctx context.Context, sessionID, callerID uuid.UUID, role string) error {
	existing, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrSessionNotFound
	}
	if role != RoleAdmin && existing.CoachID != callerID {
		return ErrNotSessionOwner
	}

	err = s.sessionRepo.Delete(ctx, sessionID)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	go s.publisher.PublishSessionDeleted(sessionID, existing.CoachID)

	return nil
}

func (s *sessionService) ListSessions(ctx context.Context, filter repository.SessionFilter) (*repository.PaginatedSessions, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}

	return s.sessionRepo.List(ctx, filter)
}

const (
	defaultPageSize = 10
	maxPageSize     = 50
)
