package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"session-service/internal/identity"
	"session-service/internal/model"
	"session-service/internal/repository"
	"session-service/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeSessionRepo struct {
	stubSessionRepo
	updateErr error
	deleted   bool
}

func (f *fakeSessionRepo) Update(_ context.Context, _ uuid.UUID, _ *model.SessionUpdate) (*model.Session, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.session, nil
}

func (f *fakeSessionRepo) Delete(context.Context, uuid.UUID) error {
	f.deleted = true
	return nil
}

type fakeIdentity struct {
	user *identity.User
	err  error
}

func (f *fakeIdentity) GetUser(context.Context, uuid.UUID) (*identity.User, error) {
	return f.user, f.err
}

func upcomingSession(coachID uuid.UUID) *model.Session {
	now := time.Now()
	return &model.Session{
		ID:       uuid.New(),
		Title:    "Morning HIIT",
		CoachID:  coachID,
		Capacity: 15,
		StartAt:  now.Add(24 * time.Hour),
		EndAt:    now.Add(25 * time.Hour),
	}
}

func TestCreateSession_Validation(t *testing.T) {
	svc := service.NewSessionService(&fakeSessionRepo{}, noopPublisher{}, &fakeIdentity{})
	now := time.Now()

	_, err := svc.CreateSession(context.Background(), &model.Session{
		Capacity: 0,
		StartAt:  now,
		EndAt:    now.Add(time.Hour),
	})
	require.ErrorIs(t, err, service.ErrInvalidCapacity)

	_, err = svc.CreateSession(context.Background(), &model.Session{
		Capacity: 10,
		StartAt:  now.Add(time.Hour),
		EndAt:    now.Add(time.Hour),
	})
	require.ErrorIs(t, err, service.ErrInvalidSessionTime)
}

func TestGetSession_EnrichesCoachName(t *testing.T) {
	coachID := uuid.New()
	repo := &fakeSessionRepo{stubSessionRepo{session: upcomingSession(coachID)}, nil, false}
	svc := service.NewSessionService(repo, noopPublisher{}, &fakeIdentity{
		user: &identity.User{ID: coachID, Name: "Dewi Lestari"},
	})

	details, err := svc.GetSession(context.Background(), repo.session.ID)
	require.NoError(t, err)
	require.Equal(t, "Dewi Lestari", details.CoachName)
}

func TestGetSession_IdentityOutageDegrades(t *testing.T) {
	repo := &fakeSessionRepo{stubSessionRepo{session: upcomingSession(uuid.New())}, nil, false}
	svc := service.NewSessionService(repo, noopPublisher{}, &fakeIdentity{
		err: errors.New("identity service unreachable"),
	})

	details, err := svc.GetSession(context.Background(), repo.session.ID)
	require.NoError(t, err)
	require.Empty(t, details.CoachName)
	require.Equal(t, repo.session.Title, details.Title)
}

func TestGetSession_NotFound(t *testing.T) {
	svc := service.NewSessionService(&fakeSessionRepo{}, noopPublisher{}, &fakeIdentity{})

	_, err := svc.GetSession(context.Background(), uuid.New())
	require.ErrorIs(t, err, service.ErrSessionNotFound)
}

func TestUpdateSession_OwnerAndAdminChecks(t *testing.T) {
	coachID := uuid.New()
	repo := &fakeSessionRepo{stubSessionRepo{session: upcomingSession(coachID)}, nil, false}
	svc := service.NewSessionService(repo, noopPublisher{}, &fakeIdentity{})

	title := "Evening Yoga"
	update := &model.SessionUpdate{Title: &title}

	_, err := svc.UpdateSession(context.Background(), repo.session.ID, uuid.New(), "coach", update)
	require.ErrorIs(t, err, service.ErrNotSessionOwner)

	_, err = svc.UpdateSession(context.Background(), repo.session.ID, coachID, "coach", update)
	require.NoError(t, err)

	_, err = svc.UpdateSession(context.Background(), repo.session.ID, uuid.New(), "admin", update)
	require.NoError(t, err)
}

func TestUpdateSession_EmptyUpdate(t *testing.T) {
	svc := service.NewSessionService(&fakeSessionRepo{}, noopPublisher{}, &fakeIdentity{})

	_, err := svc.UpdateSession(context.Background(), uuid.New(), uuid.New(), "admin", &model.SessionUpdate{})
	require.ErrorIs(t, err, service.ErrEmptyUpdate)
}

func TestUpdateSession_ResultingWindowValidated(t *testing.T) {
	coachID := uuid.New()
	repo := &fakeSessionRepo{stubSessionRepo{session: upcomingSession(coachID)}, nil, false}
	svc := service.NewSessionService(repo, noopPublisher{}, &fakeIdentity{})

	// Moving only end_at before the stored start_at must fail even though
	// the update itself carries a single field.
	badEnd := repo.session.StartAt.Add(-time.Hour)
	_, err := svc.UpdateSession(context.Background(), repo.session.ID, coachID, "coach", &model.SessionUpdate{EndAt: &badEnd})
	require.ErrorIs(t, err, service.ErrInvalidSessionTime)
}

func TestUpdateSession_CapacityBelowReserved(t *testing.T) {
	coachID := uuid.New()
	repo := &fakeSessionRepo{
		stubSessionRepo{session: upcomingSession(coachID)},
		repository.ErrCapacityBelowReserved,
		false,
	}
	svc := service.NewSessionService(repo, noopPublisher{}, &fakeIdentity{})

	capacity := 2
	_, err := svc.UpdateSession(context.Background(), repo.session.ID, coachID, "coach", &model.SessionUpdate{Capacity: &capacity})
	require.ErrorIs(t, err, service.ErrCapacityBelowReserved)
}

func TestDeleteSession_OwnerOnly(t *testing.T) {
	coachID := uuid.New()
	repo := &fakeSessionRepo{stubSessionRepo{session: upcomingSession(coachID)}, nil, false}
	svc := service.NewSessionService(repo, noopPublisher{}, &fakeIdentity{})

	err := svc.DeleteSession(context.Background(), repo.session.ID, uuid.New(), "coach")
	require.ErrorIs(t, err, service.ErrNotSessionOwner)
	require.False(t, repo.deleted)

	err = svc.DeleteSession(context.Background(), repo.session.ID, coachID, "coach")
	require.NoError(t, err)
	require.True(t, repo.deleted)
}

func TestListSessions_ClampsPagination(t *testing.T) {
	repo := &pagingSessionRepo{}
	svc := service.NewSessionService(repo, noopPublisher{}, &fakeIdentity{})

	_, err := svc.ListSessions(context.Background(), repository.SessionFilter{Page: 0, Limit: 500})
	require.NoError(t, err)
	require.Equal(t, 1, repo.got.Page)
	require.Equal(t, 50, repo.got.Limit)
}

type pagingSessionRepo struct {
	stubSessionRepo
	got repository.SessionFilter
}

func (p *pagingSessionRepo) List(_ context.Context, filter repository.SessionFilter) (*repository.PaginatedSessions, error) {
	p.got = filter
	return &repository.PaginatedSessions{}, nil
}
