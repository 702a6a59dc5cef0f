package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"session-service/internal/model"
	"session-service/internal/repository"
	"session-service/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type noopPublisher struct{}

func (noopPublisher) PublishSessionCreated(*model.Session) error  { return nil }
func (noopPublisher) PublishSessionUpdated(*model.Session) error  { return nil }
func (noopPublisher) PublishSessionDeleted(_, _ uuid.UUID) error  { return nil }
func (noopPublisher) PublishReservationCreated(*model.Reservation) error {
	return nil
}
func (noopPublisher) PublishReservationCancelled(_, _, _ uuid.UUID) error {
	return nil
}

// memReservationRepo reproduces the store's atomic admission semantics
// in memory: the capacity check and the increment happen under one lock,
// exactly as the conditional update serializes them on the session row.
type memReservationRepo struct {
	mu       sync.Mutex
	capacity int
	reserved int
	active   map[uuid.UUID]uuid.UUID // reservation id -> user id
	byUser   map[uuid.UUID]bool

	reserveErrs []error // consumed first, for injected failures
}

func newMemReservationRepo(capacity int) *memReservationRepo {
	return &memReservationRepo{
		capacity: capacity,
		active:   map[uuid.UUID]uuid.UUID{},
		byUser:   map[uuid.UUID]bool{},
	}
}

func (m *memReservationRepo) Reserve(_ context.Context, sessionID, userID uuid.UUID) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.reserveErrs) > 0 {
		err := m.reserveErrs[0]
		m.reserveErrs = m.reserveErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	if m.byUser[userID] {
		return nil, repository.ErrDuplicateReservation
	}
	if m.reserved >= m.capacity {
		return nil, repository.ErrNoCapacity
	}

	m.reserved++
	m.byUser[userID] = true
	id := uuid.New()
	m.active[id] = userID

	return &model.Reservation{
		ID:         id,
		SessionID:  sessionID,
		UserID:     userID,
		Status:     model.ReservationStatusConfirmed,
		ReservedAt: time.Now(),
	}, nil
}

func (m *memReservationRepo) FindByID(_ context.Context, reservationID uuid.UUID) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID, ok := m.active[reservationID]
	if !ok {
		return nil, nil
	}
	return &model.Reservation{
		ID:     reservationID,
		UserID: userID,
		Status: model.ReservationStatusConfirmed,
	}, nil
}

func (m *memReservationRepo) Cancel(_ context.Context, reservationID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID, ok := m.active[reservationID]
	if !ok {
		return repository.ErrNotActive
	}
	delete(m.active, reservationID)
	delete(m.byUser, userID)
	m.reserved--
	return nil
}

func (m *memReservationRepo) ListByUser(context.Context, uuid.UUID, repository.ReservationFilter) (*repository.PaginatedReservationDetails, error) {
	return &repository.PaginatedReservationDetails{}, nil
}

func (m *memReservationRepo) ListBySession(context.Context, uuid.UUID, repository.ReservationFilter) (*repository.PaginatedReservations, error) {
	return &repository.PaginatedReservations{}, nil
}

func (m *memReservationRepo) CancelAllUpcomingForUser(context.Context, uuid.UUID) (int, error) {
	return 0, nil
}

func (m *memReservationRepo) reservedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reserved
}

type stubSessionRepo struct {
	session *model.Session
}

func (s *stubSessionRepo) Create(_ context.Context, session *model.Session) (*model.Session, error) {
	return session, nil
}
func (s *stubSessionRepo) FindByID(context.Context, uuid.UUID) (*model.Session, error) {
	return s.session, nil
}
func (s *stubSessionRepo) Update(context.Context, uuid.UUID, *model.SessionUpdate) (*model.Session, error) {
	return s.session, nil
}
func (s *stubSessionRepo) Delete(context.Context, uuid.UUID) error { return nil }
func (s *stubSessionRepo) List(context.Context, repository.SessionFilter) (*repository.PaginatedSessions, error) {
	return &repository.PaginatedSessions{}, nil
}

func TestCreateReservation_LastSpotRace(t *testing.T) {
	repo := newMemReservationRepo(1)
	svc := service.NewReservationService(repo, &stubSessionRepo{}, noopPublisher{})

	sessionID := uuid.New()
	userA := uuid.New()
	userB := uuid.New()

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, userID := range []uuid.UUID{userA, userB} {
		wg.Add(1)
		go func(i int, userID uuid.UUID) {
			defer wg.Done()
			_, results[i] = svc.CreateReservation(context.Background(), sessionID, userID)
		}(i, userID)
	}
	wg.Wait()

	successes := 0
	fulls := 0
	for _, err := range results {
		switch err {
		case nil:
			successes++
		case service.ErrSessionFull:
			fulls++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	require.Equal(t, 1, successes)
	require.Equal(t, 1, fulls)
	require.Equal(t, 1, repo.reservedCount())
}

func TestCreateReservation_Duplicate(t *testing.T) {
	repo := newMemReservationRepo(15)
	svc := service.NewReservationService(repo, &stubSessionRepo{}, noopPublisher{})

	sessionID := uuid.New()
	userID := uuid.New()

	_, err := svc.CreateReservation(context.Background(), sessionID, userID)
	require.NoError(t, err)

	_, err = svc.CreateReservation(context.Background(), sessionID, userID)
	require.ErrorIs(t, err, service.ErrAlreadyReserved)
	require.Equal(t, 1, repo.reservedCount())
}

func TestCreateReservation_ReserveCancelReserveAgain(t *testing.T) {
	repo := newMemReservationRepo(15)
	svc := service.NewReservationService(repo, &stubSessionRepo{}, noopPublisher{})

	sessionID := uuid.New()
	userID := uuid.New()

	reservation, err := svc.CreateReservation(context.Background(), sessionID, userID)
	require.NoError(t, err)

	err = svc.CancelReservation(context.Background(), reservation.ID, userID, "member")
	require.NoError(t, err)
	require.Equal(t, 0, repo.reservedCount())

	_, err = svc.CreateReservation(context.Background(), sessionID, userID)
	require.NoError(t, err)
	require.Equal(t, 1, repo.reservedCount())
}

func TestCreateReservation_RetriesSerializationConflicts(t *testing.T) {
	repo := newMemReservationRepo(15)
	repo.reserveErrs = []error{repository.ErrSerialization, repository.ErrSerialization}
	svc := service.NewReservationService(repo, &stubSessionRepo{}, noopPublisher{})

	_, err := svc.CreateReservation(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
}

func TestCreateReservation_SerializationExhaustionIsFull(t *testing.T) {
	repo := newMemReservationRepo(15)
	repo.reserveErrs = []error{
		repository.ErrSerialization,
		repository.ErrSerialization,
		repository.ErrSerialization,
	}
	svc := service.NewReservationService(repo, &stubSessionRepo{}, noopPublisher{})

	_, err := svc.CreateReservation(context.Background(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, service.ErrSessionFull)
}

func TestCreateReservation_SessionMissing(t *testing.T) {
	repo := newMemReservationRepo(15)
	repo.reserveErrs = []error{repository.ErrNotFound}
	svc := service.NewReservationService(repo, &stubSessionRepo{}, noopPublisher{})

	_, err := svc.CreateReservation(context.Background(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, service.ErrSessionNotFound)
}

func TestCreateReservation_SessionClosed(t *testing.T) {
	repo := newMemReservationRepo(15)
	repo.reserveErrs = []error{repository.ErrSessionClosed}
	svc := service.NewReservationService(repo, &stubSessionRepo{}, noopPublisher{})

	_, err := svc.CreateReservation(context.Background(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, service.ErrSessionUnavailable)
}

func TestCancelReservation_NotOwner(t *testing.T) {
	repo := newMemReservationRepo(15)
	svc := service.NewReservationService(repo, &stubSessionRepo{}, noopPublisher{})

	reservation, err := svc.CreateReservation(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)

	err = svc.CancelReservation(context.Background(), reservation.ID, uuid.New(), "member")
	require.ErrorIs(t, err, service.ErrNotReservationOwner)
	require.Equal(t, 1, repo.reservedCount())
}

func TestCancelReservation_AdminMayCancelAny(t *testing.T) {
	repo := newMemReservationRepo(15)
	svc := service.NewReservationService(repo, &stubSessionRepo{}, noopPublisher{})

	reservation, err := svc.CreateReservation(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)

	err = svc.CancelReservation(context.Background(), reservation.ID, uuid.New(), "admin")
	require.NoError(t, err)
	require.Equal(t, 0, repo.reservedCount())
}

func TestCancelReservation_NotFound(t *testing.T) {
	repo := newMemReservationRepo(15)
	svc := service.NewReservationService(repo, &stubSessionRepo{}, noopPublisher{})

	err := svc.CancelReservation(context.Background(), uuid.New(), uuid.New(), "admin")
	require.ErrorIs(t, err, service.ErrReservationNotFound)
}

func TestListSessionReservations_RequiresOwnership(t *testing.T) {
	coachID := uuid.New()
	sessionRepo := &stubSessionRepo{session: &model.Session{ID: uuid.New(), CoachID: coachID}}
	repo := newMemReservationRepo(15)
	svc := service.NewReservationService(repo, sessionRepo, noopPublisher{})

	_, err := svc.ListSessionReservations(context.Background(), uuid.New(), uuid.New(), "coach", repository.ReservationFilter{})
	require.ErrorIs(t, err, service.ErrNotSessionOwner)

	_, err = svc.ListSessionReservations(context.Background(), uuid.New(), coachID, "coach", repository.ReservationFilter{})
	require.NoError(t, err)
}
