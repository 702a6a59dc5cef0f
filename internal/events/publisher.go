package events

import (
	"encoding/json"
	"log"
	"time"

	"session-service/internal/model"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

type EventPublisher interface {
	PublishSessionCreated(session *model.Session) error
	PublishSessionUpdated(session *model.Session) error
	PublishSessionDeleted(sessionID, coachID uuid.UUID) error
	PublishReservationCreated(reservation *model.Reservation) error
	PublishReservationCancelled(reservationID, sessionID, userID uuid.UUID) error
}

type NatsPublisher struct {
	conn *nats.Conn
}

func NewNatsPublisher(natsURL string) (EventPublisher, error) {
	nc, err := nats.Connect(natsURL)

	if err != nil {
		return nil, err
	}

	return &NatsPublisher{conn: nc}, nil
}

type SessionCreatedEvent struct {
	EventType string    `json:"event_type"`
	SessionID uuid.UUID `json:"session_id"`
	CoachID   uuid.UUID `json:"coach_id"`
	Title     string    `json:"title"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	Capacity  int       `json:"capacity"`
}

type SessionUpdatedEvent struct {
	EventType   string    `json:"event_type"`
	SessionID   uuid.UUID `json:"session_id"`
	CoachID     uuid.UUID `json:"coach_id"`
	IsCancelled bool      `json:"is_cancelled"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type SessionDeletedEvent struct {
	EventType string    `json:"event_type"`
	SessionID uuid.UUID `json:"session_id"`
	CoachID   uuid.UUID `json:"coach_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

type ReservationCreatedEvent struct {
	EventType     string    `json:"event_type"`
	ReservationID uuid.UUID `json:"reservation_id"`
	SessionID     uuid.UUID `json:"session_id"`
	UserID        uuid.UUID `json:"user_id"`
	ReservedAt    time.Time `json:"reserved_at"`
}

type ReservationCancelledEvent struct {
	EventType     string    `json:"event_type"`
	ReservationID uuid.UUID `json:"reservation_id"`
	SessionID     uuid.UUID `json:"session_id"`
	UserID        uuid.UUID `json:"user_id"`
	CancelledAt   time.Time `json:"cancelled_at"`
}

func (p *NatsPublisher) publish(subject string, event interface{}) error {
	eventJSON, err := json.Marshal(event)

	if err != nil {
		log.Printf("Error marshalling event JSON: %v", err)
		return err
	}

	err = p.conn.Publish(subject, eventJSON)

	if err != nil {
		log.Printf("Error publishing to NATS: %v", err)
		return err
	}

	log.Printf("Published event to NATS on subject '%s'", subject)

	return nil
}

func (p *NatsPublisher) PublishSessionCreated(session *model.Session) error {
	return p.publish("session.created", SessionCreatedEvent{
		EventType: "session.created",
		SessionID: session.ID,
		CoachID:   session.CoachID,
		Title:     session.Title,
		StartAt:   session.StartAt,
		EndAt:     session.EndAt,
		Capacity:  session.Capacity,
	})
}

func (p *NatsPublisher) PublishSessionUpdated(session *model.Session) error {
	return p.publish("session.updated", SessionUpdatedEvent{
		EventType:   "session.updated",
		SessionID:   session.ID,
		CoachID:     session.CoachID,
		IsCancelled: session.IsCancelled,
		UpdatedAt:   session.UpdatedAt,
	})
}

func (p *NatsPublisher) PublishSessionDeleted(sessionID, coachID uuid.UUID) error {
	return p.publish("session.deleted", SessionDeletedEvent{
		EventType: "session.deleted",
		SessionID: sessionID,
		CoachID:   coachID,
		DeletedAt: time.Now(),
	})
}

func (p *NatsPublisher) PublishReservationCreated(reservation *model.Reservation) error {
	return p.publish("reservation.created", ReservationCreatedEvent{
		EventType:     "reservation.created",
		ReservationID: reservation.ID,
		SessionID:     reservation.SessionID,
		UserID:        reservation.UserID,
		ReservedAt:    reservation.ReservedAt,
	})
}

func (p *NatsPublisher) PublishReservationCancelled(reservationID, sessionID, userID uuid.UUID) error {
	return p.publish("reservation.cancelled", ReservationCancelledEvent{
		EventType:     "reservation.cancelled",
		ReservationID: reservationID,
		SessionID:     sessionID,
		UserID:        userID,
		CancelledAt:   time.Now(),
	})
}
