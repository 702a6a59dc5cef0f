package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"session-service/internal/repository"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	maxRetries    = 3
	retryDelaySec = 2
	dlqSubject    = "billing.membership.cancelled.failed"
)

// MembershipCancelledEvent is emitted by the billing service when a
// member's plan lapses or is revoked. Every upcoming reservation the
// member holds is released in response.
type MembershipCancelledEvent struct {
	EventType   string    `json:"event_type"`
	UserID      uuid.UUID `json:"user_id"`
	CancelledAt time.Time `json:"cancelled_at"`
}

type BillingSubscriber struct {
	natsConn        *nats.Conn
	reservationRepo repository.ReservationRepository
}

func NewBillingSubscriber(natsURL string, reservationRepo repository.ReservationRepository) (*BillingSubscriber, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, err
	}
	log.Println("Billing subscriber connected to NATS.")

	subscriber := &BillingSubscriber{
		natsConn:        nc,
		reservationRepo: reservationRepo,
	}

	subscriber.subscribeToMembershipCancellations()

	return subscriber, nil
}

func (s *BillingSubscriber) subscribeToMembershipCancellations() {
	_, err := s.natsConn.Subscribe("billing.membership.cancelled", func(msg *nats.Msg) {
		var event MembershipCancelledEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Printf("Failed to unmarshal membership cancellation event: %v", err)
			return
		}

		log.Printf("Membership cancelled for user %s, releasing upcoming reservations", event.UserID)

		var cancelErr error
		for attempt := 1; attempt <= maxRetries; attempt++ {
			var released int
			released, cancelErr = s.reservationRepo.CancelAllUpcomingForUser(context.Background(), event.UserID)
			if cancelErr == nil {
				log.Printf("Released %d reservations for user %s", released, event.UserID)
				return
			}

			log.Printf("Failed releasing reservations (attempt %d): %v. Retrying in %d seconds...", attempt, cancelErr, retryDelaySec)
			time.Sleep(time.Second * retryDelaySec)
		}

		log.Printf("Giving up releasing reservations for user %s after %d attempts. Last error: %v", event.UserID, maxRetries, cancelErr)

		if err := s.natsConn.Publish(dlqSubject, msg.Data); err != nil {
			log.Printf("Failed to publish to DLQ '%s': %v", dlqSubject, err)
		} else {
			log.Printf("Published failed membership cancellation to DLQ '%s'", dlqSubject)
		}
	})
	if err != nil {
		log.Printf("Failed to subscribe to billing events: %v", err)
	} else {
		log.Println("Billing subscriber listening to billing.membership.cancelled")
	}
}
