package events

import (
	"context"
	"time"
)

// Streams
const (
	StreamNotifications = "events:notifications"
	StreamPayments      = "events:payments"
)

// Event types
const (
	EventNotification     = "notification"
	EventPaymentReceived  = "payment_received"
	EventPaymentFailed    = "payment_failed"
	EventPayoutSettled    = "payout_settled"
	EventJobStatusChanged = "job_status_changed"
)

type Event struct {
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// UserID returns the payload's owning user, if any.
func (e Event) UserID() string {
	s, _ := e.Payload["user_id"].(string)
	return s
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
