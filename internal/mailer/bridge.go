package mailer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pushit/marketplace/internal/events"
	"github.com/pushit/marketplace/internal/models"
	"go.uber.org/zap"
)

type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Bridge emails in-app notifications to their recipients.
type Bridge struct {
	users   UserLookup
	sender  Sender
	baseURL string
	timeout time.Duration
	log     *zap.Logger
}

func NewBridge(users UserLookup, sender Sender, baseURL string, log *zap.Logger) *Bridge {
	return &Bridge{users: users, sender: sender, baseURL: baseURL, timeout: 15 * time.Second, log: log}
}

// Handle is an events.Subscriber handler for the notifications stream.
func (b *Bridge) Handle(event events.Event) {
	if event.Type != events.EventNotification {
		return
	}
	userID, err := uuid.Parse(event.UserID())
	if err != nil {
		b.log.Warn("notification without user", zap.String("type", event.Type))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	user, err := b.users.GetByID(ctx, userID)
	if err != nil {
		b.log.Warn("notification recipient lookup failed", zap.String("user_id", userID.String()), zap.Error(err))
		return
	}
	if !user.IsActive {
		return
	}

	title, _ := event.Payload["title"].(string)
	message, _ := event.Payload["message"].(string)
	body := message
	if link, _ := event.Payload["link"].(string); link != "" {
		body += "\n\n" + b.baseURL + link
	}
	if err := b.sender.Send(ctx, user.Email, "pushit: "+title, body); err != nil {
		b.log.Error("notification email failed", zap.String("user_id", userID.String()), zap.Error(err))
		return
	}
	b.log.Info("notification emailed",
		zap.String("user_id", userID.String()),
		zap.Any("kind", event.Payload["type"]))
}
