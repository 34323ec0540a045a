package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/pushit/marketplace/internal/events"
	"github.com/pushit/marketplace/internal/models"
	"go.uber.org/zap"
)

type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// NotificationService stores in-app notifications and fans them out on
// the event bus for websocket and email delivery.
type NotificationService struct {
	store     NotificationStore
	publisher events.Publisher
	log       *zap.Logger
}

func NewNotificationService(store NotificationStore, publisher events.Publisher, log *zap.Logger) *NotificationService {
	return &NotificationService{store: store, publisher: publisher, log: log}
}

func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, kind, title, message, link string) error {
	n := &models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
	}
	if link != "" {
		n.Link = &link
	}
	if err := s.store.Create(ctx, n); err != nil {
		return err
	}

	if s.publisher != nil {
		payload := map[string]any{
			"user_id":         userID.String(),
			"notification_id": n.ID.String(),
			"type":            kind,
			"title":           title,
			"message":         message,
		}
		if link != "" {
			payload["link"] = link
		}
		// Push is best effort, clients catch up on the next list.
		_ = s.publisher.Publish(ctx, events.StreamNotifications, events.Event{
			Type:    events.EventNotification,
			Payload: payload,
		})
	}
	return nil
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	return s.store.List(ctx, userID, unreadOnly, limit, offset)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.store.UnreadCount(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.MarkRead(ctx, userID, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.store.MarkAllRead(ctx, userID)
}
