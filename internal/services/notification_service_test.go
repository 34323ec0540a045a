package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/pushit/marketplace/internal/events"
	"github.com/pushit/marketplace/internal/models"
	"go.uber.org/zap"
)

type fakeNotifications struct {
	rows []models.Notification
}

func (f *fakeNotifications) Create(_ context.Context, n *models.Notification) error {
	n.ID = uuid.New()
	f.rows = append(f.rows, *n)
	return nil
}

func (f *fakeNotifications) List(_ context.Context, userID uuid.UUID, unreadOnly bool, _, _ int) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range f.rows {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotifications) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	l, _ := f.List(ctx, userID, true, 0, 0)
	return len(l), nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, userID, id uuid.UUID) error {
	for i := range f.rows {
		if f.rows[i].ID == id && f.rows[i].UserID == userID {
			f.rows[i].IsRead = true
			return nil
		}
	}
	return models.ErrNotFound
}

func (f *fakeNotifications) MarkAllRead(_ context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	for i := range f.rows {
		if f.rows[i].UserID == userID && !f.rows[i].IsRead {
			f.rows[i].IsRead = true
			n++
		}
	}
	return n, nil
}

type fakePublisher struct {
	events []events.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, _ string, e events.Event) error {
	f.events = append(f.events, e)
	return f.err
}

func TestNotifyPublishes(t *testing.T) {
	store := &fakeNotifications{}
	pub := &fakePublisher{}
	svc := NewNotificationService(store, pub, zap.NewNop())
	ctx := context.Background()
	user := uuid.New()

	if err := svc.Notify(ctx, user, models.NotifyPaymentReceived, "Payment received", "5000 NGN", "/wallet"); err != nil {
		t.Fatal(err)
	}
	if len(pub.events) != 1 || pub.events[0].UserID() != user.String() {
		t.Fatalf("published %+v", pub.events)
	}
	if pub.events[0].Payload["link"] != "/wallet" {
		t.Errorf("link = %v, want /wallet", pub.events[0].Payload["link"])
	}

	pub.err = errors.New("redis down")
	if err := svc.Notify(ctx, user, models.NotifyJobApplied, "t", "m", ""); err != nil {
		t.Errorf("Notify with failing publisher = %v, want nil", err)
	}

	if n, _ := svc.UnreadCount(ctx, user); n != 2 {
		t.Errorf("UnreadCount = %d, want 2", n)
	}
	if err := svc.MarkRead(ctx, user, store.rows[0].ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.MarkRead(ctx, uuid.New(), store.rows[1].ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("MarkRead other user err = %v, want ErrNotFound", err)
	}
	if n, _ := svc.MarkAllRead(ctx, user); n != 1 {
		t.Errorf("MarkAllRead = %d, want 1", n)
	}
}
