package social

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/pushit/marketplace/internal/models"
	"github.com/redis/go-redis/v9"
)

func newTestStateStore(t *testing.T) (*StateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStateStore(rdb, 10*time.Minute), mr
}

func TestStateIsSingleUse(t *testing.T) {
	store, _ := newTestStateStore(t)
	ctx := context.Background()
	login := PendingLogin{InfluencerID: uuid.New(), Platform: models.PlatformTikTok}

	state, err := store.Issue(ctx, login)
	if err != nil {
		t.Fatal(err)
	}
	got, err := store.Consume(ctx, state)
	if err != nil {
		t.Fatal(err)
	}
	if *got != login {
		t.Errorf("Consume() = %+v, want %+v", *got, login)
	}
	if _, err := store.Consume(ctx, state); !errors.Is(err, ErrStateInvalid) {
		t.Errorf("second Consume() err = %v, want ErrStateInvalid", err)
	}
}

func TestStateExpires(t *testing.T) {
	store, mr := newTestStateStore(t)
	ctx := context.Background()

	state, err := store.Issue(ctx, PendingLogin{InfluencerID: uuid.New(), Platform: models.PlatformYouTube})
	if err != nil {
		t.Fatal(err)
	}
	mr.FastForward(11 * time.Minute)
	if _, err := store.Consume(ctx, state); !errors.Is(err, ErrStateInvalid) {
		t.Errorf("Consume() after ttl err = %v, want ErrStateInvalid", err)
	}
	if _, err := store.Consume(ctx, ""); !errors.Is(err, ErrStateInvalid) {
		t.Errorf("Consume(\"\") err = %v, want ErrStateInvalid", err)
	}
}
