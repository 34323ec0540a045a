package social

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrStateInvalid = errors.New("oauth state is invalid or expired")

// PendingLogin is what a state value remembers between the redirect to
// the platform and the callback.
type PendingLogin struct {
	InfluencerID uuid.UUID
	Platform     string
}

// StateStore keeps one-time OAuth state values in redis.
type StateStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewStateStore(rdb *redis.Client, ttl time.Duration) *StateStore {
	return &StateStore{rdb: rdb, prefix: "oauth:state:", ttl: ttl}
}

// Issue stores a fresh random state for the login and returns it.
func (s *StateStore) Issue(ctx context.Context, login PendingLogin) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	state := hex.EncodeToString(buf)
	value := login.InfluencerID.String() + "|" + login.Platform
	if err := s.rdb.Set(ctx, s.prefix+state, value, s.ttl).Err(); err != nil {
		return "", err
	}
	return state, nil
}

// Consume returns the login a state was issued for and deletes it, so a
// state can be used once.
func (s *StateStore) Consume(ctx context.Context, state string) (*PendingLogin, error) {
	if state == "" {
		return nil, ErrStateInvalid
	}
	value, err := s.rdb.GetDel(ctx, s.prefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStateInvalid
	}
	if err != nil {
		return nil, err
	}

	id, platform, ok := strings.Cut(value, "|")
	if !ok {
		return nil, ErrStateInvalid
	}
	influencerID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrStateInvalid
	}
	return &PendingLogin{InfluencerID: influencerID, Platform: platform}, nil
}
