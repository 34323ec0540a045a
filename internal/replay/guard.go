package replay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard remembers payloads it has seen for a while so that a redelivered
// webhook is recognised before it reaches the ledger.
type Guard struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewGuard(rdb *redis.Client, prefix string, ttl time.Duration) *Guard {
	return &Guard{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Key derives the storage key for a raw payload.
func (g *Guard) Key(body []byte) string {
	sum := sha256.Sum256(body)
	return g.prefix + hex.EncodeToString(sum[:])
}

// Claim records the payload and reports whether this is its first
// delivery within the TTL.
func (g *Guard) Claim(ctx context.Context, body []byte) (key string, first bool, err error) {
	key = g.Key(body)
	first, err = g.rdb.SetNX(ctx, key, time.Now().Unix(), g.ttl).Result()
	return key, first, err
}

// Release forgets a claimed payload so a retry will be processed.
func (g *Guard) Release(ctx context.Context, key string) error {
	return g.rdb.Del(ctx, key).Err()
}
