package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const rateLimitPrefix = "rl:"

// RateLimitMiddleware is a fixed-window counter per client IP. A key left
// without a TTL is given one on the next request.
func RateLimitMiddleware(rdb *redis.Client, limit int, window time.Duration, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := rateLimitPrefix + c.IP()
		ctx := c.UserContext()

		var incr *redis.IntCmd
		var pttl *redis.DurationCmd
		_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, key)
			pttl = pipe.PTTL(ctx, key)
			return nil
		})
		if err != nil {
			log.Warn("rate limiter unavailable", zap.Error(err))
			return c.Next() // fail open
		}

		count := incr.Val()
		ttl := pttl.Val()
		if ttl < 0 {
			rdb.Expire(ctx, key, window)
			ttl = window
		}

		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(limit) {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":      "rate limit exceeded",
				"request_id": GetRequestID(c),
			})
		}

		return c.Next()
	}
}
