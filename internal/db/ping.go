package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	pingAttempts = 5
	pingBackoff  = time.Second
)

// pingWithRetry keeps pinging a backing store that may still be starting
// up, doubling the wait between attempts.
func pingWithRetry(ctx context.Context, name string, attempts int, backoff time.Duration, ping func(context.Context) error, log *zap.Logger) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = ping(ctx); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		log.Warn("backing store not ready",
			zap.String("store", name),
			zap.Int("attempt", i),
			zap.Duration("retry_in", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("%s unreachable after %d attempts: %w", name, attempts, err)
}
