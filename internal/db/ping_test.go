package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPingWithRetry(t *testing.T) {
	errDown := errors.New("connection refused")
	tests := []struct {
		name      string
		failures  int
		attempts  int
		wantCalls int
		wantErr   bool
	}{
		{"first try", 0, 3, 1, false},
		{"recovers", 2, 3, 3, false},
		{"gives up", 5, 3, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			ping := func(context.Context) error {
				calls++
				if calls <= tt.failures {
					return errDown
				}
				return nil
			}
			err := pingWithRetry(context.Background(), "test", tt.attempts, time.Millisecond, ping, zap.NewNop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("pingWithRetry err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, errDown) {
				t.Errorf("err = %v, want it to wrap the last ping error", err)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestPingWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ping := func(context.Context) error { return errors.New("down") }
	err := pingWithRetry(ctx, "test", 3, time.Hour, ping, zap.NewNop())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
