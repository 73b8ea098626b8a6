package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExponentialBackoffScheduler_NextDelay(t *testing.T) {
	scheduler := ExponentialBackoffScheduler{Initial: 100 * time.Millisecond, Max: time.Second}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 100 * time.Millisecond},
		{attempt: 1, want: 100 * time.Millisecond},
		{attempt: 2, want: 200 * time.Millisecond},
		{attempt: 3, want: 400 * time.Millisecond},
		{attempt: 4, want: 800 * time.Millisecond},
		{attempt: 5, want: time.Second},
		{attempt: 12, want: time.Second},
	}
	for _, tc := range cases {
		if got := scheduler.NextDelay(tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: expected %v, got %v", tc.attempt, tc.want, got)
		}
	}
}

func TestExponentialBackoffScheduler_ZeroValueUsesDefaults(t *testing.T) {
	scheduler := ExponentialBackoffScheduler{}
	if got := scheduler.NextDelay(1); got != defaultInitialBackoff {
		t.Fatalf("expected default initial backoff, got %v", got)
	}
	if got := scheduler.NextDelay(20); got != defaultMaxBackoff {
		t.Fatalf("expected default max backoff cap, got %v", got)
	}
}

func TestWaitWithContext(t *testing.T) {
	if err := WaitWithContext(context.Background(), 0); err != nil {
		t.Fatalf("expected zero delay to return immediately, got %v", err)
	}
	if err := WaitWithContext(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("expected short wait to succeed, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitWithContext(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
