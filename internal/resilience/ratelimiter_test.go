package resilience

import (
	"context"
	"testing"
	"time"
)

func TestSlidingWindowLimiterAdmitsUpToLimit(t *testing.T) {
	l := NewSlidingWindowLimiter(SlidingWindowConfig{Limit: 2, Window: time.Hour})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait() #%d: %v", i, err)
		}
	}
}

func TestSlidingWindowLimiterBlocksBeyondLimitUntilContextDone(t *testing.T) {
	l := NewSlidingWindowLimiter(SlidingWindowConfig{Limit: 1, Window: time.Hour})
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("priming Wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err == nil {
		t.Error("expected Wait to block until the context's deadline and return an error")
	}
}

func TestSlidingWindowLimiterAdmitsAgainAfterWindowElapses(t *testing.T) {
	l := NewSlidingWindowLimiter(SlidingWindowConfig{Limit: 1, Window: 10 * time.Millisecond})
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("priming Wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Wait(ctx); err != nil {
		t.Errorf("expected admission once the window elapsed, got %v", err)
	}
}
