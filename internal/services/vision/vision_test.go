package vision

import (
	"context"
	"testing"
	"time"

	"github.com/frenta/claimsearch/internal/apperrors"
	"github.com/frenta/claimsearch/internal/observability"
	"github.com/frenta/claimsearch/internal/resilience"
)

func TestNewGoogleClientDefaultsModel(t *testing.T) {
	c := NewGoogleClient(GoogleConfig{}, resilience.NewManager(observability.NewNoopLogger()),
		resilience.NewSlidingWindowLimiter(resilience.SlidingWindowConfig{Limit: 150, Window: 0}))
	if c.cfg.Model != "gemini-2.0-flash" {
		t.Errorf("expected default model gemini-2.0-flash, got %q", c.cfg.Model)
	}
}

func TestDescribeImageReturnsTransientOnCancelledWait(t *testing.T) {
	limiter := resilience.NewSlidingWindowLimiter(resilience.SlidingWindowConfig{Limit: 1, Window: time.Hour})
	// Exhaust the single admission slot so the next Wait call actually blocks.
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("priming Wait: %v", err)
	}

	c := NewGoogleClient(GoogleConfig{}, resilience.NewManager(observability.NewNoopLogger()), limiter)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.DescribeImage(ctx, "https://example.com/photo.jpg")
	if apperrors.ClassOf(err) != apperrors.ClassTransient {
		t.Fatalf("expected ClassTransient on cancelled wait, got %v (err=%v)", apperrors.ClassOf(err), err)
	}
}
