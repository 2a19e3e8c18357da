package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/frenta/claimsearch/internal/observability"
)

func TestManagerExecuteReturnsResult(t *testing.T) {
	m := NewManager(observability.NewNoopLogger())
	v, err := m.Execute(context.Background(), "test", CircuitBreakerConfig{}, func() (interface{}, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if v.(int) != 42 {
		t.Errorf("Execute() = %v, want 42", v)
	}
}

func TestManagerExecutePropagatesError(t *testing.T) {
	m := NewManager(observability.NewNoopLogger())
	wantErr := errors.New("boom")
	_, err := m.Execute(context.Background(), "test", CircuitBreakerConfig{}, func() (interface{}, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("Execute() err = %v, want %v", err, wantErr)
	}
}

func TestManagerReusesBreakerPerName(t *testing.T) {
	m := NewManager(observability.NewNoopLogger())
	cb1 := m.get("shared", CircuitBreakerConfig{})
	cb2 := m.get("shared", CircuitBreakerConfig{})
	if cb1 != cb2 {
		t.Error("expected the same breaker instance to be reused for the same name")
	}
}

func TestManagerExecuteRespectsContextCancellation(t *testing.T) {
	m := NewManager(observability.NewNoopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Execute(ctx, "test", CircuitBreakerConfig{}, func() (interface{}, error) {
		time.Sleep(50 * time.Millisecond)
		return nil, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() err = %v, want context.Canceled", err)
	}
}
