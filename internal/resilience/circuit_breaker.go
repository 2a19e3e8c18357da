package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/frenta/claimsearch/internal/observability"
)

// CircuitBreakerConfig configures one named circuit breaker. The LLM,
// embedding, vision, geocode and store façades each get their own breaker
// instance so one provider's outage cannot trip another's; grounding calls
// go through the LLM client and share its breaker.
type CircuitBreakerConfig struct {
	Name         string        `mapstructure:"name"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

func (c *CircuitBreakerConfig) applyDefaults(name string) {
	if c.Name == "" {
		c.Name = name
	}
	if c.MaxRequests == 0 {
		c.MaxRequests = 5
	}
	if c.Interval == 0 {
		c.Interval = 30 * time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.FailureRatio == 0 {
		c.FailureRatio = 0.5
	}
}

// Manager owns a set of named circuit breakers. It is constructed once per
// server (or once per test) and threaded through every service façade as a
// parameter — per spec §9, no package-level singleton.
type Manager struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	logger   observability.Logger
}

// NewManager creates an empty circuit breaker Manager.
func NewManager(logger observability.Logger) *Manager {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Manager{breakers: make(map[string]*gobreaker.CircuitBreaker), logger: logger}
}

func (m *Manager) get(name string, config CircuitBreakerConfig) *gobreaker.CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, ok := m.breakers[name]; ok {
		return cb
	}

	config.applyDefaults(name)
	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && ratio >= config.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			m.logger.Warn("circuit breaker state change", map[string]interface{}{
				"breaker": name, "from": from.String(), "to": to.String(),
			})
		},
	}

	cb := gobreaker.NewCircuitBreaker(settings)
	m.breakers[name] = cb
	return cb
}

// Execute runs fn through the named circuit breaker, respecting ctx
// cancellation even while fn is still running.
func (m *Manager) Execute(ctx context.Context, name string, config CircuitBreakerConfig, fn func() (interface{}, error)) (interface{}, error) {
	cb := m.get(name, config)

	type result struct {
		val interface{}
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := cb.Execute(fn)
		ch <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.val, r.err
	}
}

// Names of the breakers the service façades register under.
const (
	BreakerLLM       = "llm"
	BreakerEmbedding = "embedding"
	BreakerVision    = "vision"
	BreakerGeocode   = "geocode"
	BreakerGround    = "ground"
	BreakerStore     = "store"
)
