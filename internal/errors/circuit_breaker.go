package errors

import (
	"context"
	"sync"
	"time"
)

// CircuitState is one of Closed, Open, HalfOpen.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes a CircuitBreaker's trip and recovery behavior.
type CircuitBreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	// OnStateChange, if set, is invoked whenever the breaker transitions
	// between states.
	OnStateChange func(name string, from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns sane defaults for an external
// collaborator call (debug adapter, kernel RPC, language server).
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// CircuitBreakerMetrics is a point-in-time snapshot of a breaker's counters.
type CircuitBreakerMetrics struct {
	Name         string
	State        CircuitState
	FailureCount int
	SuccessCount int
}

// CircuitBreaker guards calls to an external collaborator. It classifies
// a Timeout kind error the same as any other failure — the spec treats
// timeout as a distinct error Kind, not as a reason to bypass the breaker.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig

	mu           sync.Mutex
	state        CircuitState
	failureCount int
	successCount int
	openedAt     time.Time
}

// NewCircuitBreaker constructs a breaker starting in the Closed state.
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultCircuitBreakerConfig().FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = DefaultCircuitBreakerConfig().SuccessThreshold
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultCircuitBreakerConfig().Timeout
	}
	return &CircuitBreaker{name: name, config: config, state: StateClosed}
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.name, from, to)
	}
}

// Execute runs fn if the breaker allows it, tripping or recovering the
// circuit based on the outcome. Degraded (open-circuit) rejections are
// surfaced as a Conflict-kind CoreError so callers can distinguish
// "service unavailable right now" from "request itself failed".
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.config.Timeout {
			cb.transition(StateHalfOpen)
			cb.successCount = 0
		} else {
			cb.mu.Unlock()
			return Conflict("circuit breaker %q is open", cb.name)
		}
	}
	cb.mu.Unlock()

	err := fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.failureCount++
		cb.successCount = 0
		if cb.state == StateHalfOpen || cb.failureCount >= cb.config.FailureThreshold {
			cb.transition(StateOpen)
			cb.openedAt = time.Now()
		}
		return err
	}

	switch cb.state {
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.transition(StateClosed)
			cb.failureCount = 0
			cb.successCount = 0
		}
	case StateClosed:
		cb.failureCount = 0
	}
	return nil
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.failureCount = 0
	cb.successCount = 0
}

func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitBreakerMetrics{
		Name:         cb.name,
		State:        cb.state,
		FailureCount: cb.failureCount,
		SuccessCount: cb.successCount,
	}
}

// IsDegraded reports whether err represents an open-circuit rejection.
func IsDegraded(err error) bool { return IsConflict(err) }

// ExecuteFunc runs fn through the breaker and returns its typed result
// alongside the error, for callers that want a value rather than a bare
// error back.
func ExecuteFunc[T any](cb *CircuitBreaker, ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := cb.Execute(ctx, func(ctx context.Context) error {
		v, e := fn(ctx)
		result = v
		return e
	})
	return result, err
}

// CircuitBreakerManager keys breakers by name, lazily constructing them
// with a shared default config.
type CircuitBreakerManager struct {
	mu       sync.Mutex
	config   CircuitBreakerConfig
	breakers map[string]*CircuitBreaker
}

func NewCircuitBreakerManager(config CircuitBreakerConfig) *CircuitBreakerManager {
	return &CircuitBreakerManager{config: config, breakers: make(map[string]*CircuitBreaker)}
}

func (m *CircuitBreakerManager) Get(name string) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	cb, ok := m.breakers[name]
	if !ok {
		cb = NewCircuitBreaker(name, m.config)
		m.breakers[name] = cb
	}
	return cb
}

func (m *CircuitBreakerManager) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.breakers, name)
}

func (m *CircuitBreakerManager) ResetAll() {
	m.mu.Lock()
	breakers := make([]*CircuitBreaker, 0, len(m.breakers))
	for _, cb := range m.breakers {
		breakers = append(breakers, cb)
	}
	m.mu.Unlock()
	for _, cb := range breakers {
		cb.Reset()
	}
}

func (m *CircuitBreakerManager) GetMetrics() []CircuitBreakerMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	metrics := make([]CircuitBreakerMetrics, 0, len(m.breakers))
	for _, cb := range m.breakers {
		metrics = append(metrics, cb.Metrics())
	}
	return metrics
}
