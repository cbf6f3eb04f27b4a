package concurrency

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while a breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the state of the circuit breaker
type CircuitBreakerState int32

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

// String returns the string representation of the circuit breaker state
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreaker stops calling a failing collaborator. After failureThreshold
// consecutive failures it opens for resetTimeout, then lets calls through
// half-open until successThreshold consecutive successes close it again.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            CircuitBreakerState
	failures         int
	successes        int
	openedAt         time.Time
	failureThreshold int
	successThreshold int
	resetTimeout     time.Duration
	now              func() time.Time
}

// NewCircuitBreaker creates a breaker. Non-positive arguments select 5
// failures and 30 seconds.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		successThreshold: 2,
		resetTimeout:     resetTimeout,
		now:              time.Now,
	}
}

// Allow returns ErrCircuitOpen while the breaker is open.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) < cb.resetTimeout {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.successes = 0
	}
	return nil
}

// Record feeds the outcome of an allowed call.
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.successes++
			if cb.successes >= cb.successThreshold {
				cb.state = StateClosed
				cb.successes = 0
			}
		}
		return
	}

	cb.successes = 0
	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.failureThreshold {
		cb.state = StateOpen
		cb.openedAt = cb.now()
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the breaker.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
}
