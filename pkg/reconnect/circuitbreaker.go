package reconnect

import (
	"log"
	"sync"
	"time"
)

// State is a circuit breaker's current mode.
type State int

const (
	StateClosed   State = iota // normal operation, reconnects allowed
	StateOpen                  // too many recent failures, reconnects rejected
	StateHalfOpen              // probing whether the venue has recovered
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the failure/recovery thresholds.
type CircuitBreakerConfig struct {
	Name             string
	OpenThreshold    int           // consecutive failures before opening
	SuccessThreshold int           // consecutive half-open successes before closing
	ResetTimeout     time.Duration // time in Open before probing Half-Open
}

// DefaultCircuitBreakerConfig returns the venue's documented thresholds
// (F_open=5, T_reset=30s).
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		OpenThreshold:    DefaultOpenThreshold,
		SuccessThreshold: 1,
		ResetTimeout:     DefaultResetTimeout,
	}
}

// CircuitBreaker guards the reconnect loop: once consecutive connection
// failures reach OpenThreshold it stops allowing attempts until
// ResetTimeout elapses, then moves to Half-Open, where SuccessThreshold
// successes close it again and any failure reopens it. The breaker does not
// itself limit how many callers attempt while Half-Open.
type CircuitBreaker struct {
	mu sync.Mutex

	name string

	state        State
	failureCount int
	successCount int
	openedAt     time.Time

	openThreshold    int
	successThreshold int
	resetTimeout     time.Duration
}

// NewCircuitBreaker builds a CircuitBreaker from cfg.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.OpenThreshold <= 0 {
		cfg.OpenThreshold = DefaultOpenThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultResetTimeout
	}
	return &CircuitBreaker{
		name:             cfg.Name,
		state:            StateClosed,
		openThreshold:    cfg.OpenThreshold,
		successThreshold: cfg.SuccessThreshold,
		resetTimeout:     cfg.ResetTimeout,
	}
}

// Allow reports whether a reconnect attempt may proceed right now. In the
// Open state it transitions to Half-Open once ResetTimeout has elapsed
// since the breaker opened. In Half-Open it returns true for every call
// until RecordSuccess or RecordFailure resolves the probe; it does not
// restrict admission to a single attempt.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(cb.openedAt) < cb.resetTimeout {
			return false
		}
		cb.state = StateHalfOpen
		cb.successCount = 0
		log.Printf("reconnect: circuit %s half-open after %s", cb.name, cb.resetTimeout)
		return true
	default:
		return false
	}
}

// RecordSuccess reports a successful connection attempt.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.state = StateClosed
			cb.failureCount = 0
			cb.successCount = 0
			log.Printf("reconnect: circuit %s closed", cb.name)
		}
	}
}

// RecordFailure reports a failed connection attempt.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.openThreshold {
			cb.trip()
		}
	case StateHalfOpen:
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.openedAt = time.Now()
	cb.successCount = 0
	log.Printf("reconnect: circuit %s open after %d failures", cb.name, cb.failureCount)
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// FailureCount returns the number of consecutive failures recorded in the
// Closed state.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}

// Reset forces the breaker back to Closed, clearing all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
}
