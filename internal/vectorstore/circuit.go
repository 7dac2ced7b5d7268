package vectorstore

import (
	"sync"
	"time"
)

// CircuitState is one of the three states in spec.md C10's circuit
// breaker diagram.
type CircuitState string

const (
	StateClosed   CircuitState = "closed"
	StateOpen     CircuitState = "open"
	StateHalfOpen CircuitState = "half_open"
)

// CircuitBreaker guards calls to the primary vector store. There is
// no library in the corpus for this pattern (the teacher and the rest
// of the pack talk to a single store each), so this is built directly
// from spec.md's state diagram rather than grounded on an example.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            CircuitState
	failureThreshold int
	successThreshold int
	recoveryTimeout  time.Duration

	consecutiveFailures int
	consecutiveSuccesses int
	openedAt            time.Time
	now                 func() time.Time
}

// NewCircuitBreaker builds a breaker starting closed.
func NewCircuitBreaker(failureThreshold, successThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if successThreshold <= 0 {
		successThreshold = 2
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		recoveryTimeout:  recoveryTimeout,
		now:              time.Now,
	}
}

// Allow reports whether a call to the primary should be attempted
// right now, transitioning open->half_open once the recovery timeout
// has elapsed.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.recoveryTimeout {
			b.state = StateHalfOpen
			b.consecutiveSuccesses = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess reports a successful primary call.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.consecutiveSuccesses++
		if b.consecutiveSuccesses >= b.successThreshold {
			b.state = StateClosed
			b.consecutiveFailures = 0
			b.consecutiveSuccesses = 0
		}
	case StateClosed:
		b.consecutiveFailures = 0
	}
}

// RecordFailure reports a failed primary call, tripping the breaker
// open from closed after failureThreshold consecutive failures, or
// immediately from half_open on any probe failure.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.failureThreshold {
			b.trip()
		}
	case StateHalfOpen:
		b.trip()
	}
}

func (b *CircuitBreaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
}

// State returns the current state, for health reporting.
func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
