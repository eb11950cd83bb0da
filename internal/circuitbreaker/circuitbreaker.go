package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker trips after maxFailures consecutive failures and rejects calls
// until resetTimeout has elapsed, then lets a single probe through.
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time

	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailureTime time.Time
	probing         bool
}

func New(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		state:        StateClosed,
	}
}

// Execute runs fn unless the breaker is open. The lock is not held while fn
// runs, so concurrent tills are not serialized on a slow device.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) <= cb.resetTimeout {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probing = true
		return nil
	case StateHalfOpen:
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if err != nil {
		cb.failureCount++
		cb.lastFailureTime = cb.now()
		if cb.state == StateHalfOpen || cb.failureCount >= cb.maxFailures {
			cb.state = StateOpen
		}
		return
	}

	cb.state = StateClosed
	cb.failureCount = 0
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
