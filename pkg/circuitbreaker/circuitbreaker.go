// Package circuitbreaker isolates a failing upstream behind a three-state
// breaker: CLOSED, OPEN and HALF_OPEN.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrOpen is returned without calling the wrapped function while the breaker
// is open or a half-open trial is already in flight.
var ErrOpen = errors.New("circuit breaker open")

// OpenError carries the remaining cool-down.
type OpenError struct {
	Name      string
	Remaining time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker OPEN for %s (%ds remaining)", e.Name, int(e.Remaining.Seconds()+0.999))
}

func (e *OpenError) Unwrap() error {
	return ErrOpen
}

// Options configures a breaker.
type Options struct {
	Name      string
	Threshold int
	Timeout   time.Duration
	// IsFailure decides whether an error counts towards the threshold.
	// Defaults to every error except context cancellation.
	IsFailure func(error) bool
	// OnStateChange is called with the lock released.
	OnStateChange func(name string, from, to State)
}

// Status is a point-in-time view of the breaker.
type Status struct {
	State       State     `json:"state"`
	Failures    int       `json:"failures"`
	Threshold   int       `json:"threshold"`
	LastFailure time.Time `json:"last_failure"`
}

type CircuitBreaker struct {
	name          string
	threshold     int
	timeout       time.Duration
	isFailure     func(error) bool
	onStateChange func(name string, from, to State)

	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	lastFailure time.Time
	trialActive bool
	now         func() time.Time
}

// New creates a breaker. Threshold and timeout default to 5 and 30s.
func New(opts Options) *CircuitBreaker {
	if opts.Threshold <= 0 {
		opts.Threshold = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.IsFailure == nil {
		opts.IsFailure = defaultIsFailure
	}
	if opts.Name == "" {
		opts.Name = "operation"
	}

	return &CircuitBreaker{
		name:          opts.Name,
		threshold:     opts.Threshold,
		timeout:       opts.Timeout,
		isFailure:     opts.IsFailure,
		onStateChange: opts.OnStateChange,
		now:           time.Now,
	}
}

func defaultIsFailure(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	trial, err := cb.acquire()
	if err != nil {
		return err
	}

	err = fn(ctx)
	cb.record(trial, err)
	return err
}

// State returns the current state, moving OPEN to HALF_OPEN when the
// cool-down has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.timeout {
		return StateHalfOpen
	}
	return cb.state
}

// Status returns the current counters.
func (cb *CircuitBreaker) Status() Status {
	state := cb.State()
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Status{
		State:       state,
		Failures:    cb.failures,
		Threshold:   cb.threshold,
		LastFailure: cb.lastFailure,
	}
}

func (cb *CircuitBreaker) acquire() (bool, error) {
	cb.mu.Lock()

	switch cb.state {
	case StateOpen:
		elapsed := cb.now().Sub(cb.openedAt)
		if elapsed < cb.timeout {
			cb.mu.Unlock()
			return false, &OpenError{Name: cb.name, Remaining: cb.timeout - elapsed}
		}
		from := cb.state
		cb.state = StateHalfOpen
		cb.trialActive = true
		cb.mu.Unlock()
		cb.notify(from, StateHalfOpen)
		return true, nil
	case StateHalfOpen:
		if cb.trialActive {
			cb.mu.Unlock()
			return false, &OpenError{Name: cb.name}
		}
		cb.trialActive = true
		cb.mu.Unlock()
		return true, nil
	default:
		cb.mu.Unlock()
		return false, nil
	}
}

func (cb *CircuitBreaker) record(trial bool, err error) {
	cb.mu.Lock()
	from := cb.state
	if trial {
		cb.trialActive = false
	}

	switch {
	case err == nil:
		cb.state = StateClosed
		cb.failures = 0
	case cb.isFailure(err):
		cb.failures++
		cb.lastFailure = cb.now()
		if from == StateHalfOpen || cb.failures >= cb.threshold {
			cb.state = StateOpen
			cb.openedAt = cb.lastFailure
		}
	}
	to := cb.state
	cb.mu.Unlock()

	if from != to {
		cb.notify(from, to)
	}
}

func (cb *CircuitBreaker) notify(from, to State) {
	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, from, to)
	}
}
