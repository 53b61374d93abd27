package resilience

import (
	"sync"
	"time"
)

// State is the breaker admission mode.
type State int

const (
	StateClosed   State = iota // requests flow normally, failures are counted
	StateOpen                  // requests are blocked until the cooldown elapses
	StateHalfOpen              // probe requests allowed, one failure reopens
)

// String returns the stable token used in health reporting.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// BreakerConfig holds circuit breaker thresholds.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures in the closed
	// state that opens the breaker.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before the next admission
	// check moves it to half-open.
	Cooldown time.Duration

	// SuccessThreshold is the number of successful probes required to close
	// the breaker from half-open.
	SuccessThreshold int
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         60 * time.Second,
		SuccessThreshold: 1,
	}
}

// CircuitBreaker guards outbound calls to Azure DevOps. Failures are only
// counted in the closed state; the open state blocks requests until Cooldown
// has elapsed, discovered lazily on the next AllowRequest or State call.
// There is no background timer.
//
// All methods are safe for concurrent use. The lock is never held across I/O.
type CircuitBreaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time

	cfg BreakerConfig
	now func() time.Time
}

// NewCircuitBreaker creates a breaker in the closed state. Zero config fields
// fall back to DefaultBreakerConfig values.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// AllowRequest reports whether a physical attempt may proceed.
func (cb *CircuitBreaker) AllowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeHalfOpen()
	return cb.state != StateOpen
}

// State returns the current admission mode.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeHalfOpen()
	return cb.state
}

// RecordSuccess reports a successful outcome for the terminal attempt of a
// call. In the closed state it resets the failure count; in half-open it
// counts toward SuccessThreshold and closes the breaker once reached.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.state = StateClosed
			cb.failures = 0
			cb.successes = 0
		}
	case StateClosed:
		cb.failures = 0
	}
}

// RecordFailure reports a failed outcome. A single failed probe in half-open
// reopens the breaker unconditionally. Failures are not re-accumulated while
// open.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.state = StateOpen
		cb.openedAt = cb.now()
		cb.successes = 0
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.state = StateOpen
			cb.openedAt = cb.now()
		}
	}
}

// maybeHalfOpen must be called with cb.mu held.
func (cb *CircuitBreaker) maybeHalfOpen() {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.Cooldown {
		cb.state = StateHalfOpen
		cb.successes = 0
	}
}
