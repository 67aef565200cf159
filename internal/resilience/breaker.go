package resilience

import (
	"fmt"
	"sync"
	"time"
)

// CircuitState is one of the three circuit breaker states.
type CircuitState int

const (
	Closed CircuitState = iota
	Open
	HalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// CircuitOpenError is returned when a call is refused because the
// breaker for a provider is open.
type CircuitOpenError struct {
	Provider string
	RetryIn  time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker for %q is open, retry in %s", e.Provider, e.RetryIn)
}

// BreakerConfig configures a CircuitBreaker.
type BreakerConfig struct {
	FailureThreshold int
	Cooldown         time.Duration
}

// DefaultBreakerConfig trips after 5 consecutive failures, cools down
// for 60s, then allows a single half-open probe before deciding
// whether to close again.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         60 * time.Second,
	}
}

// CircuitBreaker guards one provider. After FailureThreshold
// consecutive failures in CLOSED it opens and refuses calls for
// Cooldown; the first call after Cooldown is a single HALF_OPEN probe
// that decides whether to return to CLOSED or reopen.
type CircuitBreaker struct {
	name   string
	config BreakerConfig

	mu              sync.Mutex
	state           CircuitState
	consecutiveFail int
	openedAt        time.Time
	probeInFlight   bool
}

// NewCircuitBreaker creates a breaker in the CLOSED state.
func NewCircuitBreaker(name string, config BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{name: name, config: config, state: Closed}
}

// State reports the breaker's current state without mutating it.
func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow is consulted before every invocation. It returns nil if the
// call may proceed (CLOSED, or the single HALF_OPEN probe slot), or a
// *CircuitOpenError otherwise. A granted HALF_OPEN probe must be
// followed by exactly one RecordSuccess or RecordFailure call.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return nil
	case Open:
		if time.Since(b.openedAt) < b.config.Cooldown {
			return &CircuitOpenError{Provider: b.name, RetryIn: b.config.Cooldown - time.Since(b.openedAt)}
		}
		b.state = HalfOpen
		b.probeInFlight = true
		return nil
	case HalfOpen:
		if b.probeInFlight {
			return &CircuitOpenError{Provider: b.name, RetryIn: b.config.Cooldown}
		}
		b.probeInFlight = true
		return nil
	}
	return nil
}

// RecordSuccess registers a successful call. A success in HALF_OPEN
// closes the breaker; a success in CLOSED resets the failure streak.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = Closed
	b.consecutiveFail = 0
	b.probeInFlight = false
}

// RecordFailure registers a failed call. A failure in HALF_OPEN
// immediately reopens the breaker; a failure in CLOSED increments the
// streak and opens once FailureThreshold is reached.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probeInFlight = false

	if b.state == HalfOpen {
		b.state = Open
		b.openedAt = time.Now()
		return
	}

	b.consecutiveFail++
	if b.consecutiveFail >= b.config.FailureThreshold {
		b.state = Open
		b.openedAt = time.Now()
	}
}
