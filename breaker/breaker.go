// Package breaker provides a minimal, thread-safe circuit breaker guarding
// cache backends.
//
// States:
//   - Closed: requests flow normally; failures are counted.
//   - Open: requests fail fast. Once RecoveryTimeout has elapsed since the
//     last failure, the breaker flips straight back to Closed and the next
//     call proceeds; there is no persisted half-open state.
//
// Recovery is asymmetric on purpose: a success only decrements the failure
// counter by one, while the timeout resets it outright. Gradual decrement is
// part of the behavioral contract, not an accident to repair with a
// probe-limited half-open machine.
package breaker

import (
	"sync"
	"time"
)

// State represents the current circuit breaker state.
type State int

const (
	Closed State = iota
	Open
)

// Config holds the circuit breaker parameters.
type Config struct {
	// FailureThreshold is the failure count at which the breaker trips to
	// Open.
	FailureThreshold int

	// RecoveryTimeout is how long after the last failure the breaker waits
	// before optimistically closing again.
	RecoveryTimeout time.Duration
}

// Breaker is a minimal circuit breaker. All methods are safe for concurrent
// use.
type Breaker struct {
	mu sync.Mutex

	cfg Config

	failures    int
	lastFailure time.Time
	nowFunc     func() time.Time // for testing; defaults to time.Now
}

// New creates a Breaker with the given configuration.
func New(cfg Config) *Breaker {
	return &Breaker{
		cfg:     cfg,
		nowFunc: time.Now,
	}
}

// State returns the current state of the breaker without mutating it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures >= b.cfg.FailureThreshold &&
		b.now().Sub(b.lastFailure) <= b.cfg.RecoveryTimeout {
		return Open
	}
	return Closed
}

// Allow reports whether a request may proceed. While Open it fails fast,
// unless the recovery timeout has elapsed since the last failure — then the
// breaker resets to Closed and the call goes through.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.cfg.FailureThreshold {
		return true
	}
	if b.now().Sub(b.lastFailure) > b.cfg.RecoveryTimeout {
		b.failures = 0
		return true
	}
	return false
}

// OnSuccess records a successful request, decrementing the failure counter
// toward zero.
func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures > 0 {
		b.failures--
	}
}

// OnFailure records a failed request and stamps the failure time.
func (b *Breaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()
}

// Failures returns the current failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) now() time.Time {
	if b.nowFunc != nil {
		return b.nowFunc()
	}
	return time.Now()
}
