// Package backend implements the storage substrates behind the uniform cache
// contract: an in-process memory backend composing an eviction strategy, a
// serializer and a circuit breaker; a Redis-backed remote backend with
// pipelined batch operations; and a tiered composition that puts a ristretto
// read-through front in front of any other backend.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/Keksclan/goStashSquirrel/breaker"
)

// Operational errors surfaced by backends. The manager converts all of them
// into soft failures; they are exported so tests and metrics can classify.
var (
	// ErrBreakerOpen is returned when the circuit breaker short-circuits a
	// call before it reaches storage.
	ErrBreakerOpen = errors.New("circuit breaker open")

	// ErrStoreRejected is returned when eviction could not make room for an
	// insert.
	ErrStoreRejected = errors.New("store rejected: could not make room")

	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("backend closed")
)

// Backend is the uniform storage contract. Implementations serialize values
// internally; callers pass and receive plain Go values. All operations are
// safe for concurrent use. Context cancellation applies to remote backends
// only; local mutation does not block on ctx.
type Backend interface {
	// Get returns the value for key. The boolean reports a hit. A miss with
	// a nil error is a normal outcome, not a failure.
	Get(ctx context.Context, key string) (any, bool, error)

	// Set stores value under key. A zero ttl falls back to the backend's
	// default TTL (which may itself be zero, meaning no expiry).
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Delete removes key, reporting whether it was present.
	Delete(ctx context.Context, key string) (bool, error)

	// Exists reports whether key holds a live entry.
	Exists(ctx context.Context, key string) (bool, error)

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Size returns the number of live entries.
	Size(ctx context.Context) (int, error)

	// MemoryUsage returns the estimated bytes held, where the backend can
	// tell.
	MemoryUsage(ctx context.Context) (int64, error)

	// Keys lists live keys in unspecified order.
	Keys(ctx context.Context) ([]string, error)

	// GetMany returns the found subset of keys.
	GetMany(ctx context.Context, keys []string) (map[string]any, error)

	// SetMany stores items, reporting per-key success.
	SetMany(ctx context.Context, items map[string]any, ttl time.Duration) (map[string]bool, error)

	// DeleteMany removes keys, reporting per-key presence.
	DeleteMany(ctx context.Context, keys []string) (map[string]bool, error)

	// HealthCheck verifies the backend can serve a round trip.
	HealthCheck(ctx context.Context) error

	// Close releases resources. Further operations return ErrClosed.
	Close() error
}

// Incrementer is the optional atomic-counter capability. The manager probes
// for it and falls back to a non-atomic read-modify-write when absent.
type Incrementer interface {
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	DecrBy(ctx context.Context, key string, delta int64) (int64, error)
}

// defaultBreaker fills in a usable breaker configuration when the caller left
// it zero. A zero threshold would otherwise flap on every failure.
func defaultBreaker(cfg breaker.Config) breaker.Config {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 60 * time.Second
	}
	return cfg
}
