package gostashsquirrel

import (
	"time"

	"github.com/Keksclan/goStashSquirrel/backend"
	"github.com/Keksclan/goStashSquirrel/logging"
	"github.com/Keksclan/goStashSquirrel/metrics"
	"github.com/Keksclan/goStashSquirrel/strategy"
)

// Option configures a Manager.
type Option func(*Config)

// WithStrategy selects the eviction strategy.
func WithStrategy(kind strategy.Kind) Option {
	return func(c *Config) { c.Strategy = kind }
}

// WithBackend selects the storage substrate.
func WithBackend(kind BackendKind) Option {
	return func(c *Config) { c.Backend = kind }
}

// WithMaxSize bounds the number of entries the memory backend holds.
func WithMaxSize(n int) Option {
	return func(c *Config) { c.MaxSize = n }
}

// WithMaxMemoryMB bounds the estimated memory, in megabytes, the memory
// backend holds.
func WithMaxMemoryMB(mb int) Option {
	return func(c *Config) { c.MaxMemoryMB = mb }
}

// WithDefaultTTL sets the TTL applied to entries stored without one.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Config) { c.DefaultTTL = ttl }
}

// WithFormat selects the serialization format ("text", "native" or "binary").
func WithFormat(format string) Option {
	return func(c *Config) { c.Format = format }
}

// WithCompression enables compression of serialized payloads at or above
// threshold bytes.
func WithCompression(threshold int) Option {
	return func(c *Config) {
		c.EnableCompression = true
		c.CompressionThreshold = threshold
	}
}

// WithBreaker tunes the circuit breaker guarding the backend.
func WithBreaker(failureThreshold int, recoveryTimeout time.Duration) Option {
	return func(c *Config) {
		c.BreakerFailureThreshold = failureThreshold
		c.BreakerRecoveryTimeout = recoveryTimeout
	}
}

// WithCleanup enables the background expiry sweep at the given interval.
func WithCleanup(interval time.Duration) Option {
	return func(c *Config) {
		c.EnableBackgroundCleanup = true
		c.CleanupInterval = interval
	}
}

// WithoutCleanup disables the background expiry sweep.
func WithoutCleanup() Option {
	return func(c *Config) { c.EnableBackgroundCleanup = false }
}

// WithRemote selects the remote backend and its connection settings.
func WithRemote(rc backend.RemoteConfig) Option {
	return func(c *Config) {
		c.Backend = BackendRemote
		c.Remote = rc
	}
}

// WithTieredFront puts an in-process read-through front of size entries in
// front of the chosen backend.
func WithTieredFront(size int64) Option {
	return func(c *Config) { c.TieredFrontSize = size }
}

// WithWarmRate paces WarmCache at n writes per second. Zero disables pacing.
func WithWarmRate(n float64) Option {
	return func(c *Config) { c.WarmRatePerSecond = n }
}

// WithLogger routes operational logging through l.
func WithLogger(l logging.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithSink forwards every metric event to s.
func WithSink(s metrics.Sink) Option {
	return func(c *Config) { c.Sink = s }
}
