package gostashsquirrel

import (
	"errors"
	"fmt"
	"time"

	"github.com/Keksclan/goStashSquirrel/backend"
	"github.com/Keksclan/goStashSquirrel/logging"
	"github.com/Keksclan/goStashSquirrel/metrics"
	"github.com/Keksclan/goStashSquirrel/serializer"
	"github.com/Keksclan/goStashSquirrel/strategy"
)

// ErrConfiguration wraps every configuration error returned by New.
var ErrConfiguration = errors.New("invalid cache configuration")

// BackendKind names a storage substrate.
type BackendKind string

const (
	BackendMemory BackendKind = "memory"
	BackendRemote BackendKind = "remote"
)

// Config is the immutable snapshot assembled via functional options. New
// validates it once; a running Manager never re-reads mutable configuration.
type Config struct {
	Strategy strategy.Kind
	Backend  BackendKind

	MaxSize     int
	MaxMemoryMB int
	DefaultTTL  time.Duration

	Format               string
	EnableCompression    bool
	CompressionThreshold int

	BreakerFailureThreshold int
	BreakerRecoveryTimeout  time.Duration

	EnableBackgroundCleanup bool
	CleanupInterval         time.Duration

	// TieredFrontSize, when positive, puts a ristretto front of that many
	// entries in front of the chosen backend.
	TieredFrontSize int64

	// WarmRatePerSecond paces WarmCache writes. Zero means unpaced.
	WarmRatePerSecond float64

	Remote backend.RemoteConfig

	Logger logging.Logger
	Sink   metrics.Sink
}

func (c Config) validate() error {
	switch c.Strategy {
	case strategy.LRU, strategy.TTL, strategy.FIFO, strategy.LFU:
	default:
		return fmt.Errorf("%w: unsupported strategy %q", ErrConfiguration, c.Strategy)
	}
	switch c.Backend {
	case BackendMemory, BackendRemote:
	default:
		return fmt.Errorf("%w: unsupported backend %q", ErrConfiguration, c.Backend)
	}
	switch c.Format {
	case serializer.FormatText, serializer.FormatNative, serializer.FormatBinary:
	default:
		return fmt.Errorf("%w: unsupported format %q", ErrConfiguration, c.Format)
	}
	if c.MaxSize <= 0 {
		return fmt.Errorf("%w: max size must be positive, got %d", ErrConfiguration, c.MaxSize)
	}
	if c.MaxMemoryMB <= 0 {
		return fmt.Errorf("%w: max memory must be positive, got %d MB", ErrConfiguration, c.MaxMemoryMB)
	}
	if c.Backend == BackendRemote && c.Remote.Host == "" {
		return fmt.Errorf("%w: remote backend requires a host", ErrConfiguration)
	}
	return nil
}
