package gostashsquirrel

import (
	"time"

	"github.com/Keksclan/goStashSquirrel/serializer"
	"github.com/Keksclan/goStashSquirrel/strategy"
)

// DefaultConfig returns the configuration New starts from before options are
// applied: an in-process LRU cache with JSON serialization and a background
// expiry sweep.
func DefaultConfig() Config {
	return Config{
		Strategy:    strategy.LRU,
		Backend:     BackendMemory,
		MaxSize:     1000,
		MaxMemoryMB: 100,
		DefaultTTL:  5 * time.Minute,

		Format:               serializer.FormatText,
		CompressionThreshold: 1024,

		BreakerFailureThreshold: 5,
		BreakerRecoveryTimeout:  60 * time.Second,

		EnableBackgroundCleanup: true,
		CleanupInterval:         time.Minute,

		WarmRatePerSecond: 100,
	}
}
