package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Keksclan/goStashSquirrel/breaker"
	"github.com/Keksclan/goStashSquirrel/logging"
	"github.com/Keksclan/goStashSquirrel/metrics"
	"github.com/Keksclan/goStashSquirrel/retry"
	"github.com/Keksclan/goStashSquirrel/serializer"
)

// RemoteConfig configures the Redis backend.
type RemoteConfig struct {
	Host     string
	Port     int
	DB       int
	Password string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int

	// KeyPrefix is prepended to every key, so several caches can share one
	// Redis database.
	KeyPrefix string
}

// Addr returns the host:port dial address.
func (c RemoteConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RemoteOptions configures NewRemote. Serializer is required; nil Metrics and
// Logger default to no-ops.
type RemoteOptions struct {
	Remote     RemoteConfig
	Serializer serializer.Serializer
	Breaker    breaker.Config
	Retry      retry.Config
	DefaultTTL time.Duration

	Metrics *metrics.CacheMetrics
	Logger  logging.Logger
}

// Remote is the Redis-backed backend. Every command runs behind the circuit
// breaker, and transient failures (anything except a miss or a cancelled
// context) are retried with exponential back-off before counting as a breaker
// failure.
type Remote struct {
	rdb *redis.Client
	ser serializer.Serializer
	brk *breaker.Breaker
	rty retry.Config
	met *metrics.CacheMetrics
	log logging.Logger

	prefix     string
	defaultTTL time.Duration
	closed     atomic.Bool
}

// NewRemote creates a Redis backend. It does not dial eagerly; use
// HealthCheck to verify connectivity.
func NewRemote(opts RemoteOptions) *Remote {
	met := opts.Metrics
	if met == nil {
		met = metrics.New(nil)
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	rty := opts.Retry
	if rty.Retryable == nil {
		rty.Retryable = transient
	}
	brkCfg := defaultBreaker(opts.Breaker)

	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Remote.Addr(),
		Password:     opts.Remote.Password,
		DB:           opts.Remote.DB,
		DialTimeout:  opts.Remote.DialTimeout,
		ReadTimeout:  opts.Remote.ReadTimeout,
		WriteTimeout: opts.Remote.WriteTimeout,
		PoolSize:     opts.Remote.PoolSize,
	})

	return &Remote{
		rdb:        rdb,
		ser:        opts.Serializer,
		brk:        breaker.New(brkCfg),
		rty:        rty,
		met:        met,
		log:        log,
		prefix:     opts.Remote.KeyPrefix,
		defaultTTL: opts.DefaultTTL,
	}
}

// transient reports whether a Redis error is worth retrying. Misses and
// caller-initiated cancellation are not.
func transient(err error) bool {
	if errors.Is(err, redis.Nil) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

func (r *Remote) key(key string) string {
	return r.prefix + key
}

// doRaw runs op behind the breaker and the retry policy, counting network
// failures. Breaker accounting covers the whole retried call, not individual
// attempts. Crediting success is left to the caller, so a result that still
// needs validation (decoding) is not credited prematurely.
func doRaw[T any](ctx context.Context, r *Remote, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if r.closed.Load() {
		return zero, ErrClosed
	}
	if !r.brk.Allow() {
		r.met.RecordError("breaker_open")
		return zero, ErrBreakerOpen
	}

	result, err := retry.Do(ctx, r.rty, op)
	if err != nil && !errors.Is(err, redis.Nil) {
		r.brk.OnFailure()
		r.met.RecordError("remote")
		return zero, err
	}
	return result, err
}

// do is doRaw plus success crediting, for operations whose result needs no
// further validation.
func do[T any](ctx context.Context, r *Remote, op func(context.Context) (T, error)) (T, error) {
	result, err := doRaw(ctx, r, op)
	if err != nil && !errors.Is(err, redis.Nil) {
		return result, err
	}
	r.brk.OnSuccess()
	return result, err
}

func (r *Remote) Get(ctx context.Context, key string) (any, bool, error) {
	start := time.Now()
	data, err := doRaw(ctx, r, func(ctx context.Context) ([]byte, error) {
		return r.rdb.Get(ctx, r.key(key)).Bytes()
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.brk.OnSuccess()
			r.met.RecordMiss(time.Since(start))
			return nil, false, nil
		}
		return nil, false, err
	}

	value, err := r.ser.Deserialize(data)
	if err != nil {
		// Undecodable payloads count against the breaker just like on the
		// memory backend.
		r.brk.OnFailure()
		r.met.RecordError("decode")
		r.log.Error("remote decode failed", "key", key, "error", err)
		return nil, false, err
	}
	r.brk.OnSuccess()
	r.met.RecordHit(time.Since(start))
	return value, true, nil
}

func (r *Remote) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl == 0 {
		ttl = r.defaultTTL
	}
	data, err := r.ser.Serialize(value)
	if err != nil {
		r.met.RecordError("encode")
		return err
	}

	_, err = do(ctx, r, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.rdb.Set(ctx, r.key(key), data, ttl).Err()
	})
	if err == nil {
		r.met.RecordSet()
	}
	return err
}

func (r *Remote) Delete(ctx context.Context, key string) (bool, error) {
	n, err := do(ctx, r, func(ctx context.Context) (int64, error) {
		return r.rdb.Del(ctx, r.key(key)).Result()
	})
	if err != nil {
		return false, err
	}
	if n > 0 {
		r.met.RecordDelete()
	}
	return n > 0, nil
}

func (r *Remote) Exists(ctx context.Context, key string) (bool, error) {
	n, err := do(ctx, r, func(ctx context.Context) (int64, error) {
		return r.rdb.Exists(ctx, r.key(key)).Result()
	})
	return n > 0, err
}

// Clear removes every key under the configured prefix, scanning in batches
// so the server is never blocked by a KEYS call.
func (r *Remote) Clear(ctx context.Context) error {
	_, err := do(ctx, r, func(ctx context.Context) (struct{}, error) {
		iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
		batch := make([]string, 0, 100)
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
			if len(batch) == 100 {
				if err := r.rdb.Del(ctx, batch...).Err(); err != nil {
					return struct{}{}, err
				}
				batch = batch[:0]
			}
		}
		if err := iter.Err(); err != nil {
			return struct{}{}, err
		}
		if len(batch) > 0 {
			return struct{}{}, r.rdb.Del(ctx, batch...).Err()
		}
		return struct{}{}, nil
	})
	return err
}

func (r *Remote) Size(ctx context.Context) (int, error) {
	keys, err := r.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// MemoryUsage is not tracked for the remote backend; Redis owns its memory.
func (r *Remote) MemoryUsage(_ context.Context) (int64, error) {
	return 0, nil
}

func (r *Remote) Keys(ctx context.Context) ([]string, error) {
	return do(ctx, r, func(ctx context.Context) ([]string, error) {
		var keys []string
		iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, strings.TrimPrefix(iter.Val(), r.prefix))
		}
		return keys, iter.Err()
	})
}

// GetMany fetches keys in one pipelined round trip. Missing and undecodable
// keys are absent from the result.
func (r *Remote) GetMany(ctx context.Context, keys []string) (map[string]any, error) {
	cmds, err := do(ctx, r, func(ctx context.Context) ([]*redis.StringCmd, error) {
		pipe := r.rdb.Pipeline()
		cmds := make([]*redis.StringCmd, len(keys))
		for i, key := range keys {
			cmds[i] = pipe.Get(ctx, r.key(key))
		}
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return nil, err
		}
		return cmds, nil
	})
	if err != nil {
		return nil, err
	}

	result := make(map[string]any, len(keys))
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}
		value, err := r.ser.Deserialize(data)
		if err != nil {
			r.met.RecordError("decode")
			continue
		}
		result[keys[i]] = value
	}
	return result, nil
}

// SetMany stores items in one pipelined round trip.
func (r *Remote) SetMany(ctx context.Context, items map[string]any, ttl time.Duration) (map[string]bool, error) {
	if ttl == 0 {
		ttl = r.defaultTTL
	}

	result := make(map[string]bool, len(items))
	encoded := make(map[string][]byte, len(items))
	order := make([]string, 0, len(items))
	for key, value := range items {
		data, err := r.ser.Serialize(value)
		if err != nil {
			r.met.RecordError("encode")
			result[key] = false
			continue
		}
		encoded[key] = data
		order = append(order, key)
	}

	cmds, err := do(ctx, r, func(ctx context.Context) ([]*redis.StatusCmd, error) {
		pipe := r.rdb.Pipeline()
		cmds := make([]*redis.StatusCmd, len(order))
		for i, key := range order {
			cmds[i] = pipe.Set(ctx, r.key(key), encoded[key], ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}
		return cmds, nil
	})
	if err != nil {
		for _, key := range order {
			result[key] = false
		}
		return result, err
	}

	for i, cmd := range cmds {
		ok := cmd.Err() == nil
		result[order[i]] = ok
		if ok {
			r.met.RecordSet()
		}
	}
	return result, nil
}

// DeleteMany removes keys in one pipelined round trip.
func (r *Remote) DeleteMany(ctx context.Context, keys []string) (map[string]bool, error) {
	cmds, err := do(ctx, r, func(ctx context.Context) ([]*redis.IntCmd, error) {
		pipe := r.rdb.Pipeline()
		cmds := make([]*redis.IntCmd, len(keys))
		for i, key := range keys {
			cmds[i] = pipe.Del(ctx, r.key(key))
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}
		return cmds, nil
	})

	result := make(map[string]bool, len(keys))
	if err != nil {
		for _, key := range keys {
			result[key] = false
		}
		return result, err
	}
	for i, cmd := range cmds {
		n, cmdErr := cmd.Result()
		result[keys[i]] = cmdErr == nil && n > 0
		if result[keys[i]] {
			r.met.RecordDelete()
		}
	}
	return result, nil
}

// IncrBy atomically adds delta to the counter at key, creating it at zero
// first. Counters are stored as plain integer strings, not serialized values.
func (r *Remote) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return do(ctx, r, func(ctx context.Context) (int64, error) {
		return r.rdb.IncrBy(ctx, r.key(key), delta).Result()
	})
}

// DecrBy atomically subtracts delta from the counter at key.
func (r *Remote) DecrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return do(ctx, r, func(ctx context.Context) (int64, error) {
		return r.rdb.DecrBy(ctx, r.key(key), delta).Result()
	})
}

// HealthCheck pings the server.
func (r *Remote) HealthCheck(ctx context.Context) error {
	_, err := do(ctx, r, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.rdb.Ping(ctx).Err()
	})
	return err
}

// Close closes the underlying client. It is idempotent at the backend level;
// further operations return ErrClosed.
func (r *Remote) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.rdb.Close()
}

// Breaker exposes the circuit breaker for inspection.
func (r *Remote) Breaker() *breaker.Breaker {
	return r.brk
}
