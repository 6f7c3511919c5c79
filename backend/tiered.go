package backend

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Tiered puts a small ristretto read-through front in front of another
// backend. Hits served from the front never reach the inner backend; misses
// fall through and promote on the way back. Writes and deletes go through to
// the inner backend and update the front, so the front never outlives the
// authoritative copy on this process.
//
// Other processes writing to a shared inner backend are not visible to the
// front until its TTL lapses; use a short FrontTTL when that matters.
type Tiered struct {
	front *ristretto.Cache[string, any]
	inner Backend

	frontTTL time.Duration
}

// TieredOptions configures NewTiered.
type TieredOptions struct {
	// Inner is the authoritative backend. Required.
	Inner Backend

	// FrontSize is the maximum number of entries the front holds (each entry
	// has a cost of 1).
	FrontSize int64

	// FrontTTL bounds how long a front entry may lag behind the inner
	// backend. Zero means front entries live until evicted.
	FrontTTL time.Duration
}

// NewTiered wraps inner with a ristretto front.
func NewTiered(opts TieredOptions) (*Tiered, error) {
	front, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters: opts.FrontSize * 10,
		MaxCost:     opts.FrontSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Tiered{
		front:    front,
		inner:    opts.Inner,
		frontTTL: opts.FrontTTL,
	}, nil
}

func (t *Tiered) Get(ctx context.Context, key string) (any, bool, error) {
	if v, ok := t.front.Get(key); ok {
		return v, true, nil
	}
	v, ok, err := t.inner.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	t.promote(key, v)
	return v, true, nil
}

func (t *Tiered) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := t.inner.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	t.promote(key, value)
	return nil
}

func (t *Tiered) Delete(ctx context.Context, key string) (bool, error) {
	t.front.Del(key)
	return t.inner.Delete(ctx, key)
}

// Exists consults the inner backend only; the front may hold entries the
// inner backend has already expired.
func (t *Tiered) Exists(ctx context.Context, key string) (bool, error) {
	return t.inner.Exists(ctx, key)
}

func (t *Tiered) Clear(ctx context.Context) error {
	t.front.Clear()
	return t.inner.Clear(ctx)
}

func (t *Tiered) Size(ctx context.Context) (int, error) {
	return t.inner.Size(ctx)
}

func (t *Tiered) MemoryUsage(ctx context.Context) (int64, error) {
	return t.inner.MemoryUsage(ctx)
}

func (t *Tiered) Keys(ctx context.Context) ([]string, error) {
	return t.inner.Keys(ctx)
}

func (t *Tiered) GetMany(ctx context.Context, keys []string) (map[string]any, error) {
	result := make(map[string]any, len(keys))
	missing := make([]string, 0, len(keys))
	for _, key := range keys {
		if v, ok := t.front.Get(key); ok {
			result[key] = v
		} else {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return result, nil
	}

	fetched, err := t.inner.GetMany(ctx, missing)
	if err != nil {
		return result, err
	}
	for key, v := range fetched {
		result[key] = v
		t.promote(key, v)
	}
	return result, nil
}

func (t *Tiered) SetMany(ctx context.Context, items map[string]any, ttl time.Duration) (map[string]bool, error) {
	result, err := t.inner.SetMany(ctx, items, ttl)
	for key, ok := range result {
		if ok {
			t.promote(key, items[key])
		}
	}
	return result, err
}

func (t *Tiered) DeleteMany(ctx context.Context, keys []string) (map[string]bool, error) {
	for _, key := range keys {
		t.front.Del(key)
	}
	return t.inner.DeleteMany(ctx, keys)
}

func (t *Tiered) HealthCheck(ctx context.Context) error {
	return t.inner.HealthCheck(ctx)
}

func (t *Tiered) Close() error {
	t.front.Close()
	return t.inner.Close()
}

func (t *Tiered) promote(key string, value any) {
	t.front.SetWithTTL(key, value, 1, t.frontTTL)
	// Wait flushes ristretto's set buffer so the entry is immediately
	// readable. Promotion is on the miss path already, so the extra latency
	// is acceptable for read-your-write behaviour.
	t.front.Wait()
}

var _ Backend = (*Tiered)(nil)
var _ Backend = (*Memory)(nil)
var _ Backend = (*Remote)(nil)
var _ Incrementer = (*Remote)(nil)
