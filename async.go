package gostashsquirrel

import (
	"context"
	"time"
)

// GetResult carries the outcome of an asynchronous Get.
type GetResult struct {
	Value any
}

// GetAsync runs Get on a worker goroutine and delivers the result on the
// returned channel. The channel is buffered; the result can be ignored
// without leaking the goroutine.
func (m *Manager) GetAsync(ctx context.Context, key string, def any) <-chan GetResult {
	ch := make(chan GetResult, 1)
	go func() {
		ch <- GetResult{Value: m.Get(ctx, key, def)}
	}()
	return ch
}

// SetAsync runs Set on a worker goroutine and delivers its success flag on
// the returned channel.
func (m *Manager) SetAsync(ctx context.Context, key string, value any, ttl time.Duration) <-chan bool {
	ch := make(chan bool, 1)
	go func() {
		ch <- m.Set(ctx, key, value, ttl)
	}()
	return ch
}

// DeleteAsync runs Delete on a worker goroutine and delivers its result on
// the returned channel.
func (m *Manager) DeleteAsync(ctx context.Context, key string) <-chan bool {
	ch := make(chan bool, 1)
	go func() {
		ch <- m.Delete(ctx, key)
	}()
	return ch
}
