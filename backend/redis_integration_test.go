package backend

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Keksclan/goStashSquirrel/breaker"
	"github.com/Keksclan/goStashSquirrel/retry"
	"github.com/Keksclan/goStashSquirrel/serializer"
)

func redisRemote(t *testing.T) *Remote {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis integration test")
	}
	host, portStr, ok := strings.Cut(addr, ":")
	if !ok {
		t.Fatalf("REDIS_ADDR %q is not host:port", addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("REDIS_ADDR port: %v", err)
	}

	r := NewRemote(RemoteOptions{
		Remote: RemoteConfig{
			Host:      host,
			Port:      port,
			KeyPrefix: "test:" + t.Name() + ":",
		},
		Serializer: serializer.JSON{},
		Breaker:    breaker.Config{FailureThreshold: 5, RecoveryTimeout: time.Second},
		Retry:      retry.Config{MaxAttempts: 2, BaseDelay: 10 * time.Millisecond},
	})
	t.Cleanup(func() {
		_ = r.Clear(context.Background())
		_ = r.Close()
	})
	if err := r.HealthCheck(context.Background()); err != nil {
		t.Fatalf("cannot reach Redis at %s: %v", addr, err)
	}
	return r
}

func TestRemoteGetSetDelete(t *testing.T) {
	r := redisRemote(t)
	ctx := context.Background()

	_, ok, err := r.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get miss: %v", err)
	}
	if ok {
		t.Fatal("expected miss")
	}

	if err := r.Set(ctx, "k", "hello", 10*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := r.Get(ctx, "k")
	if err != nil || !ok || v != "hello" {
		t.Fatalf("Get = (%v, %v, %v), want (hello, true, nil)", v, ok, err)
	}

	removed, err := r.Delete(ctx, "k")
	if err != nil || !removed {
		t.Fatalf("Delete = (%v, %v), want (true, nil)", removed, err)
	}
}

func TestRemotePipelinedBatch(t *testing.T) {
	r := redisRemote(t)
	ctx := context.Background()

	items := map[string]any{"a": "1", "b": "2", "c": "3"}
	res, err := r.SetMany(ctx, items, 10*time.Second)
	if err != nil {
		t.Fatalf("SetMany: %v", err)
	}
	for key, ok := range res {
		if !ok {
			t.Fatalf("SetMany rejected %q", key)
		}
	}

	got, err := r.GetMany(ctx, []string{"a", "b", "c", "d"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(got) != 3 || got["a"] != "1" || got["c"] != "3" {
		t.Fatalf("GetMany = %v, want a, b, c", got)
	}

	del, err := r.DeleteMany(ctx, []string{"a", "d"})
	if err != nil {
		t.Fatalf("DeleteMany: %v", err)
	}
	if !del["a"] || del["d"] {
		t.Fatalf("DeleteMany = %v, want a true, d false", del)
	}
}

func TestRemoteCounters(t *testing.T) {
	r := redisRemote(t)
	ctx := context.Background()

	n, err := r.IncrBy(ctx, "counter", 5)
	if err != nil {
		t.Fatalf("IncrBy: %v", err)
	}
	if n != 5 {
		t.Fatalf("IncrBy = %d, want 5", n)
	}
	n, err = r.DecrBy(ctx, "counter", 2)
	if err != nil {
		t.Fatalf("DecrBy: %v", err)
	}
	if n != 3 {
		t.Fatalf("DecrBy = %d, want 3", n)
	}
}

func TestRemoteKeyPrefixIsolation(t *testing.T) {
	r := redisRemote(t)
	ctx := context.Background()

	if err := r.Set(ctx, "k1", "v", 10*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := r.Set(ctx, "k2", "v", 10*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}

	keys, err := r.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("Keys = %v, want exactly the two prefixed keys", keys)
	}
	for _, key := range keys {
		if strings.HasPrefix(key, "test:") {
			t.Fatalf("Keys leaked the prefix: %q", key)
		}
	}

	if err := r.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	n, err := r.Size(ctx)
	if err != nil || n != 0 {
		t.Fatalf("Size after Clear = (%d, %v), want (0, nil)", n, err)
	}
}

func TestRemoteDecodeFailureCountsAgainstBreaker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis integration test")
	}
	host, portStr, ok := strings.Cut(addr, ":")
	if !ok {
		t.Fatalf("REDIS_ADDR %q is not host:port", addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("REDIS_ADDR port: %v", err)
	}

	prefix := "test:" + t.Name() + ":"
	remoteAt := func(ser serializer.Serializer) *Remote {
		r := NewRemote(RemoteOptions{
			Remote:     RemoteConfig{Host: host, Port: port, KeyPrefix: prefix},
			Serializer: ser,
			Breaker:    breaker.Config{FailureThreshold: 5, RecoveryTimeout: time.Second},
			Retry:      retry.Config{MaxAttempts: 1},
		})
		t.Cleanup(func() { _ = r.Close() })
		return r
	}

	// A gob writer and a JSON reader share the store; the reader cannot
	// decode the stored bytes.
	writer := remoteAt(serializer.Gob{})
	reader := remoteAt(serializer.JSON{})
	t.Cleanup(func() { _ = writer.Clear(context.Background()) })
	if err := writer.HealthCheck(context.Background()); err != nil {
		t.Fatalf("cannot reach Redis at %s: %v", addr, err)
	}

	if err := writer.Set(context.Background(), "k", "v", 10*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	// Decode failures count against the breaker, same as on the memory
	// backend, and accumulate across calls: the successful network round
	// trip must not be credited before the payload decodes.
	for i := 1; i <= 2; i++ {
		if _, _, err := reader.Get(context.Background(), "k"); err == nil {
			t.Fatal("expected decode error")
		}
		if n := reader.Breaker().Failures(); n != i {
			t.Fatalf("breaker failures after %d decode errors = %d, want %d", i, n, i)
		}
	}
}

func TestRemoteBreakerOpensWhenUnreachable(t *testing.T) {
	// No Redis needed: dial a port nothing listens on.
	r := NewRemote(RemoteOptions{
		Remote: RemoteConfig{
			Host:        "localhost",
			Port:        1,
			DialTimeout: 100 * time.Millisecond,
		},
		Serializer: serializer.JSON{},
		Breaker:    breaker.Config{FailureThreshold: 2, RecoveryTimeout: time.Hour},
		Retry:      retry.Config{MaxAttempts: 1},
	})
	t.Cleanup(func() { _ = r.Close() })
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, _, err := r.Get(ctx, "k"); err == nil {
			t.Fatal("expected connection error")
		}
	}

	if _, _, err := r.Get(ctx, "k"); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("Get with open breaker = %v, want ErrBreakerOpen", err)
	}
}
