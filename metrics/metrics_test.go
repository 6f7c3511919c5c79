package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestSnapshotRates(t *testing.T) {
	m := New(nil)

	s := m.Snapshot()
	if s.HitRate != 0 || s.MissRate != 0 {
		t.Fatalf("rates before any request = %v/%v, want 0/0", s.HitRate, s.MissRate)
	}

	m.RecordHit(time.Millisecond)
	m.RecordHit(3 * time.Millisecond)
	m.RecordMiss(2 * time.Millisecond)
	m.RecordSet()
	m.RecordDelete()
	m.RecordEvictions(2)
	m.RecordError("decode")

	s = m.Snapshot()
	if s.Hits != 2 || s.Misses != 1 {
		t.Fatalf("hits/misses = %d/%d, want 2/1", s.Hits, s.Misses)
	}
	if want := 2.0 / 3.0; s.HitRate != want {
		t.Fatalf("HitRate = %v, want %v", s.HitRate, want)
	}
	if s.Sets != 1 || s.Deletes != 1 || s.Evictions != 2 || s.Errors != 1 {
		t.Fatalf("sets/deletes/evictions/errors = %d/%d/%d/%d, want 1/1/2/1",
			s.Sets, s.Deletes, s.Evictions, s.Errors)
	}
	if s.AvgAccessTime != 2*time.Millisecond {
		t.Fatalf("AvgAccessTime = %v, want 2ms", s.AvgAccessTime)
	}
}

func TestWindowIsBounded(t *testing.T) {
	m := New(nil)

	// Fill past the window size; the average must reflect only the window.
	for i := 0; i < windowSize+100; i++ {
		m.RecordHit(time.Millisecond)
	}

	s := m.Snapshot()
	if s.AvgAccessTime != time.Millisecond {
		t.Fatalf("AvgAccessTime = %v, want 1ms", s.AvgAccessTime)
	}
	if s.Hits != windowSize+100 {
		t.Fatalf("Hits = %d, want %d", s.Hits, windowSize+100)
	}
}

func TestReset(t *testing.T) {
	m := New(nil)

	m.RecordHit(time.Millisecond)
	m.RecordError("x")
	m.Reset()

	s := m.Snapshot()
	if s.Hits != 0 || s.Errors != 0 || s.AvgAccessTime != 0 {
		t.Fatalf("stats after reset = %+v, want zeroes", s)
	}
}

func TestPromSinkForwarding(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPromSink(reg)
	m := New(sink)

	m.RecordHit(time.Millisecond)
	m.RecordMiss(time.Millisecond)
	m.RecordError("decode")
	m.SetMemoryUsage(1024)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{
		"cache_hits_total", "cache_misses_total",
		"cache_errors_total", "cache_memory_bytes", "cache_access_seconds",
	} {
		if !found[name] {
			t.Fatalf("metric %q not registered; got %v", name, found)
		}
	}
}
