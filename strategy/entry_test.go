package strategy

import (
	"testing"
	"time"
)

func TestEntryExpired(t *testing.T) {
	now := time.Now()
	e := newEntry("k", []byte("v"), 100*time.Millisecond, now)

	if e.Expired(now) {
		t.Fatal("fresh entry should not be expired")
	}
	if e.Expired(now.Add(50 * time.Millisecond)) {
		t.Fatal("entry expired before TTL elapsed")
	}
	if !e.Expired(now.Add(150 * time.Millisecond)) {
		t.Fatal("entry should be expired after TTL")
	}

	forever := newEntry("k", []byte("v"), 0, now)
	if forever.Expired(now.Add(24 * time.Hour)) {
		t.Fatal("entry without TTL must never expire")
	}
}

func TestEntryTouch(t *testing.T) {
	now := time.Now()
	e := newEntry("k", []byte("v"), 0, now)

	later := now.Add(time.Second)
	e.Touch(later)
	if e.AccessCount != 1 {
		t.Fatalf("AccessCount = %d, want 1", e.AccessCount)
	}
	if !e.AccessedAt.Equal(later) {
		t.Fatalf("AccessedAt = %v, want %v", e.AccessedAt, later)
	}

	// AccessedAt only moves forward.
	e.Touch(now)
	if !e.AccessedAt.Equal(later) {
		t.Fatalf("AccessedAt moved backwards to %v", e.AccessedAt)
	}
	if e.AccessCount != 2 {
		t.Fatalf("AccessCount = %d, want 2", e.AccessCount)
	}
}

func TestEntryEstimateSize(t *testing.T) {
	now := time.Now()
	small := newEntry("a", []byte("x"), 0, now)
	large := newEntry("a", make([]byte, 4096), 0, now)

	if small.Size <= 0 {
		t.Fatalf("Size = %d, want > 0", small.Size)
	}
	if large.Size <= small.Size {
		t.Fatalf("larger value estimated smaller: %d <= %d", large.Size, small.Size)
	}
	want := int64(1) + 4096 + entryOverhead
	if large.Size != want {
		t.Fatalf("Size = %d, want %d", large.Size, want)
	}
}
