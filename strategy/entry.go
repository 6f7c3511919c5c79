package strategy

import "time"

// entryOverhead approximates the fixed per-entry bookkeeping cost (key header,
// timestamps, counters). The absolute number is not meaningful across runtimes;
// it only has to keep relative memory accounting consistent within one process.
const entryOverhead = 96

// Entry is a single cached item together with its bookkeeping metadata. The
// value is the serialized representation owned by the entry; callers must not
// mutate it after handing it to a strategy.
type Entry struct {
	Key         string
	Value       []byte
	CreatedAt   time.Time
	AccessedAt  time.Time
	AccessCount int64
	Size        int64
	TTL         time.Duration // 0 means no expiration
}

func newEntry(key string, value []byte, ttl time.Duration, now time.Time) *Entry {
	e := &Entry{
		Key:        key,
		Value:      value,
		CreatedAt:  now,
		AccessedAt: now,
		TTL:        ttl,
	}
	e.Size = e.EstimateSize()
	return e
}

// EstimateSize returns a best-effort byte estimate for the entry: key bytes,
// value bytes, and the fixed metadata overhead.
func (e *Entry) EstimateSize() int64 {
	return int64(len(e.Key)) + int64(len(e.Value)) + entryOverhead
}

// Touch records an access: AccessedAt only ever moves forward and AccessCount
// grows monotonically while the entry lives.
func (e *Entry) Touch(now time.Time) {
	if now.After(e.AccessedAt) {
		e.AccessedAt = now
	}
	e.AccessCount++
}

// Expired reports whether the entry's TTL has elapsed at the given instant.
// Entries without a TTL never expire.
func (e *Entry) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.After(e.CreatedAt.Add(e.TTL))
}

// Age returns how long ago the entry was created (or last refreshed).
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// SinceAccess returns how long ago the entry was last read.
func (e *Entry) SinceAccess(now time.Time) time.Duration {
	return now.Sub(e.AccessedAt)
}
