package antidetect

import (
	"sync"
	"time"
)

// tokenBucket allows bursts up to capacity while holding an average rate.
// Monotonic time keeps refill arithmetic immune to wall-clock jumps.
type tokenBucket struct {
	capacity   int64
	tokens     int64
	refillRate float64
	lastRefill time.Time
}

func newTokenBucket(capacity int64, refillRate float64) *tokenBucket {
	return &tokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// take consumes one token if available. Caller must hold the owning lock.
func (tb *tokenBucket) take() bool {
	now := time.Now()
	added := int64(now.Sub(tb.lastRefill).Seconds() * tb.refillRate)
	if added > 0 {
		tb.tokens += added
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// globalKey is the bucket key when per-source keying is disabled.
const globalKey = "*"

// sourceEntry pairs a bucket with its last use for idle expiry.
type sourceEntry struct {
	bucket   *tokenBucket
	lastSeen time.Time
}

// SourceLimiter rate-limits connection attempts, keyed by source address
// when per-IP mode is on, by a single shared bucket otherwise.
type SourceLimiter struct {
	rps   float64
	burst int64
	perIP bool

	mu      sync.Mutex
	entries map[string]*sourceEntry
}

// NewSourceLimiter builds a limiter with capacity=burst, refill=rps.
func NewSourceLimiter(requestsPerSecond, burst int, perIP bool) *SourceLimiter {
	return &SourceLimiter{
		rps:     float64(requestsPerSecond),
		burst:   int64(burst),
		perIP:   perIP,
		entries: make(map[string]*sourceEntry),
	}
}

// Allow reports whether a connection from source may proceed.
func (l *SourceLimiter) Allow(source string) bool {
	key := globalKey
	if l.perIP {
		key = source
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &sourceEntry{bucket: newTokenBucket(l.burst, l.rps)}
		l.entries[key] = e
	}
	e.lastSeen = time.Now()
	return e.bucket.take()
}

// Cleanup drops buckets idle longer than maxIdle and returns how many were
// removed. Called on a schedule so long-gone sources don't pin memory.
func (l *SourceLimiter) Cleanup(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Tracked returns the number of live buckets.
func (l *SourceLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
