package utils

import (
	"sort"
	"sync"
	"time"
)

// LatencyTracker keeps a bounded ring of recent duration samples and answers
// percentile queries over them.
type LatencyTracker struct {
	mu     sync.RWMutex
	ring   []time.Duration
	next   int
	filled int
}

// NewLatencyTracker creates a tracker keeping up to capacity samples.
func NewLatencyTracker(capacity int) *LatencyTracker {
	if capacity <= 0 {
		capacity = 512
	}
	return &LatencyTracker{ring: make([]time.Duration, capacity)}
}

// Observe records a duration, evicting the oldest sample once the ring is full.
func (t *LatencyTracker) Observe(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ring[t.next] = d
	t.next = (t.next + 1) % len(t.ring)
	if t.filled < len(t.ring) {
		t.filled++
	}
}

// Count reports how many samples are currently held.
func (t *LatencyTracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.filled
}

// Percentile returns the p-th percentile (0-100) of the held samples, or zero
// when no samples have been observed.
func (t *LatencyTracker) Percentile(p float64) time.Duration {
	t.mu.RLock()
	snapshot := append([]time.Duration(nil), t.ring[:t.filled]...)
	t.mu.RUnlock()

	if len(snapshot) == 0 {
		return 0
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i] < snapshot[j] })
	if p <= 0 {
		return snapshot[0]
	}
	if p >= 100 {
		return snapshot[len(snapshot)-1]
	}
	idx := int((p / 100.0) * float64(len(snapshot)-1))
	return snapshot[idx]
}
