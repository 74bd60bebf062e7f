package utils

import (
	"math"
	"slices"
	"sync"
	"time"
)

// LatencyTracker keeps the most recent run durations in a ring buffer.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	total   int
}

// LatencySummary is a point-in-time view of the tracked window.
type LatencySummary struct {
	Samples int
	P50     time.Duration
	P95     time.Duration
	Max     time.Duration
}

// NewLatencyTracker creates a tracker holding up to window samples.
func NewLatencyTracker(window int) *LatencyTracker {
	if window <= 0 {
		window = 512
	}
	return &LatencyTracker{samples: make([]time.Duration, 0, window)}
}

// Observe records a new duration, evicting the oldest once the window is full.
func (l *LatencyTracker) Observe(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total++
	if len(l.samples) < cap(l.samples) {
		l.samples = append(l.samples, d)
		return
	}
	l.samples[l.next] = d
	l.next = (l.next + 1) % len(l.samples)
}

// Count returns the number of samples in the window.
func (l *LatencyTracker) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.samples)
}

// Total returns how many durations were ever observed.
func (l *LatencyTracker) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Percentile returns the nearest-rank percentile (0-100) of the window, or zero when empty.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	return nearestRank(l.sorted(), p)
}

// Summary reports the window's median, p95 and maximum.
func (l *LatencyTracker) Summary() LatencySummary {
	sorted := l.sorted()
	summary := LatencySummary{Samples: len(sorted)}
	if len(sorted) == 0 {
		return summary
	}
	summary.P50 = nearestRank(sorted, 50)
	summary.P95 = nearestRank(sorted, 95)
	summary.Max = sorted[len(sorted)-1]
	return summary
}

func (l *LatencyTracker) sorted() []time.Duration {
	l.mu.Lock()
	out := slices.Clone(l.samples)
	l.mu.Unlock()
	slices.Sort(out)
	return out
}

func nearestRank(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
