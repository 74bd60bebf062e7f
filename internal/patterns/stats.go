package patterns

import (
	"math"
	"sort"

	"github.com/miradorstack/mirador-sop/internal/models"
)

// distribution counts values, folding blanks into models.UnknownValue so the
// table always sums to len(values).
func distribution(values []string) map[string]int {
	out := make(map[string]int)
	for _, v := range values {
		if v == "" {
			v = models.UnknownValue
		}
		out[v]++
	}
	return out
}

// dominant returns the most frequent key, ties broken alphabetically.
func dominant(dist map[string]int) string {
	best := ""
	for key, count := range dist {
		if best == "" || count > dist[best] || (count == dist[best] && key < best) {
			best = key
		}
	}
	return best
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// percentile returns the nearest-rank value at fraction p of the sorted samples:
// the smallest sample with at least p of the samples at or below it.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func ptr(v float64) *float64 {
	return &v
}
