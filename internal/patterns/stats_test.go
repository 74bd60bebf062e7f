package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentileNearestRank(t *testing.T) {
	samples := []float64{7, 1, 10, 3, 5, 2, 9, 4, 8, 6}
	cases := map[float64]float64{
		0:    1,
		0.1:  1,
		0.15: 2,
		0.5:  5,
		0.9:  9,
		0.95: 10,
		1:    10,
	}
	for p, want := range cases {
		assert.Equal(t, want, percentile(samples, p), "p=%g", p)
	}

	assert.Equal(t, 2.0, percentile([]float64{6, 2}, 0.5), "median of two is the lower sample")
	assert.Zero(t, percentile(nil, 0.5))
	assert.Equal(t, []float64{7, 1, 10, 3, 5, 2, 9, 4, 8, 6}, samples, "input must not be reordered")
}
