package clustering

import (
	"fmt"
	"math"
)

// Normalize copies vectors into unit-length float64 rows. Zero vectors stay zero and
// therefore have similarity 0 to everything. All vectors must share one dimension
// and contain only finite values.
func Normalize(vectors [][]float32) ([][]float64, error) {
	if len(vectors) == 0 {
		return [][]float64{}, nil
	}
	dim := len(vectors[0])
	out := make([][]float64, len(vectors))
	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(vec), dim)
		}
		row := make([]float64, dim)
		norm := 0.0
		for j, v := range vec {
			f := float64(v)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, fmt.Errorf("vector %d has a non-finite component at %d", i, j)
			}
			row[j] = f
			norm += f * f
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range row {
				row[j] /= norm
			}
		}
		out[i] = row
	}
	return out, nil
}

// Dot returns the inner product of two equal-length rows.
func Dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Centroid returns the unit-length mean of the given rows, or a zero row when the
// mean vanishes.
func Centroid(rows [][]float64, members []int) []float64 {
	if len(rows) == 0 {
		return nil
	}
	center := make([]float64, len(rows[0]))
	for _, idx := range members {
		for j, v := range rows[idx] {
			center[j] += v
		}
	}
	norm := math.Sqrt(Dot(center, center))
	if norm == 0 {
		return center
	}
	for j := range center {
		center[j] /= norm
	}
	return center
}

// similarityMatrix is a symmetric n×n cosine similarity table in row-major order.
type similarityMatrix struct {
	n    int
	data []float64
}

func newSimilarityMatrix(unit [][]float64) similarityMatrix {
	n := len(unit)
	m := similarityMatrix{n: n, data: make([]float64, n*n)}
	for i := 0; i < n; i++ {
		m.data[i*n+i] = 1
		for j := i + 1; j < n; j++ {
			s := clamp(Dot(unit[i], unit[j]), -1, 1)
			m.data[i*n+j] = s
			m.data[j*n+i] = s
		}
	}
	return m
}

func (m similarityMatrix) similarity(i, j int) float64 {
	return m.data[i*m.n+j]
}

// distance is the cosine distance 1 - similarity, within [0, 2].
func (m similarityMatrix) distance(i, j int) float64 {
	if i == j {
		return 0
	}
	return 1 - m.data[i*m.n+j]
}

// pairwiseSum totals similarity over all unordered member pairs.
func (m similarityMatrix) pairwiseSum(members []int) float64 {
	sum := 0.0
	for a := 0; a < len(members); a++ {
		for b := a + 1; b < len(members); b++ {
			sum += m.similarity(members[a], members[b])
		}
	}
	return sum
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
