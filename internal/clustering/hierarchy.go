package clustering

import (
	"math"
	"sort"
)

// edge is an undirected spanning-tree edge with a < b.
type edge struct {
	a, b   int
	weight float64
}

// merge is one step of the single-linkage dendrogram. Nodes below n are points;
// merge k creates node n+k.
type merge struct {
	left, right int
	distance    float64
	size        int
}

// coreDistances returns, for every point, the distance to its k-th nearest other
// point, with k capped at n-1.
func coreDistances(m similarityMatrix, minSamples int) []float64 {
	n := m.n
	core := make([]float64, n)
	k := minSamples
	if k > n-1 {
		k = n - 1
	}
	if k < 1 {
		return core
	}
	row := make([]float64, 0, n-1)
	for i := 0; i < n; i++ {
		row = row[:0]
		for j := 0; j < n; j++ {
			if j != i {
				row = append(row, m.distance(i, j))
			}
		}
		sort.Float64s(row)
		core[i] = row[k-1]
	}
	return core
}

func mutualReachability(m similarityMatrix, core []float64, i, j int) float64 {
	return math.Max(math.Max(core[i], core[j]), m.distance(i, j))
}

// minimumSpanningTree runs Prim's algorithm over the mutual reachability graph.
// Ties pick the lowest vertex index. Edges come back sorted by weight, then endpoints.
func minimumSpanningTree(m similarityMatrix, core []float64) []edge {
	n := m.n
	if n < 2 {
		return nil
	}
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
	}

	edges := make([]edge, 0, n-1)
	current := 0
	inTree[current] = true
	for len(edges) < n-1 {
		next := -1
		for v := 0; v < n; v++ {
			if inTree[v] {
				continue
			}
			if w := mutualReachability(m, core, current, v); w < best[v] {
				best[v] = w
				from[v] = current
			}
			if next == -1 || best[v] < best[next] {
				next = v
			}
		}
		inTree[next] = true
		a, b := from[next], next
		if a > b {
			a, b = b, a
		}
		edges = append(edges, edge{a: a, b: b, weight: best[next]})
		current = next
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].weight != edges[j].weight {
			return edges[i].weight < edges[j].weight
		}
		if edges[i].a != edges[j].a {
			return edges[i].a < edges[j].a
		}
		return edges[i].b < edges[j].b
	})
	return edges
}

// singleLinkage folds sorted spanning-tree edges into a dendrogram with union-find.
func singleLinkage(n int, edges []edge) []merge {
	parent := make([]int, 2*n-1)
	size := make([]int, 2*n-1)
	for i := range parent {
		parent[i] = i
		if i < n {
			size[i] = 1
		}
	}
	find := func(x int) int {
		root := x
		for parent[root] != root {
			root = parent[root]
		}
		for parent[x] != root {
			parent[x], x = root, parent[x]
		}
		return root
	}

	merges := make([]merge, 0, len(edges))
	next := n
	for _, e := range edges {
		ra, rb := find(e.a), find(e.b)
		merged := size[ra] + size[rb]
		merges = append(merges, merge{left: ra, right: rb, distance: e.weight, size: merged})
		parent[ra], parent[rb] = next, next
		size[next] = merged
		next++
	}
	return merges
}
