package clustering

// minDistance floors merge distances so identical points get a finite lambda.
const minDistance = 1e-9

// condensedTree is the dendrogram reduced to branches of at least the minimum
// branch size. Cluster 0 is the root; children always have larger indices than
// their parent.
type condensedTree struct {
	parent   []int
	birth    []float64
	size     []int
	children [][]int
	// pointParent is the cluster each point fell out of, at pointLambda.
	pointParent []int
	pointLambda []float64
	// rootLambda is the membership level of the root when it is selected.
	rootLambda float64
}

func lambdaOf(distance float64) float64 {
	if distance < minDistance {
		distance = minDistance
	}
	return 1 / distance
}

func condense(merges []merge, n, minSize int, rootLambda float64) condensedTree {
	t := condensedTree{
		pointParent: make([]int, n),
		pointLambda: make([]float64, n),
		rootLambda:  rootLambda,
	}
	sizeOf := func(node int) int {
		if node < n {
			return 1
		}
		return merges[node-n].size
	}
	t.addCluster(-1, 0, n)

	root := 2*n - 2
	label := map[int]int{root: 0}
	queue := []int{root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		m := merges[node-n]
		lambda := lambdaOf(m.distance)
		owner := label[node]
		pair := [2]int{m.left, m.right}

		if sizeOf(m.left) >= minSize && sizeOf(m.right) >= minSize {
			for _, child := range pair {
				label[child] = t.addCluster(owner, lambda, sizeOf(child))
				queue = append(queue, child)
			}
			continue
		}
		for _, child := range pair {
			if sizeOf(child) >= minSize {
				label[child] = owner
				queue = append(queue, child)
				continue
			}
			t.fallOut(owner, child, lambda, merges, n)
		}
	}
	return t
}

func (t *condensedTree) addCluster(parent int, birth float64, size int) int {
	idx := len(t.parent)
	t.parent = append(t.parent, parent)
	t.birth = append(t.birth, birth)
	t.size = append(t.size, size)
	t.children = append(t.children, nil)
	if parent >= 0 {
		t.children[parent] = append(t.children[parent], idx)
	}
	return idx
}

// fallOut detaches every point under node from cluster owner at lambda.
func (t *condensedTree) fallOut(owner, node int, lambda float64, merges []merge, n int) {
	stack := []int{node}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top < n {
			t.pointParent[top] = owner
			t.pointLambda[top] = lambda
			continue
		}
		m := merges[top-n]
		stack = append(stack, m.right, m.left)
	}
}

// stabilities computes the excess of mass of each cluster: the sum over everything
// leaving it of (lambda at exit - lambda at birth) * size.
func (t condensedTree) stabilities() []float64 {
	stab := make([]float64, len(t.parent))
	for c, parent := range t.parent {
		if parent >= 0 {
			stab[parent] += (t.birth[c] - t.birth[parent]) * float64(t.size[c])
		}
	}
	for p, owner := range t.pointParent {
		stab[owner] += t.pointLambda[p] - t.birth[owner]
	}
	return stab
}

// selectClusters runs excess-of-mass selection bottom-up. The root is eligible, so
// a single all-encompassing cluster can be chosen when nothing splits more stably.
func (t condensedTree) selectClusters() []bool {
	stab := t.stabilities()
	selected := make([]bool, len(t.parent))
	for c := range selected {
		selected[c] = true
	}
	for c := len(t.parent) - 1; c >= 0; c-- {
		sub := 0.0
		for _, child := range t.children[c] {
			sub += stab[child]
		}
		if len(t.children[c]) > 0 && sub > stab[c] {
			selected[c] = false
			stab[c] = sub
			continue
		}
		t.deselectDescendants(c, selected)
	}
	return selected
}

func (t condensedTree) deselectDescendants(c int, selected []bool) {
	stack := append([]int(nil), t.children[c]...)
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		selected[top] = false
		stack = append(stack, t.children[top]...)
	}
}

// isUnder reports whether cluster c is ancestor (or self) of cluster d.
func (t condensedTree) isUnder(d, c int) bool {
	for d >= 0 {
		if d == c {
			return true
		}
		d = t.parent[d]
	}
	return false
}

// members lists, in ascending order, the points whose fall-out cluster lies under c.
// Points leaving a cluster at the level it was born add no mass and are left out.
// The root keeps the points that persist to rootLambda.
func (t condensedTree) members(c int) []int {
	out := make([]int, 0, t.size[c])
	for p, owner := range t.pointParent {
		if c == 0 {
			if t.pointLambda[p] >= t.rootLambda {
				out = append(out, p)
			}
			continue
		}
		if t.isUnder(owner, c) && t.pointLambda[p] > t.birth[owner] {
			out = append(out, p)
		}
	}
	return out
}
