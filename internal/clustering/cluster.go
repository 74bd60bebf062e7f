// Package clustering groups embedding vectors by density over cosine distance and
// labels sparse points as noise.
package clustering

import (
	"sort"

	"github.com/miradorstack/mirador-sop/internal/models"
	"github.com/miradorstack/mirador-sop/internal/utils"
)

// Assignment labels every input vector with a cluster id or models.NoiseClusterID.
// Cluster ids run 0..Clusters-1 in order of each cluster's lowest member index.
type Assignment struct {
	Labels   []int
	Clusters int
}

// Groups returns the member indices of each cluster, ascending.
func (a Assignment) Groups() map[int][]int {
	groups := make(map[int][]int, a.Clusters)
	for idx, label := range a.Labels {
		if label == models.NoiseClusterID {
			continue
		}
		groups[label] = append(groups[label], idx)
	}
	return groups
}

// Noise returns the indices labelled as noise, ascending.
func (a Assignment) Noise() []int {
	out := make([]int, 0)
	for idx, label := range a.Labels {
		if label == models.NoiseClusterID {
			out = append(out, idx)
		}
	}
	return out
}

// Cluster partitions vectors into density-based clusters and noise. Identical input
// and configuration always produce the identical assignment. Zero vectors carry no
// direction and are labelled noise before clustering.
func Cluster(vectors [][]float32, cfg Config) (Assignment, error) {
	const op = "clustering.Cluster"

	if err := cfg.Validate(); err != nil {
		return Assignment{}, utils.NewPreconditionError(op, err.Error())
	}
	unit, err := Normalize(vectors)
	if err != nil {
		return Assignment{}, utils.NewPreconditionError(op, err.Error())
	}

	result := Assignment{Labels: make([]int, len(unit))}
	for i := range result.Labels {
		result.Labels[i] = models.NoiseClusterID
	}
	active := make([]int, 0, len(unit))
	rows := make([][]float64, 0, len(unit))
	for i, row := range unit {
		if Dot(row, row) > 0 {
			active = append(active, i)
			rows = append(rows, row)
		}
	}
	n := len(rows)
	if n < 2 || n < cfg.MinClusterSize {
		return result, nil
	}

	sim := newSimilarityMatrix(rows)
	core := coreDistances(sim, cfg.MinSamples)
	merges := singleLinkage(n, minimumSpanningTree(sim, core))
	tree := condense(merges, n, cfg.branchSize(), cfg.rootLambda())
	selected := tree.selectClusters()

	groups := make([][]int, 0)
	for c, ok := range selected {
		if ok {
			groups = append(groups, filterCluster(tree, sim, c, cfg)...)
		}
	}
	if cfg.Filter == FilterMember {
		for i, members := range groups {
			groups[i] = ejectOutliers(rows, members, cfg.SimilarityThreshold)
		}
	}

	kept := groups[:0]
	for _, members := range groups {
		if len(members) >= cfg.MinClusterSize {
			kept = append(kept, members)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i][0] < kept[j][0] })
	for label, members := range kept {
		for _, idx := range members {
			result.Labels[active[idx]] = label
		}
	}
	result.Clusters = len(kept)
	return result, nil
}

// filterCluster returns the member sets that survive the similarity threshold for a
// selected cluster: the cluster itself, trimmed of its sparsest points if needed,
// otherwise whatever its sub-clusters yield.
func filterCluster(tree condensedTree, sim similarityMatrix, c int, cfg Config) [][]int {
	members := tree.members(c)
	if len(members) == 0 {
		return nil
	}
	if cfg.Filter == FilterOff {
		return [][]int{members}
	}
	if kept := trimFringe(tree, sim, c, members, cfg); kept != nil {
		return [][]int{kept}
	}
	var out [][]int
	for _, child := range tree.children[c] {
		out = append(out, filterCluster(tree, sim, child, cfg)...)
	}
	return out
}

// trimFringe drops the points that leave cluster c directly, lowest lambda first and
// one lambda level at a time, until the remaining members meet the similarity
// threshold. It returns nil once fewer than the minimum branch size would remain.
func trimFringe(tree condensedTree, sim similarityMatrix, c int, members []int, cfg Config) []int {
	sum := sim.pairwiseSum(members)
	count := len(members)
	cohesive := func() bool {
		if count < 2 {
			return true
		}
		return sum/float64(count*(count-1)/2) >= cfg.SimilarityThreshold
	}
	if cohesive() {
		return members
	}

	fringe := make([]int, 0)
	for _, p := range members {
		if tree.pointParent[p] == c {
			fringe = append(fringe, p)
		}
	}
	sort.SliceStable(fringe, func(i, j int) bool {
		return tree.pointLambda[fringe[i]] < tree.pointLambda[fringe[j]]
	})

	dropped := make(map[int]bool, len(fringe))
	for i, p := range fringe {
		dropped[p] = true
		count--
		for _, q := range members {
			if !dropped[q] {
				sum -= sim.similarity(p, q)
			}
		}
		if count < cfg.branchSize() {
			return nil
		}
		if i+1 < len(fringe) && tree.pointLambda[fringe[i+1]] == tree.pointLambda[p] {
			continue
		}
		if cohesive() {
			kept := make([]int, 0, count)
			for _, q := range members {
				if !dropped[q] {
					kept = append(kept, q)
				}
			}
			return kept
		}
	}
	return nil
}

// ejectOutliers drops members whose similarity to the cluster centroid is below threshold.
func ejectOutliers(unit [][]float64, members []int, threshold float64) []int {
	center := Centroid(unit, members)
	kept := make([]int, 0, len(members))
	for _, idx := range members {
		if Dot(unit[idx], center) >= threshold {
			kept = append(kept, idx)
		}
	}
	return kept
}
