package clustering

import (
	"fmt"
	"math"
	"strings"
)

// FilterMode selects how the similarity threshold is applied after density grouping.
type FilterMode string

const (
	// FilterCluster rejects clusters whose mean pairwise similarity is below the
	// threshold and retries their sub-clusters in their place.
	FilterCluster FilterMode = "cluster"
	// FilterMember applies FilterCluster, then ejects members whose similarity to
	// their cluster centroid is below the threshold.
	FilterMember FilterMode = "member"
	// FilterOff keeps density clusters as found.
	FilterOff FilterMode = "off"
)

// ParseFilterMode converts a configured string into a FilterMode. Empty means FilterCluster.
func ParseFilterMode(value string) (FilterMode, error) {
	switch mode := FilterMode(strings.ToLower(strings.TrimSpace(value))); mode {
	case "":
		return FilterCluster, nil
	case FilterCluster, FilterMember, FilterOff:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown similarity filter %q", value)
	}
}

// Config holds the tunables of one clustering call.
type Config struct {
	// MinClusterSize is the minimum branch size of the condensed tree and the
	// population floor applied after filtering.
	MinClusterSize int
	// MinSamples sets the neighbourhood used for core distances.
	MinSamples          int
	SimilarityThreshold float64
	Filter              FilterMode
}

// DefaultConfig mirrors the service defaults.
func DefaultConfig() Config {
	return Config{
		MinClusterSize:      5,
		MinSamples:          3,
		SimilarityThreshold: 0.75,
		Filter:              FilterCluster,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.MinClusterSize < 1 {
		return fmt.Errorf("min_cluster_size must be >= 1, got %d", c.MinClusterSize)
	}
	if c.MinSamples < 1 {
		return fmt.Errorf("min_samples must be >= 1, got %d", c.MinSamples)
	}
	if math.IsNaN(c.SimilarityThreshold) || c.SimilarityThreshold < -1 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be within [-1, 1], got %g", c.SimilarityThreshold)
	}
	switch c.Filter {
	case FilterCluster, FilterMember, FilterOff:
	default:
		return fmt.Errorf("unknown similarity filter %q", c.Filter)
	}
	return nil
}

func (c Config) branchSize() int {
	if c.MinClusterSize < 2 {
		return 2
	}
	return c.MinClusterSize
}

// rootLambda is the density a point must reach to belong to a selected root cluster.
// The root has no birth level of its own, so the similarity threshold stands in.
func (c Config) rootLambda() float64 {
	return lambdaOf(1 - c.SimilarityThreshold)
}
