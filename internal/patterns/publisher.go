package patterns

import (
	"context"

	"github.com/miradorstack/mirador-sop/internal/models"
)

// Publisher pushes emitted cluster analyses to an external store.
type Publisher interface {
	StorePatterns(ctx context.Context, runID string, analyses []models.ClusterAnalysis) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, runID string, analyses []models.ClusterAnalysis) error

// StorePatterns implements Publisher.
func (f PublisherFunc) StorePatterns(ctx context.Context, runID string, analyses []models.ClusterAnalysis) error {
	return f(ctx, runID, analyses)
}

// EmittedAnalyses returns the analyses of emitted clusters, largest first.
func EmittedAnalyses(result models.CategorizationResult) []models.ClusterAnalysis {
	ids := result.SortedClusterIDs()
	out := make([]models.ClusterAnalysis, 0, len(ids))
	for _, id := range ids {
		out = append(out, result.Clusters[id].Analysis)
	}
	return out
}
