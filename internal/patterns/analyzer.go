package patterns

import (
	"log/slog"
	"strings"

	"github.com/miradorstack/mirador-sop/internal/clustering"
	"github.com/miradorstack/mirador-sop/internal/models"
	"github.com/miradorstack/mirador-sop/internal/utils"
)

// AnalyzerConfig controls common-pattern extraction.
type AnalyzerConfig struct {
	PatternFields []string
	StopWords     []string
	TopTerms      int
	MinTermLength int
}

// DefaultAnalyzerConfig returns the service defaults.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		PatternFields: []string{models.FieldShortDescription, models.FieldDescription, models.FieldResolution},
		StopWords:     DefaultStopWords,
		TopTerms:      10,
		MinTermLength: 5,
	}
}

// Analyzer summarises the incidents of one cluster. It holds no mutable state and
// may be shared across runs.
type Analyzer struct {
	cfg    AnalyzerConfig
	logger *slog.Logger
}

// NewAnalyzer constructs an Analyzer. Empty config fields fall back to defaults.
func NewAnalyzer(cfg AnalyzerConfig, logger *slog.Logger) *Analyzer {
	defaults := DefaultAnalyzerConfig()
	if len(cfg.PatternFields) == 0 {
		cfg.PatternFields = defaults.PatternFields
	}
	if cfg.StopWords == nil {
		cfg.StopWords = defaults.StopWords
	}
	if cfg.TopTerms <= 0 {
		cfg.TopTerms = defaults.TopTerms
	}
	if cfg.MinTermLength <= 0 {
		cfg.MinTermLength = defaults.MinTermLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{cfg: cfg, logger: logger}
}

// Analyze computes distributions, common terms, the representative incident and
// resolution statistics for one cluster. vectors may be nil; otherwise it must align
// with incidents.
func (a *Analyzer) Analyze(clusterID int, incidents []models.Incident, vectors [][]float32) (models.ClusterAnalysis, error) {
	const op = "patterns.Analyze"

	if len(incidents) == 0 {
		return models.ClusterAnalysis{}, utils.NewPreconditionError(op, "cluster has no incidents")
	}
	if vectors != nil && len(vectors) != len(incidents) {
		return models.ClusterAnalysis{}, utils.NewPreconditionError(op, "vector count does not match incident count")
	}

	categories := make([]string, len(incidents))
	priorities := make([]string, len(incidents))
	subcategories := make([]string, len(incidents))
	groups := make([]string, len(incidents))
	terms := newTermCounter(a.cfg.MinTermLength, a.cfg.StopWords)
	hours := make([]float64, 0, len(incidents))

	for i, inc := range incidents {
		categories[i] = strings.TrimSpace(inc.Category)
		priorities[i] = strings.TrimSpace(inc.Priority)
		subcategories[i] = strings.TrimSpace(inc.Subcategory)
		groups[i] = strings.TrimSpace(inc.AssignmentGroup)
		for _, field := range a.cfg.PatternFields {
			terms.add(inc.Field(field))
		}
		if d, ok := inc.ResolutionDuration(); ok {
			hours = append(hours, d.Hours())
		}
	}

	analysis := models.ClusterAnalysis{
		ClusterID:                   clusterID,
		IncidentCount:               len(incidents),
		CategoryDistribution:        distribution(categories),
		PriorityDistribution:        distribution(priorities),
		SubcategoryDistribution:     distribution(subcategories),
		AssignmentGroupDistribution: distribution(groups),
		CommonPatterns:              terms.top(a.cfg.TopTerms),
		ResolutionSamples:           len(hours),
	}
	analysis.TopCategory = dominant(analysis.CategoryDistribution)

	if len(hours) > 0 {
		analysis.AvgResolutionHours = ptr(mean(hours))
		analysis.MedianResolutionHours = ptr(percentile(hours, 0.5))
		analysis.P90ResolutionHours = ptr(percentile(hours, 0.9))
	}

	rep, cohesion, err := representative(incidents, vectors)
	if err != nil {
		return models.ClusterAnalysis{}, utils.NewPreconditionError(op, err.Error())
	}
	analysis.RepresentativeIncident = rep
	analysis.Cohesion = cohesion

	a.logger.Debug("cluster analysed",
		"cluster_id", clusterID,
		"incidents", analysis.IncidentCount,
		"top_category", analysis.TopCategory,
		"representative", analysis.RepresentativeIncident,
		"resolution_samples", analysis.ResolutionSamples,
	)
	return analysis, nil
}

// representative picks the member closest to the normalised centroid, ties going to
// the smallest incident number. Without vectors the smallest number wins.
func representative(incidents []models.Incident, vectors [][]float32) (string, float64, error) {
	if len(vectors) == 0 {
		best := incidents[0].Number
		for _, inc := range incidents[1:] {
			if inc.Number < best {
				best = inc.Number
			}
		}
		return best, 0, nil
	}

	unit, err := clustering.Normalize(vectors)
	if err != nil {
		return "", 0, err
	}
	all := make([]int, len(unit))
	for i := range all {
		all[i] = i
	}
	center := clustering.Centroid(unit, all)

	bestIdx := -1
	bestScore := 0.0
	total := 0.0
	for i, row := range unit {
		score := clustering.Dot(row, center)
		total += score
		if bestIdx == -1 || score > bestScore || (score == bestScore && incidents[i].Number < incidents[bestIdx].Number) {
			bestIdx = i
			bestScore = score
		}
	}
	return incidents[bestIdx].Number, total / float64(len(unit)), nil
}
