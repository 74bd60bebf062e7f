package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-sop/internal/clustering"
	"github.com/miradorstack/mirador-sop/internal/config"
	"github.com/miradorstack/mirador-sop/internal/embedding"
	"github.com/miradorstack/mirador-sop/internal/extractors"
	"github.com/miradorstack/mirador-sop/internal/metrics"
	"github.com/miradorstack/mirador-sop/internal/models"
	"github.com/miradorstack/mirador-sop/internal/patterns"
	"github.com/miradorstack/mirador-sop/internal/utils"
)

// Settings is the immutable per-categorizer configuration. It is copied into the
// Categorizer at construction so concurrent runs never share mutable state.
type Settings struct {
	Cluster               clustering.Config
	Analyzer              patterns.AnalyzerConfig
	FeatureFields         []string
	FeatureSeparator      string
	MinIncidentsForOutput int
	// Timeout bounds a whole run; zero disables the budget.
	Timeout time.Duration
}

// DefaultSettings mirrors the service defaults.
func DefaultSettings() Settings {
	return Settings{
		Cluster:               clustering.DefaultConfig(),
		Analyzer:              patterns.DefaultAnalyzerConfig(),
		FeatureFields:         extractors.DefaultFields,
		FeatureSeparator:      extractors.DefaultSeparator,
		MinIncidentsForOutput: 3,
	}
}

// SettingsFromConfig converts loaded configuration into engine settings.
func SettingsFromConfig(cat config.CategorizationConfig, run config.RunConfig) (Settings, error) {
	mode, err := clustering.ParseFilterMode(cat.SimilarityFilter)
	if err != nil {
		return Settings{}, err
	}
	stopWords := patterns.DefaultStopWords
	if len(cat.StopWords) > 0 {
		stopWords = cat.StopWords
	}
	return Settings{
		Cluster: clustering.Config{
			MinClusterSize:      cat.MinClusterSize,
			MinSamples:          cat.MinSamples,
			SimilarityThreshold: cat.SimilarityThreshold,
			Filter:              mode,
		},
		Analyzer: patterns.AnalyzerConfig{
			PatternFields: cat.PatternFields,
			StopWords:     stopWords,
			TopTerms:      cat.TopTerms,
			MinTermLength: cat.MinTermLength,
		},
		FeatureFields:         cat.FeatureFields,
		FeatureSeparator:      cat.FeatureSeparator,
		MinIncidentsForOutput: cat.MinIncidentsForOutput,
		Timeout:               run.Timeout,
	}, nil
}

// Categorizer runs feature extraction, embedding, clustering and analysis in order.
type Categorizer struct {
	logger    *slog.Logger
	embedder  embedding.Embedder
	settings  Settings
	extractor *extractors.FeatureExtractor
	analyzer  *patterns.Analyzer
}

// NewCategorizer validates settings and constructs a Categorizer.
func NewCategorizer(logger *slog.Logger, embedder embedding.Embedder, settings Settings) (*Categorizer, error) {
	if embedder == nil {
		return nil, errors.New("embedder not configured")
	}
	if err := settings.Cluster.Validate(); err != nil {
		return nil, fmt.Errorf("cluster settings: %w", err)
	}
	if settings.MinIncidentsForOutput < 0 {
		return nil, fmt.Errorf("min_incidents_for_output must be >= 0, got %d", settings.MinIncidentsForOutput)
	}
	if logger == nil {
		logger = slog.Default()
	}
	settings.FeatureFields = append([]string(nil), settings.FeatureFields...)

	return &Categorizer{
		logger:    logger,
		embedder:  embedder,
		settings:  settings,
		extractor: extractors.NewFeatureExtractor(settings.FeatureFields, settings.FeatureSeparator),
		analyzer:  patterns.NewAnalyzer(settings.Analyzer, logger),
	}, nil
}

// Settings returns a copy of the categorizer configuration.
func (c *Categorizer) Settings() Settings {
	return c.settings
}

// Categorize partitions incidents into emitted clusters, withheld clusters and noise.
// Any failure aborts the run without partial output.
func (c *Categorizer) Categorize(ctx context.Context, incidents []models.Incident) (models.CategorizationResult, error) {
	const op = "engine.Categorize"

	if c.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.settings.Timeout)
		defer cancel()
	}

	start := time.Now()
	result := models.NewCategorizationResult(uuid.NewString())
	logger := c.logger.With("run_id", result.RunID)

	if len(incidents) == 0 {
		result.Account()
		logger.Info("categorization skipped, no incidents")
		return result, nil
	}

	blobs := c.extractor.ExtractAll(incidents)

	embedStart := time.Now()
	vectors, err := c.embedder.Encode(ctx, blobs)
	metrics.ObserveEmbedding(time.Since(embedStart))
	if err != nil {
		if budgetExceeded(ctx) {
			return models.CategorizationResult{}, utils.NewEngineTimeoutError(op, err)
		}
		return models.CategorizationResult{}, utils.NewFeatureExtractionError(op, err)
	}
	if err := embedding.CheckBatch(blobs, vectors); err != nil {
		return models.CategorizationResult{}, utils.NewFeatureExtractionError(op, err)
	}
	if err := checkBudget(ctx, op); err != nil {
		return models.CategorizationResult{}, err
	}
	logger.Debug("embeddings generated",
		"model", c.embedder.Model(),
		"incidents", len(incidents),
		"dimension", len(vectors[0]),
		"duration", time.Since(embedStart),
	)

	assignment, err := clustering.Cluster(vectors, c.settings.Cluster)
	if err != nil {
		return models.CategorizationResult{}, err
	}
	if err := checkBudget(ctx, op); err != nil {
		return models.CategorizationResult{}, err
	}

	for id, members := range assignment.Groups() {
		group := models.ClusterGroup{Incidents: make([]models.Incident, len(members))}
		groupVectors := make([][]float32, len(members))
		for i, idx := range members {
			group.Incidents[i] = incidents[idx]
			groupVectors[i] = vectors[idx]
		}
		analysis, err := c.analyzer.Analyze(id, group.Incidents, groupVectors)
		if err != nil {
			return models.CategorizationResult{}, err
		}
		group.Analysis = analysis

		if len(members) >= c.settings.MinIncidentsForOutput {
			result.Clusters[id] = group
		} else {
			result.Withheld[id] = group
		}
	}
	for _, idx := range assignment.Noise() {
		result.Noise = append(result.Noise, incidents[idx])
	}
	if err := checkBudget(ctx, op); err != nil {
		return models.CategorizationResult{}, err
	}

	result.Account()
	metrics.ObservePartition(result.Accounting)

	acc := result.Accounting
	logger.Info("categorization complete",
		"incidents", acc.Total,
		"clusters", acc.Clusters,
		"emitted", len(result.Clusters),
		"withheld", len(result.Withheld),
		"noise", acc.Noise,
		"noise_ratio", float64(acc.Noise)/float64(acc.Total),
		"duration", time.Since(start),
	)
	return result, nil
}

func budgetExceeded(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}

// checkBudget converts an expired run budget into an engine timeout and a caller
// cancellation into a plain wrapped error.
func checkBudget(ctx context.Context, op string) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return utils.NewEngineTimeoutError(op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
