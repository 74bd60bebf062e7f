package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/mirador-sop/internal/metrics"
	"github.com/miradorstack/mirador-sop/internal/models"
	"github.com/miradorstack/mirador-sop/internal/patterns"
	"github.com/miradorstack/mirador-sop/internal/utils"
	"github.com/miradorstack/mirador-sop/internal/validation"
)

// Categorizer runs one categorization over a batch of validated incidents.
type Categorizer interface {
	Categorize(ctx context.Context, incidents []models.Incident) (models.CategorizationResult, error)
}

// CategorizerService fronts the engine for the gRPC, HTTP and CLI surfaces.
type CategorizerService struct {
	logger      *slog.Logger
	categorizer Categorizer
	validator   *validation.Validator
	publisher   patterns.Publisher
	runs        *semaphore.Weighted
	latencies   *utils.LatencyTracker
}

// NewCategorizerService constructs the service facade. validator and publisher may be nil;
// maxConcurrentRuns <= 0 means a single run at a time.
func NewCategorizerService(logger *slog.Logger, categorizer Categorizer, validator *validation.Validator, publisher patterns.Publisher, maxConcurrentRuns int64) *CategorizerService {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConcurrentRuns <= 0 {
		maxConcurrentRuns = 1
	}
	return &CategorizerService{
		logger:      logger,
		categorizer: categorizer,
		validator:   validator,
		publisher:   publisher,
		runs:        semaphore.NewWeighted(maxConcurrentRuns),
		latencies:   utils.NewLatencyTracker(1024),
	}
}

// Run validates (when requested), categorizes and publishes one batch.
func (s *CategorizerService) Run(ctx context.Context, req models.CategorizeRequest) (models.RunReport, error) {
	const op = "services.Run"

	if s.categorizer == nil {
		return models.RunReport{}, utils.NewPreconditionError(op, "categorizer not configured")
	}
	if err := s.runs.Acquire(ctx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.RunReport{}, utils.NewEngineTimeoutError(op, err)
		}
		return models.RunReport{}, err
	}
	defer s.runs.Release(1)

	var report models.RunReport
	incidents := req.Incidents
	if req.Validate && s.validator != nil {
		valid, invalid, quality := s.validator.Validate(incidents)
		report.Quality = &quality
		report.Rejected = invalid
		incidents = valid
	}
	report.Duplicates = validation.DetectDuplicates(incidents)

	start := time.Now()
	result, err := s.categorizer.Categorize(ctx, incidents)
	duration := time.Since(start)
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, utils.ErrEngineTimeout) {
			outcome = metrics.OutcomeTimeout
		}
		metrics.ObserveRun(duration, outcome)
		s.logger.Error("categorization run failed", slog.Any("error", err), slog.Int("incidents", len(incidents)))
		return models.RunReport{}, err
	}
	metrics.ObserveRun(duration, metrics.OutcomeSuccess)
	s.latencies.Observe(duration)
	if s.latencies.Total()%20 == 0 {
		summary := s.latencies.Summary()
		s.logger.Info("categorization latency",
			slog.Duration("p50", summary.P50),
			slog.Duration("p95", summary.P95),
			slog.Duration("max", summary.Max),
			slog.Int("samples", summary.Samples),
		)
	}

	if s.publisher != nil && len(result.Clusters) > 0 {
		// Publishing is best effort; the run result stands on its own.
		if err := s.publisher.StorePatterns(ctx, result.RunID, patterns.EmittedAnalyses(result)); err != nil {
			s.logger.Warn("pattern publish failed", slog.String("run_id", result.RunID), slog.Any("error", err))
		}
	}

	report.Result = result
	return report, nil
}

// StatusFromError maps run errors onto gRPC status codes.
func StatusFromError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, utils.ErrPrecondition):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, utils.ErrEngineTimeout), errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, utils.ErrFeatureExtraction):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
