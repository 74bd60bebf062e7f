package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/mirador-sop/internal/config"
	"github.com/miradorstack/mirador-sop/internal/models"
	"github.com/miradorstack/mirador-sop/internal/patterns"
	"github.com/miradorstack/mirador-sop/internal/utils"
	"github.com/miradorstack/mirador-sop/internal/validation"
)

type categorizerStub struct {
	mu       sync.Mutex
	received []models.Incident
	result   models.CategorizationResult
	err      error
	block    chan struct{}
	active   atomic.Int32
	peak     atomic.Int32
}

func (c *categorizerStub) Categorize(ctx context.Context, incidents []models.Incident) (models.CategorizationResult, error) {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		peak := c.peak.Load()
		if n <= peak || c.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.received = incidents
	c.mu.Unlock()
	return c.result, c.err
}

func emittedResult() models.CategorizationResult {
	result := models.NewCategorizationResult("run-42")
	result.Clusters[0] = models.ClusterGroup{
		Incidents: []models.Incident{{Number: "INC1"}, {Number: "INC2"}, {Number: "INC3"}},
		Analysis:  models.ClusterAnalysis{ClusterID: 0, IncidentCount: 3},
	}
	result.Account()
	return result
}

func goodIncident(number, summary string) models.Incident {
	created := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	return models.Incident{
		Number:           number,
		ShortDescription: summary,
		Description:      "Detailed description of " + summary,
		Category:         "Network",
		ResolutionNotes:  "Restarted the affected gateway service.",
		CreatedAt:        &created,
	}
}

func TestRunPublishesEmittedClusters(t *testing.T) {
	stub := &categorizerStub{result: emittedResult()}
	var published []models.ClusterAnalysis
	publisher := patterns.PublisherFunc(func(ctx context.Context, runID string, analyses []models.ClusterAnalysis) error {
		if runID != "run-42" {
			t.Fatalf("unexpected run id %s", runID)
		}
		published = analyses
		return nil
	})

	service := NewCategorizerService(nil, stub, nil, publisher, 1)
	report, err := service.Run(context.Background(), models.CategorizeRequest{Incidents: []models.Incident{{Number: "INC1"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Result.RunID != "run-42" || report.Quality != nil {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(published) != 1 {
		t.Fatalf("expected one analysis published, got %d", len(published))
	}
}

func TestRunToleratesPublishFailure(t *testing.T) {
	stub := &categorizerStub{result: emittedResult()}
	publisher := patterns.PublisherFunc(func(ctx context.Context, runID string, analyses []models.ClusterAnalysis) error {
		return errors.New("weaviate down")
	})
	service := NewCategorizerService(nil, stub, nil, publisher, 1)
	if _, err := service.Run(context.Background(), models.CategorizeRequest{}); err != nil {
		t.Fatalf("publish failure must not fail the run: %v", err)
	}
}

func TestRunValidatesBeforeCategorizing(t *testing.T) {
	stub := &categorizerStub{result: models.NewCategorizationResult("run-1")}
	validator := validation.New(config.Default().Validation, nil)
	service := NewCategorizerService(nil, stub, validator, nil, 1)

	bad := goodIncident("INC3", "VPN drops")
	bad.Category = "tbd"
	req := models.CategorizeRequest{
		Validate:  true,
		Incidents: []models.Incident{goodIncident("INC1", "VPN drops"), goodIncident("INC2", "vpn drops"), bad},
	}
	report, err := service.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stub.received) != 2 {
		t.Fatalf("expected only valid incidents to be categorized, got %d", len(stub.received))
	}
	if report.Quality == nil || report.Quality.Invalid != 1 || len(report.Rejected) != 1 {
		t.Fatalf("unexpected quality outcome: %+v", report)
	}
	if len(report.Duplicates) != 1 || len(report.Duplicates[0].Numbers) != 2 {
		t.Fatalf("expected one duplicate pair, got %+v", report.Duplicates)
	}
}

func TestRunPropagatesEngineErrors(t *testing.T) {
	stub := &categorizerStub{err: utils.NewFeatureExtractionError("engine.Categorize", errors.New("connection refused"))}
	service := NewCategorizerService(nil, stub, nil, nil, 1)
	_, err := service.Run(context.Background(), models.CategorizeRequest{})
	if !errors.Is(err, utils.ErrFeatureExtraction) {
		t.Fatalf("expected feature extraction error, got %v", err)
	}
}

func TestRunWithoutCategorizer(t *testing.T) {
	service := NewCategorizerService(nil, nil, nil, nil, 1)
	if _, err := service.Run(context.Background(), models.CategorizeRequest{}); !errors.Is(err, utils.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	stub := &categorizerStub{result: models.NewCategorizationResult("run"), block: make(chan struct{})}
	service := NewCategorizerService(nil, stub, nil, nil, 2)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := service.Run(context.Background(), models.CategorizeRequest{}); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(stub.block)
	wg.Wait()

	if peak := stub.peak.Load(); peak > 2 {
		t.Fatalf("expected at most 2 concurrent runs, saw %d", peak)
	}
}

func TestRunSlotWaitHonoursDeadline(t *testing.T) {
	stub := &categorizerStub{result: models.NewCategorizationResult("run"), block: make(chan struct{})}
	service := NewCategorizerService(nil, stub, nil, nil, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = service.Run(context.Background(), models.CategorizeRequest{})
	}()
	for stub.active.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := service.Run(ctx, models.CategorizeRequest{})
	if !errors.Is(err, utils.ErrEngineTimeout) {
		t.Fatalf("expected engine timeout while waiting for a slot, got %v", err)
	}

	close(stub.block)
	<-done
}

func TestStatusFromError(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{utils.NewPreconditionError("op", "ragged"), codes.InvalidArgument},
		{utils.NewEngineTimeoutError("op", context.DeadlineExceeded), codes.DeadlineExceeded},
		{utils.NewFeatureExtractionError("op", errors.New("down")), codes.Unavailable},
		{fmt.Errorf("wrapped: %w", context.Canceled), codes.Canceled},
		{errors.New("boom"), codes.Internal},
		{status.Error(codes.NotFound, "missing"), codes.NotFound},
	}
	for _, tc := range cases {
		if got := status.Code(StatusFromError(tc.err)); got != tc.want {
			t.Fatalf("error %v: expected %s, got %s", tc.err, tc.want, got)
		}
	}
	if StatusFromError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
