package patterns

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-sop/internal/models"
	"github.com/miradorstack/mirador-sop/internal/utils"
)

func at(hour int) *time.Time {
	t := time.Date(2024, 5, 1, hour, 0, 0, 0, time.UTC)
	return &t
}

func TestAnalyzeDistributionsSumToCount(t *testing.T) {
	incidents := []models.Incident{
		{Number: "INC3", Category: "Network", Priority: "2", AssignmentGroup: "NetOps"},
		{Number: "INC1", Category: "Network", Priority: "3"},
		{Number: "INC2", Category: "", Priority: "2", Subcategory: "VPN"},
	}
	analysis, err := NewAnalyzer(AnalyzerConfig{}, nil).Analyze(4, incidents, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, analysis.ClusterID)
	assert.Equal(t, 3, analysis.IncidentCount)
	assert.Equal(t, map[string]int{"Network": 2, models.UnknownValue: 1}, analysis.CategoryDistribution)
	assert.Equal(t, map[string]int{"2": 2, "3": 1}, analysis.PriorityDistribution)
	assert.Equal(t, map[string]int{"VPN": 1, models.UnknownValue: 2}, analysis.SubcategoryDistribution)
	assert.Equal(t, map[string]int{"NetOps": 1, models.UnknownValue: 2}, analysis.AssignmentGroupDistribution)
	assert.Equal(t, "Network", analysis.TopCategory)

	for name, dist := range map[string]map[string]int{
		"category": analysis.CategoryDistribution,
		"priority": analysis.PriorityDistribution,
	} {
		sum := 0
		for _, c := range dist {
			sum += c
		}
		assert.Equal(t, analysis.IncidentCount, sum, name)
	}
	assert.Equal(t, "INC1", analysis.RepresentativeIncident, "smallest number wins without vectors")
}

func TestAnalyzeResolutionTimeExcludesMissingTimestamps(t *testing.T) {
	incidents := []models.Incident{
		{Number: "INC1", CreatedAt: at(0), ResolvedAt: at(2)},
		{Number: "INC2", CreatedAt: at(0), ResolvedAt: at(6)},
		{Number: "INC3", CreatedAt: at(0)},
		{Number: "INC4", ResolvedAt: at(4), ClosedAt: at(5)},
	}
	analysis, err := NewAnalyzer(AnalyzerConfig{}, nil).Analyze(0, incidents, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, analysis.IncidentCount)
	assert.Equal(t, 2, analysis.ResolutionSamples)
	require.NotNil(t, analysis.AvgResolutionHours)
	assert.InDelta(t, 4.0, *analysis.AvgResolutionHours, 1e-9)
	require.NotNil(t, analysis.MedianResolutionHours)
	assert.InDelta(t, 2.0, *analysis.MedianResolutionHours, 1e-9)
	require.NotNil(t, analysis.P90ResolutionHours)
	assert.InDelta(t, 6.0, *analysis.P90ResolutionHours, 1e-9)
}

func TestAnalyzeResolutionTimeUndefined(t *testing.T) {
	incidents := []models.Incident{
		{Number: "INC1", CreatedAt: at(0)},
		{Number: "INC2", ClosedAt: at(3)},
	}
	analysis, err := NewAnalyzer(AnalyzerConfig{}, nil).Analyze(0, incidents, nil)
	require.NoError(t, err)
	assert.Nil(t, analysis.AvgResolutionHours)
	assert.Nil(t, analysis.MedianResolutionHours)
	assert.Zero(t, analysis.ResolutionSamples)
}

func TestAnalyzeCommonPatternsRankByFrequencyThenFirstSeen(t *testing.T) {
	incidents := []models.Incident{
		{Number: "INC1", ShortDescription: "Outlook password expired", ResolutionNotes: "Reset password in directory"},
		{Number: "INC2", ShortDescription: "Mailbox locked; password reset", ResolutionNotes: "Unlocked mailbox, reset password"},
		{Number: "INC3", ShortDescription: "Outlook crash", Description: "The issue was about outlook"},
	}
	analysis, err := NewAnalyzer(AnalyzerConfig{TopTerms: 4}, nil).Analyze(0, incidents, nil)
	require.NoError(t, err)

	// password x4; outlook and reset x3, outlook seen first; mailbox x2
	assert.Equal(t, []string{"password", "outlook", "reset", "mailbox"}, analysis.CommonPatterns)
	assert.NotContains(t, analysis.CommonPatterns, "issue")
	assert.NotContains(t, analysis.CommonPatterns, "about")
}

func TestAnalyzeCustomStopWords(t *testing.T) {
	incidents := []models.Incident{{Number: "INC1", ShortDescription: "printer jammed printer"}}
	analysis, err := NewAnalyzer(AnalyzerConfig{StopWords: []string{"Printer"}, PatternFields: []string{"short_description"}}, nil).Analyze(0, incidents, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"jammed"}, analysis.CommonPatterns)
}

func TestAnalyzeRepresentativeClosestToCentroid(t *testing.T) {
	incidents := []models.Incident{
		{Number: "INC1"},
		{Number: "INC2"},
		{Number: "INC3"},
	}
	vectors := [][]float32{
		{1, 0.4},
		{1, 0},
		{1, -0.3},
	}
	analysis, err := NewAnalyzer(AnalyzerConfig{}, nil).Analyze(0, incidents, vectors)
	require.NoError(t, err)
	assert.Equal(t, "INC2", analysis.RepresentativeIncident)
	assert.Greater(t, analysis.Cohesion, 0.9)
	assert.LessOrEqual(t, analysis.Cohesion, 1.0)
}

func TestAnalyzeRepresentativeTieBreaksOnNumber(t *testing.T) {
	incidents := []models.Incident{{Number: "INC9"}, {Number: "INC5"}, {Number: "INC7"}}
	vectors := [][]float32{{1, 0}, {1, 0}, {1, 0}}

	first, err := NewAnalyzer(AnalyzerConfig{}, nil).Analyze(0, incidents, vectors)
	require.NoError(t, err)
	assert.Equal(t, "INC5", first.RepresentativeIncident)

	second, err := NewAnalyzer(AnalyzerConfig{}, nil).Analyze(0, incidents, vectors)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAnalyzePreconditions(t *testing.T) {
	analyzer := NewAnalyzer(AnalyzerConfig{}, nil)

	_, err := analyzer.Analyze(0, nil, nil)
	assert.True(t, errors.Is(err, utils.ErrPrecondition))

	_, err = analyzer.Analyze(0, []models.Incident{{Number: "INC1"}}, [][]float32{{1}, {1}})
	assert.True(t, errors.Is(err, utils.ErrPrecondition))

	_, err = analyzer.Analyze(0, []models.Incident{{Number: "INC1"}, {Number: "INC2"}}, [][]float32{{1, 0}, {1}})
	assert.True(t, errors.Is(err, utils.ErrPrecondition))
}

func TestEmittedAnalysesAndPublisherFunc(t *testing.T) {
	result := models.NewCategorizationResult("run-1")
	result.Clusters[0] = models.ClusterGroup{Incidents: make([]models.Incident, 3), Analysis: models.ClusterAnalysis{ClusterID: 0}}
	result.Clusters[1] = models.ClusterGroup{Incidents: make([]models.Incident, 5), Analysis: models.ClusterAnalysis{ClusterID: 1}}

	var got []int
	publisher := PublisherFunc(func(_ context.Context, runID string, analyses []models.ClusterAnalysis) error {
		assert.Equal(t, "run-1", runID)
		for _, a := range analyses {
			got = append(got, a.ClusterID)
		}
		return nil
	})
	require.NoError(t, publisher.StorePatterns(context.Background(), result.RunID, EmittedAnalyses(result)))
	assert.Equal(t, []int{1, 0}, got)
}
