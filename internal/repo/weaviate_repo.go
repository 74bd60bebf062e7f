package repo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/miradorstack/mirador-sop/internal/config"
	"github.com/miradorstack/mirador-sop/internal/models"
)

// StoredPattern is an SOP pattern as read back from Weaviate.
type StoredPattern struct {
	ID                     string   `json:"id"`
	RunID                  string   `json:"run_id"`
	ClusterID              int      `json:"cluster_id"`
	IncidentCount          int      `json:"incident_count"`
	TopCategory            string   `json:"top_category"`
	CommonPatterns         []string `json:"common_patterns"`
	RepresentativeIncident string   `json:"representative_incident"`
	Cohesion               float64  `json:"cohesion"`
	CreatedAt              string   `json:"created_at"`
}

// WeaviateRepo stores emitted cluster analyses as SOP pattern objects.
type WeaviateRepo struct {
	endpoint   string
	apiKey     string
	class      string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewWeaviateRepo constructs a Weaviate client. An empty endpoint yields a no-op store.
func NewWeaviateRepo(cfg config.WeaviateConfig, logger *slog.Logger) *WeaviateRepo {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	class := cfg.Class
	if class == "" {
		class = "SOPPattern"
	}
	return &WeaviateRepo{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		class:      class,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
	}
}

// Enabled reports whether an endpoint is configured.
func (r *WeaviateRepo) Enabled() bool {
	return r != nil && r.endpoint != ""
}

// PatternID derives a stable object id so re-publishing a run overwrites its objects.
func PatternID(runID string, clusterID int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mirador-sop/"+runID+"/"+strconv.Itoa(clusterID))).String()
}

// StorePatterns persists each analysis as one object. It stops at the first failure.
func (r *WeaviateRepo) StorePatterns(ctx context.Context, runID string, analyses []models.ClusterAnalysis) error {
	if r == nil {
		return fmt.Errorf("weaviate repo not initialised")
	}
	if r.endpoint == "" {
		return nil
	}

	createdAt := r.now().UTC().Format(time.RFC3339)
	for _, analysis := range analyses {
		props, err := buildPatternProperties(runID, createdAt, analysis)
		if err != nil {
			return err
		}
		payload := map[string]any{
			"class":      r.class,
			"id":         PatternID(runID, analysis.ClusterID),
			"properties": props,
		}
		if err := r.post(ctx, "/v1/objects", payload, nil); err != nil {
			return fmt.Errorf("store pattern for cluster %d: %w", analysis.ClusterID, err)
		}
	}
	r.logger.Info("patterns published", slog.String("run_id", runID), slog.Int("count", len(analyses)))
	return nil
}

func buildPatternProperties(runID, createdAt string, a models.ClusterAnalysis) (map[string]any, error) {
	categories, err := json.Marshal(a.CategoryDistribution)
	if err != nil {
		return nil, err
	}
	props := map[string]any{
		"runId":                  runID,
		"clusterId":              a.ClusterID,
		"incidentCount":          a.IncidentCount,
		"topCategory":            a.TopCategory,
		"commonPatterns":         a.CommonPatterns,
		"representativeIncident": a.RepresentativeIncident,
		"cohesion":               a.Cohesion,
		"categoryDistribution":   string(categories),
		"createdAt":              createdAt,
	}
	if a.AvgResolutionHours != nil {
		props["avgResolutionHours"] = *a.AvgResolutionHours
	}
	return props, nil
}

// ListPatterns returns the most recently stored patterns.
func (r *WeaviateRepo) ListPatterns(ctx context.Context, limit int) ([]StoredPattern, error) {
	if r == nil {
		return nil, fmt.Errorf("weaviate repo not initialised")
	}
	if r.endpoint == "" {
		return []StoredPattern{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	gql := fmt.Sprintf(`{
  Get {
    %s(
      limit: %d
      sort: [{path: ["createdAt"], order: desc}]
    ) {
      runId
      clusterId
      incidentCount
      topCategory
      commonPatterns
      representativeIncident
      cohesion
      createdAt
      _additional { id }
    }
  }
}`, r.class, limit)

	var response struct {
		Data struct {
			Get map[string][]struct {
				RunID                  string   `json:"runId"`
				ClusterID              int      `json:"clusterId"`
				IncidentCount          int      `json:"incidentCount"`
				TopCategory            string   `json:"topCategory"`
				CommonPatterns         []string `json:"commonPatterns"`
				RepresentativeIncident string   `json:"representativeIncident"`
				Cohesion               float64  `json:"cohesion"`
				CreatedAt              string   `json:"createdAt"`
				Additional             struct {
					ID string `json:"id"`
				} `json:"_additional"`
			} `json:"Get"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := r.post(ctx, "/v1/graphql", map[string]any{"query": gql}, &response); err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	if len(response.Errors) > 0 {
		return nil, fmt.Errorf("list patterns: %s", response.Errors[0].Message)
	}

	rows := response.Data.Get[r.class]
	patterns := make([]StoredPattern, 0, len(rows))
	for _, row := range rows {
		patterns = append(patterns, StoredPattern{
			ID:                     row.Additional.ID,
			RunID:                  row.RunID,
			ClusterID:              row.ClusterID,
			IncidentCount:          row.IncidentCount,
			TopCategory:            row.TopCategory,
			CommonPatterns:         row.CommonPatterns,
			RepresentativeIncident: row.RepresentativeIncident,
			Cohesion:               row.Cohesion,
			CreatedAt:              row.CreatedAt,
		})
	}
	return patterns, nil
}

func (r *WeaviateRepo) post(ctx context.Context, p string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+p, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("weaviate returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
