package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-sop/internal/models"
)

// fakeOllama embeds every text containing "vpn" onto one axis and everything else
// onto a per-request unique axis.
func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		dim := len(req.Input) + 1
		embeddings := make([][]float32, len(req.Input))
		for i, text := range req.Input {
			vec := make([]float32, dim)
			if strings.Contains(strings.ToLower(text), "vpn") {
				vec[0] = 1
			} else {
				vec[i+1] = 1
			}
			embeddings[i] = vec
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "embeddings": embeddings})
	}))
}

func writeFixtures(t *testing.T, embedURL string) (string, string) {
	t.Helper()
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := fmt.Sprintf("embedding:\n  provider: ollama\n  baseURL: %s\n  model: test-embed\nlogging:\n  level: error\n", embedURL)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0o600))

	var rows []map[string]any
	for i := 0; i < 6; i++ {
		rows = append(rows, map[string]any{
			"number":            fmt.Sprintf("INC%03d", i),
			"short_description": "VPN tunnel drops",
			"description":       "Remote users lose the VPN tunnel every few minutes.",
			"category":          "Network",
			"resolution_notes":  "Rolled back the VPN gateway firmware.",
			"created_at":        "2024-05-01T08:00:00Z",
			"resolved_at":       fmt.Sprintf("2024-05-01T%02d:00:00Z", 9+i),
		})
	}
	rows = append(rows,
		map[string]any{"number": "INC100", "short_description": "Printer jams", "description": "Floor 3 printer jams on duplex jobs.", "category": "Hardware", "resolution_notes": "Replaced the duplex roller.", "created_at": "2024-05-02T08:00:00Z"},
		map[string]any{"number": "INC101", "short_description": "Laptop bag", "description": "short", "category": "other", "created_at": "2024-05-02T08:00:00Z"},
	)
	data, err := json.Marshal(rows)
	require.NoError(t, err)
	inputPath := filepath.Join(dir, "incidents.json")
	require.NoError(t, os.WriteFile(inputPath, data, 0o600))
	return cfgPath, inputPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	summaryOut = io.Discard
	noColor = true

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs(append(args, "--env-file", ""))
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return stdout.String(), err
}

func TestCategorizeCommandWritesReport(t *testing.T) {
	srv := fakeOllama(t)
	defer srv.Close()
	cfgPath, inputPath := writeFixtures(t, srv.URL)
	outPath := filepath.Join(t.TempDir(), "report.json")

	_, err := execute(t, "categorize", "--config", cfgPath, "--input", inputPath, "--output", outPath, "--validate=true", "--fetch=false", "--publish=false")
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var report models.RunReport
	require.NoError(t, json.Unmarshal(data, &report))

	require.NotNil(t, report.Quality)
	assert.Equal(t, 8, report.Quality.Total)
	assert.Equal(t, 1, report.Quality.Invalid)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, "INC101", report.Rejected[0].Incident.Number)

	acc := report.Result.Accounting
	assert.Equal(t, 7, acc.Total)
	assert.Equal(t, 6, acc.Emitted)
	assert.Equal(t, 1, acc.Noise)
	require.Len(t, report.Result.Clusters, 1)
	for _, group := range report.Result.Clusters {
		assert.Equal(t, "Network", group.Analysis.TopCategory)
		require.NotNil(t, group.Analysis.MedianResolutionHours)
	}
	require.Len(t, report.Duplicates, 1)
	assert.Len(t, report.Duplicates[0].Numbers, 6)
}

func TestCategorizeCommandRequiresOneSource(t *testing.T) {
	_, err := execute(t, "categorize", "--input", "", "--fetch=false")
	require.Error(t, err)
	_, err = execute(t, "categorize", "--input", "x.json", "--fetch=true")
	require.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	srv := fakeOllama(t)
	defer srv.Close()
	cfgPath, inputPath := writeFixtures(t, srv.URL)
	outPath := filepath.Join(t.TempDir(), "valid.json")

	_, err := execute(t, "validate", "--config", cfgPath, "--input", inputPath, "--output", outPath)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var valid []models.Incident
	require.NoError(t, json.Unmarshal(data, &valid))
	assert.Len(t, valid, 7)
}

func TestPatternsCommandNeedsEndpoint(t *testing.T) {
	srv := fakeOllama(t)
	defer srv.Close()
	cfgPath, _ := writeFixtures(t, srv.URL)

	_, err := execute(t, "patterns", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weaviate")
}
