package repo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/miradorstack/mirador-sop/internal/config"
	"github.com/miradorstack/mirador-sop/internal/models"
)

func jsonResponse(t *testing.T, status int, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Body:       io.NopCloser(bytes.NewReader(data)),
		Header:     make(http.Header),
	}
}

func ticketRows(start, count int) []map[string]any {
	rows := make([]map[string]any, 0, count)
	for i := start; i < start+count; i++ {
		rows = append(rows, map[string]any{
			"number":            fmt.Sprintf("INC%04d", i),
			"short_description": "Mailbox full",
			"assignment_group":  map[string]any{"display_value": "Messaging", "link": "https://tickets/api"},
			"sys_created_on":    "2024-05-01 08:00:00",
			"resolved_at":       "2024-05-01 12:00:00",
		})
	}
	return rows
}

func TestFetchClosedIncidentsPages(t *testing.T) {
	var offsets []int
	client := NewTicketClient(config.SourceConfig{
		BaseURL:  "https://tickets.example.com/",
		Username: "svc",
		Password: "secret",
		PageSize: 2,
	}, nil)
	client.now = func() time.Time { return time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC) }
	client.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/now/table/incident" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		user, pass, ok := req.BasicAuth()
		if !ok || user != "svc" || pass != "secret" {
			t.Fatalf("expected basic auth, got %q/%q", user, pass)
		}
		q := req.URL.Query()
		if q.Get("sysparm_query") != "state=7^sys_created_on>=2024-06-20" {
			t.Fatalf("unexpected query: %s", q.Get("sysparm_query"))
		}
		offset, _ := strconv.Atoi(q.Get("sysparm_offset"))
		offsets = append(offsets, offset)
		// three rows total, served two per page
		remaining := 3 - offset
		if remaining > 2 {
			remaining = 2
		}
		return jsonResponse(t, http.StatusOK, map[string]any{"result": ticketRows(offset, remaining)}), nil
	}))

	incidents, err := client.FetchClosedIncidents(context.Background(), models.FetchRequest{DaysBack: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(incidents) != 3 {
		t.Fatalf("expected 3 incidents, got %d", len(incidents))
	}
	if len(offsets) != 2 || offsets[0] != 0 || offsets[1] != 2 {
		t.Fatalf("unexpected paging offsets: %v", offsets)
	}
	if incidents[0].AssignmentGroup != "Messaging" {
		t.Fatalf("expected display value to be unwrapped, got %q", incidents[0].AssignmentGroup)
	}
	if d, ok := incidents[2].ResolutionDuration(); !ok || d != 4*time.Hour {
		t.Fatalf("unexpected resolution duration %v (%v)", d, ok)
	}
}

func TestFetchClosedIncidentsHonoursLimit(t *testing.T) {
	requests := 0
	client := NewTicketClient(config.SourceConfig{BaseURL: "https://tickets.example.com", PageSize: 5}, nil)
	client.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		requests++
		if got := req.URL.Query().Get("sysparm_limit"); got != "3" {
			t.Fatalf("expected page limit 3, got %s", got)
		}
		if _, _, ok := req.BasicAuth(); ok {
			t.Fatalf("did not expect basic auth without credentials")
		}
		return jsonResponse(t, http.StatusOK, map[string]any{"result": ticketRows(0, 3)}), nil
	}))

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	incidents, err := client.FetchClosedIncidents(context.Background(), models.FetchRequest{Limit: 3, Since: since})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(incidents) != 3 || requests != 1 {
		t.Fatalf("expected 3 incidents in 1 request, got %d in %d", len(incidents), requests)
	}
}

func TestFetchClosedIncidentsErrors(t *testing.T) {
	if _, err := NewTicketClient(config.SourceConfig{}, nil).FetchClosedIncidents(context.Background(), models.FetchRequest{}); err == nil {
		t.Fatalf("expected error without base URL")
	}

	client := NewTicketClient(config.SourceConfig{BaseURL: "https://tickets.example.com"}, nil)
	client.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusUnauthorized, map[string]any{"error": "denied"}), nil
	}))
	if _, err := client.FetchClosedIncidents(context.Background(), models.FetchRequest{}); err == nil {
		t.Fatalf("expected error on non-200 response")
	}
}
