package repo

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/miradorstack/mirador-sop/internal/config"
	"github.com/miradorstack/mirador-sop/internal/ingest"
	"github.com/miradorstack/mirador-sop/internal/models"
)

// closedState is the table API value for closed incidents.
const closedState = "7"

// ticketFields are requested from the table API; everything else is ignored.
var ticketFields = []string{
	"number", "short_description", "description", "category", "subcategory", "priority",
	"assignment_group", "close_notes", "resolution_notes", "sys_created_on", "resolved_at", "closed_at",
}

// TicketClient pulls closed incidents from a ServiceNow-style table API.
type TicketClient struct {
	baseURL    string
	table      string
	username   string
	password   string
	pageSize   int
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewTicketClient constructs a client for the configured ticketing instance.
func NewTicketClient(cfg config.SourceConfig, logger *slog.Logger) *TicketClient {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	table := cfg.Table
	if table == "" {
		table = "incident"
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 200
	}
	return &TicketClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		table:      table,
		username:   cfg.Username,
		password:   cfg.Password,
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
	}
}

// FetchClosedIncidents pages through closed incidents created within the requested window.
func (c *TicketClient) FetchClosedIncidents(ctx context.Context, req models.FetchRequest) ([]models.Incident, error) {
	if c == nil {
		return nil, fmt.Errorf("ticket client not initialised")
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("ticketing base URL not configured")
	}

	since := req.Since
	if since.IsZero() {
		days := req.DaysBack
		if days <= 0 {
			days = 90
		}
		since = c.now().AddDate(0, 0, -days)
	}
	query := fmt.Sprintf("state=%s^sys_created_on>=%s", closedState, since.UTC().Format("2006-01-02"))

	var incidents []models.Incident
	for offset := 0; ; offset += c.pageSize {
		batch := c.pageSize
		if req.Limit > 0 && req.Limit-len(incidents) < batch {
			batch = req.Limit - len(incidents)
		}

		rows, err := c.fetchPage(ctx, query, offset, batch)
		if err != nil {
			return nil, fmt.Errorf("ticket table request failed at offset %d: %w", offset, err)
		}
		for _, row := range rows {
			inc, err := ingest.RecordFromObject(row).Incident()
			if err != nil {
				c.logger.Warn("skipping ticket with unparseable timestamps", slog.Any("error", err))
				continue
			}
			incidents = append(incidents, inc)
		}
		c.logger.Debug("fetched ticket page", slog.Int("offset", offset), slog.Int("rows", len(rows)), slog.Int("total", len(incidents)))

		if len(rows) < batch || (req.Limit > 0 && len(incidents) >= req.Limit) {
			break
		}
	}
	if req.Limit > 0 && len(incidents) > req.Limit {
		incidents = incidents[:req.Limit]
	}

	c.logger.Info("fetched closed incidents", slog.Int("count", len(incidents)), slog.Time("since", since))
	return incidents, nil
}

func (c *TicketClient) fetchPage(ctx context.Context, query string, offset, limit int) ([]map[string]any, error) {
	params := url.Values{}
	params.Set("sysparm_query", query)
	params.Set("sysparm_fields", strings.Join(ticketFields, ","))
	params.Set("sysparm_display_value", "true")
	params.Set("sysparm_offset", strconv.Itoa(offset))
	params.Set("sysparm_limit", strconv.Itoa(limit))

	endpoint := c.resolvePath("/api/now/table/"+c.table) + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ticketing API returned %s", resp.Status)
	}

	var body struct {
		Result []map[string]any `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return body.Result, nil
}

func (c *TicketClient) resolvePath(p string) string {
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}
