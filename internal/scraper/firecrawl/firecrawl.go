package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"supportrag/internal/domain"
)

const DefaultBaseURL = "https://api.firecrawl.dev"

// Config configures the Firecrawl scrape client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client calls the Firecrawl scrape endpoint asking for main-content markdown.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	now     func() time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		now:     time.Now,
	}
}

type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Markdown string `json:"markdown"`
	} `json:"data"`
}

// Scrape returns the main content of url as markdown.
func (c *Client) Scrape(ctx context.Context, url string) (domain.Document, error) {
	const op = "firecrawl scrape"
	data, err := json.Marshal(scrapeRequest{URL: url, Formats: []string{"markdown"}, OnlyMainContent: true})
	if err != nil {
		return domain.Document{}, domain.E(domain.KindInternal, op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/scrape", bytes.NewReader(data))
	if err != nil {
		return domain.Document{}, domain.E(domain.KindInternal, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Document{}, domain.E(domain.KindUpstream, op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.Document{}, domain.StatusError(op, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out scrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Document{}, domain.E(domain.KindUpstream, op, err)
	}
	if !out.Success && out.Error != "" {
		return domain.Document{}, domain.Errorf(domain.KindUpstream, op, "%s", out.Error)
	}
	if strings.TrimSpace(out.Data.Markdown) == "" {
		return domain.Document{}, domain.Errorf(domain.KindUpstream, op, "no markdown returned for %s", url)
	}
	return domain.Document{URL: url, Markdown: out.Data.Markdown, FetchedAt: c.now()}, nil
}
