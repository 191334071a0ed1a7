package direct

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"supportrag/internal/domain"
	"supportrag/internal/scraper"
)

const DefaultUserAgent = "supportrag/1.0 (+ingest)"

// Config configures the direct HTTP scraper.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// MaxBodySize caps how much of a page is read.
	MaxBodySize int64
}

// Scraper fetches pages over plain HTTP and extracts main-content markdown.
// Pages that build their content with JavaScript need the browser scraper.
type Scraper struct {
	cfg    Config
	client *http.Client
	now    func() time.Time
}

func New(cfg Config) *Scraper {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 10 << 20
	}
	return &Scraper{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}, now: time.Now}
}

func (s *Scraper) Scrape(ctx context.Context, url string) (domain.Document, error) {
	const op = "direct scrape"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Document{}, domain.E(domain.KindBadRequest, op, err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.Document{}, domain.E(domain.KindUpstream, op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return domain.Document{}, domain.StatusError(op, resp.StatusCode, "")
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "text/html") {
		return domain.Document{}, domain.Errorf(domain.KindUpstream, op, "unsupported content type %q", ct)
	}

	markdown, err := scraper.MainContentMarkdown(url, io.LimitReader(resp.Body, s.cfg.MaxBodySize))
	if err != nil {
		return domain.Document{}, domain.E(domain.KindUpstream, op, err)
	}
	if markdown == "" {
		return domain.Document{}, domain.Errorf(domain.KindUpstream, op, "no markdown extracted from %s", url)
	}
	return domain.Document{URL: url, Markdown: markdown, FetchedAt: s.now()}, nil
}
