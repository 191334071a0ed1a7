package browser

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"supportrag/internal/domain"
	"supportrag/internal/scraper"
)

// Config configures the headless Chrome scraper.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Settle is how long to wait after the body is ready for client-side rendering.
	Settle time.Duration
}

type renderFunc func(ctx context.Context, url string) (string, error)

// Scraper renders pages in headless Chrome before extracting main-content markdown.
type Scraper struct {
	cfg    Config
	logger arbor.ILogger
	render renderFunc
	now    func() time.Time
}

func New(cfg Config, logger arbor.ILogger) *Scraper {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "supportrag/1.0 (+ingest)"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.Settle == 0 {
		cfg.Settle = 2 * time.Second
	}
	s := &Scraper{cfg: cfg, logger: logger, now: time.Now}
	s.render = s.renderChrome
	return s
}

func (s *Scraper) Scrape(ctx context.Context, url string) (domain.Document, error) {
	const op = "browser scrape"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	html, err := s.render(ctx, url)
	if err != nil {
		return domain.Document{}, domain.E(domain.KindUpstream, op, err)
	}
	markdown, err := scraper.MainContentMarkdown(url, strings.NewReader(html))
	if err != nil {
		return domain.Document{}, domain.E(domain.KindUpstream, op, err)
	}
	if markdown == "" {
		return domain.Document{}, domain.Errorf(domain.KindUpstream, op, "no markdown extracted from %s", url)
	}

	s.logger.Debug().
		Str("url", url).
		Int("html_length", len(html)).
		Int("markdown_length", len(markdown)).
		Dur("duration", time.Since(start)).
		Msg("Rendered page")

	return domain.Document{URL: url, Markdown: markdown, FetchedAt: s.now()}, nil
}

// renderChrome starts a fresh browser for each page.
func (s *Scraper) renderChrome(ctx context.Context, url string) (string, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		append(
			chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(s.cfg.UserAgent),
		)...,
	)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.cfg.Settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}
	return html, nil
}
