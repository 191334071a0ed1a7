package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"supportrag/internal/domain"
)

// ErrNothingScraped is returned when no source URL produced any content.
var ErrNothingScraped = errors.New("no content scraped from any source URL")

// SkippedURL records a source URL that produced no content.
type SkippedURL struct {
	URL string
	Err error
}

// FetchReport is the outcome of one fetch pass.
type FetchReport struct {
	// Text is the combined buffer of every scraped section, in URL order.
	Text      string
	Documents []domain.Document
	Skipped   []SkippedURL
}

// Fetcher scrapes an ordered URL list into a single text buffer.
type Fetcher struct {
	scraper domain.Scraper
	limiter domain.Limiter
	logger  arbor.ILogger
}

func NewFetcher(scraper domain.Scraper, limiter domain.Limiter, logger arbor.ILogger) *Fetcher {
	return &Fetcher{scraper: scraper, limiter: limiter, logger: logger}
}

// SectionHeader returns the delimiter written before a URL's content.
func SectionHeader(url string) string {
	return "\n\n=== Content from " + url + " ===\n\n"
}

// Fetch scrapes every URL in order. A failing URL is logged once and skipped;
// the call fails only when nothing at all was scraped or ctx is cancelled.
func (f *Fetcher) Fetch(ctx context.Context, urls []string) (*FetchReport, error) {
	report := &FetchReport{}
	var buf strings.Builder

	for _, url := range urls {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, err)
		}

		doc, err := f.scraper.Scrape(ctx, url)
		if err == nil && strings.TrimSpace(doc.Markdown) == "" {
			err = domain.Errorf(domain.KindUpstream, "scrape "+url, "no markdown returned")
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if domain.KindOf(err) == domain.KindRateLimited {
				f.limiter.Throttled()
			}
			f.logger.Warn().Str("url", url).Err(err).Msg("Skipping source URL")
			report.Skipped = append(report.Skipped, SkippedURL{URL: url, Err: err})
			continue
		}

		buf.WriteString(SectionHeader(url))
		buf.WriteString(doc.Markdown)
		report.Documents = append(report.Documents, doc)
		f.logger.Info().Str("url", url).Int("chars", len([]rune(doc.Markdown))).Msg("Scraped source URL")
	}

	report.Text = buf.String()
	if strings.TrimSpace(report.Text) == "" {
		return report, ErrNothingScraped
	}
	return report, nil
}
