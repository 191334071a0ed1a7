package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"supportrag/internal/chunker"
	"supportrag/internal/completion"
	"supportrag/internal/config"
	"supportrag/internal/domain"
	"supportrag/internal/embedding"
	"supportrag/internal/embedding/gemini"
	"supportrag/internal/embedding/openai"
	"supportrag/internal/logging"
	"supportrag/internal/ratelimit"
	"supportrag/internal/scraper/browser"
	"supportrag/internal/scraper/direct"
	"supportrag/internal/scraper/firecrawl"
	"supportrag/internal/service"
	"supportrag/internal/vectorstore"
	"supportrag/internal/vectorstore/memory"
	"supportrag/internal/vectorstore/pinecone"
	"supportrag/internal/vectorstore/qdrant"
)

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

// app holds the adapters shared by every command.
type app struct {
	cfg      *config.AppConfig
	logger   arbor.ILogger
	index    domain.Index
	embedder *embedding.Fitted
}

func newApp(cfg *config.AppConfig, logger arbor.ILogger) (*app, error) {
	idx, err := buildIndex(cfg)
	if err != nil {
		return nil, err
	}
	emb, err := buildEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, index: idx, embedder: embedding.Fit(emb, cfg.Index.Dimension)}, nil
}

// quiet swaps in a discarding logger and rebuilds the embedder with it,
// keeping the index so an in-memory one survives.
func (a *app) quiet() error {
	a.logger = logging.Quiet()
	emb, err := buildEmbedder(a.cfg, a.logger)
	if err != nil {
		return err
	}
	a.embedder = embedding.Fit(emb, a.cfg.Index.Dimension)
	return nil
}

func buildEmbedder(cfg *config.AppConfig, logger arbor.ILogger) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "gemini", "":
		g := cfg.Embedder.Gemini
		if g == nil {
			return nil, fmt.Errorf("gemini embedder config missing")
		}
		return gemini.New(gemini.Config{
			APIKey:               config.Secret(g.APIKeyEnv),
			Model:                g.Model,
			OutputDimensionality: g.OutputDimensionality,
			Timeout:              secs(g.TimeoutSecs),
		}, logger), nil
	case "openai":
		o := cfg.Embedder.OpenAI
		if o == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		return openai.NewClient(openai.Config{
			BaseURL:   o.BaseURL,
			APIKeyEnv: o.APIKeyEnv,
			Model:     o.Model,
			Timeout:   secs(o.TimeoutSecs),
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

func buildIndex(cfg *config.AppConfig) (domain.Index, error) {
	switch cfg.Index.Type {
	case "pinecone", "":
		p := cfg.Index.Pinecone
		if p == nil {
			return nil, fmt.Errorf("pinecone config missing")
		}
		return pinecone.NewStorage(pinecone.Config{
			APIKey:    config.Secret(p.APIKeyEnv),
			IndexName: p.IndexName,
			Host:      config.Secret(p.HostEnv),
			Namespace: p.Namespace,
			Timeout:   secs(p.TimeoutSecs),
		}), nil
	case "qdrant":
		q := cfg.Index.Qdrant
		if q == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        q.URL,
			APIKey:     q.APIKey,
			Collection: q.Collection,
			Timeout:    secs(q.TimeoutSecs),
		}), nil
	case "memory":
		return memory.NewStorage(cfg.Index.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown index: %s", cfg.Index.Type)
	}
}

func buildScraper(cfg *config.AppConfig, logger arbor.ILogger) (domain.Scraper, error) {
	s := cfg.Scraper
	switch s.Type {
	case "firecrawl", "":
		if s.Firecrawl == nil {
			return nil, fmt.Errorf("firecrawl config missing")
		}
		return firecrawl.NewClient(firecrawl.Config{
			APIKey:  config.Secret(s.Firecrawl.APIKeyEnv),
			BaseURL: s.Firecrawl.BaseURL,
			Timeout: secs(s.TimeoutSecs),
		}), nil
	case "direct":
		return direct.New(direct.Config{UserAgent: s.UserAgent, Timeout: secs(s.TimeoutSecs)}), nil
	case "browser":
		return browser.New(browser.Config{UserAgent: s.UserAgent, Timeout: secs(s.TimeoutSecs)}, logger), nil
	default:
		return nil, fmt.Errorf("unknown scraper: %s", s.Type)
	}
}

// prepareIndex creates the Qdrant collection when needed and checks the
// index dimension once against the configured one.
func (a *app) prepareIndex(ctx context.Context, create bool) error {
	if q, ok := a.index.(*qdrant.Storage); ok && create {
		if err := q.EnsureCollection(ctx, a.cfg.Index.Dimension); err != nil {
			return fmt.Errorf("ensure collection: %w", err)
		}
	}
	return vectorstore.CheckDimension(ctx, a.index, a.cfg.Index.Dimension)
}

func (a *app) ingestor() (*service.Ingestor, error) {
	sc, err := buildScraper(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	scrapeLimit := ratelimit.New(a.cfg.Scraper.RequestsPerMinute)
	embedLimit := ratelimit.New(a.cfg.Embedder.RequestsPerMinute)
	a.logger.Info().
		Dur("scrape_interval", scrapeLimit.Interval()).
		Dur("embed_interval", embedLimit.Interval()).
		Msg("Rate limits")

	fetcher := service.NewFetcher(sc, scrapeLimit, a.logger)
	indexer := service.NewIndexer(a.embedder, a.index, embedLimit, service.IndexerConfig{
		IDPrefix: a.cfg.Index.IDPrefix,
		Category: a.cfg.Index.Category,
	}, a.logger)
	return service.NewIngestor(fetcher, chunker.NewFixedChunker(a.cfg.Chunker.Size), indexer, a.logger), nil
}

func (a *app) completer() *completion.Client {
	c := a.cfg.Completion
	return completion.NewClient(completion.Config{
		APIKey:             config.Secret(c.APIKeyEnv),
		BaseURL:            c.BaseURL,
		Model:              c.Model,
		Timeout:            secs(c.TimeoutSecs),
		DefaultMaxTokens:   c.MaxTokens,
		DefaultTemperature: c.Temperature,
	})
}

func (a *app) chatService(completer domain.Completer) *service.ChatService {
	retriever := service.NewRetriever(a.index, a.cfg.Retrieval.TopK, a.cfg.Retrieval.MinScore)
	return service.NewChatService(a.embedder, retriever, completer, a.logger)
}

// runIngest runs one ingestion pass and logs its report.
func (a *app) runIngest(ctx context.Context) error {
	if err := a.prepareIndex(ctx, true); err != nil {
		return err
	}
	in, err := a.ingestor()
	if err != nil {
		return err
	}
	report, err := in.Run(ctx, a.cfg.Scraper.URLs)
	if report != nil && report.Fetch != nil {
		for _, s := range report.Fetch.Skipped {
			a.logger.Debug().Str("url", s.URL).Msg("Skipped during ingestion")
		}
	}
	if m, ok := a.index.(*memory.Storage); ok && err == nil {
		a.logger.Info().Int("records", m.Len()).Msg("In-memory index loaded")
	}
	return err
}
