package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"supportrag/internal/chunker"
)

// IngestReport summarises one ingestion run.
type IngestReport struct {
	Fetch   *FetchReport
	Index   *IndexReport
	Chunks  int
	Elapsed time.Duration
}

// Ingestor runs the ingestion pipeline: fetch, chunk, embed and index.
type Ingestor struct {
	fetcher *Fetcher
	chunker *chunker.FixedChunker
	indexer *Indexer
	logger  arbor.ILogger
}

func NewIngestor(fetcher *Fetcher, ch *chunker.FixedChunker, indexer *Indexer, logger arbor.ILogger) *Ingestor {
	return &Ingestor{fetcher: fetcher, chunker: ch, indexer: indexer, logger: logger}
}

// Run ingests urls. It fails before chunking when no URL yielded content.
func (in *Ingestor) Run(ctx context.Context, urls []string) (*IngestReport, error) {
	start := time.Now()
	report := &IngestReport{}

	in.logger.Info().Int("urls", len(urls)).Msg("Scraping source URLs")
	fetched, err := in.fetcher.Fetch(ctx, urls)
	report.Fetch = fetched
	if err != nil {
		return report, err
	}

	report.Chunks = in.chunker.Count(fetched.Text)
	in.logger.Info().
		Int("chars", len([]rune(fetched.Text))).
		Int("chunks", report.Chunks).
		Int("skipped", len(fetched.Skipped)).
		Msg("Chunked combined content")

	indexed, err := in.indexer.Index(ctx, in.chunker.Chunks(fetched.Text), report.Chunks, urls)
	report.Index = indexed
	report.Elapsed = time.Since(start)
	if err != nil {
		return report, fmt.Errorf("index: %w", err)
	}

	in.logger.Info().
		Str("batch_id", indexed.BatchID).
		Int("records", indexed.Records).
		Dur("elapsed", report.Elapsed).
		Msg("Ingestion complete")
	return report, nil
}
