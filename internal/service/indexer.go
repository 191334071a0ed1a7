package service

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"supportrag/internal/domain"
)

// IndexerConfig holds the record-shaping settings of an Indexer.
type IndexerConfig struct {
	// IDPrefix starts every record ID: <prefix>-chunk-<index>-<unix millis>.
	IDPrefix string
	Category string
}

// IndexReport is the outcome of one indexing run.
type IndexReport struct {
	BatchID string
	Records int
}

// Indexer embeds chunks and writes them to the index one at a time, in order.
type Indexer struct {
	embedder domain.Embedder
	index    domain.Index
	limiter  domain.Limiter
	logger   arbor.ILogger
	cfg      IndexerConfig
	now      func() time.Time
	newID    func() string
}

func NewIndexer(embedder domain.Embedder, index domain.Index, limiter domain.Limiter, cfg IndexerConfig, logger arbor.ILogger) *Indexer {
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "support"
	}
	if cfg.Category == "" {
		cfg.Category = "website"
	}
	return &Indexer{
		embedder: embedder,
		index:    index,
		limiter:  limiter,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// RecordID builds the ID of the chunk at index, stamped at t.
func (ix *Indexer) RecordID(index int, t time.Time) string {
	return fmt.Sprintf("%s-chunk-%d-%d", ix.cfg.IDPrefix, index, t.UnixMilli())
}

// Index embeds and upserts every chunk, waiting on the limiter before each
// embed call. Any embed or upsert failure aborts the run.
func (ix *Indexer) Index(ctx context.Context, chunks iter.Seq[domain.Chunk], total int, sourceURLs []string) (*IndexReport, error) {
	report := &IndexReport{BatchID: ix.newID()}
	sources := strings.Join(sourceURLs, ", ")

	for chunk := range chunks {
		if err := ix.limiter.Wait(ctx); err != nil {
			return report, fmt.Errorf("index chunk %d: %w", chunk.Index, err)
		}

		vec, err := ix.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			if domain.KindOf(err) == domain.KindRateLimited {
				ix.limiter.Throttled()
			}
			return report, fmt.Errorf("embed chunk %d: %w", chunk.Index, err)
		}

		record := domain.IndexRecord{
			ID:     ix.RecordID(chunk.Index, ix.now()),
			Values: vec,
			Metadata: map[string]any{
				domain.MetaText:        chunk.Text,
				domain.MetaCategory:    ix.cfg.Category,
				domain.MetaSourceURLs:  sources,
				domain.MetaChunkIndex:  chunk.Index,
				domain.MetaTotalChunks: total,
				domain.MetaChunkSize:   chunk.Chars(),
				domain.MetaBatchID:     report.BatchID,
			},
		}
		if err := ix.index.Upsert(ctx, []domain.IndexRecord{record}); err != nil {
			return report, fmt.Errorf("upsert chunk %d: %w", chunk.Index, err)
		}
		report.Records++

		ix.logger.Info().
			Str("id", record.ID).
			Int("chunk", chunk.Index+1).
			Int("total", total).
			Msg("Indexed chunk")
	}
	return report, nil
}
