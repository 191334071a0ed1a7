package domain

import (
	"context"
	"time"
)

// Document is the main-content markdown captured from a single URL.
type Document struct {
	URL       string
	Markdown  string
	FetchedAt time.Time
}

// Chunk is a fixed-size slice of the combined ingestion text.
// Start and End are character (rune) offsets into that text.
type Chunk struct {
	Index int
	Start int
	End   int
	Text  string
}

// Len returns the byte length of the chunk text.
func (c Chunk) Len() int { return len(c.Text) }

// Chars returns the number of characters in the chunk.
func (c Chunk) Chars() int { return c.End - c.Start }

// IndexRecord is the unit persisted in the vector index.
type IndexRecord struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// RetrievalMatch is a query-time view of an IndexRecord.
// Score is nil when the index did not report one.
type RetrievalMatch struct {
	ID       string
	Score    *float64
	Metadata map[string]any
}

// Text returns the chunk text stored in the match metadata, if any.
func (m RetrievalMatch) Text() string {
	if v, ok := m.Metadata[MetaText].(string); ok {
		return v
	}
	return ""
}

// Metadata keys written by the indexer.
const (
	MetaText        = "text"
	MetaCategory    = "category"
	MetaSourceURLs  = "source_urls"
	MetaChunkIndex  = "chunk_index"
	MetaTotalChunks = "total_chunks"
	MetaChunkSize   = "chunk_size"
	MetaBatchID     = "batch_id"
)

// QueryRequest asks the index for the nearest records to Vector.
type QueryRequest struct {
	Vector          []float32
	TopK            int
	IncludeMetadata bool
}

// GenerationOptions are optional completion parameters supplied by the caller.
type GenerationOptions struct {
	MaxTokens   *int
	Temperature *float64
}

// Scraper fetches the main content of a page as markdown.
type Scraper interface {
	Scrape(ctx context.Context, url string) (Document, error)
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index persists vectors and supports similarity search.
type Index interface {
	Upsert(ctx context.Context, records []IndexRecord) error
	Query(ctx context.Context, req QueryRequest) ([]RetrievalMatch, error)
	Dimension(ctx context.Context) (int, error)
}

// Limiter paces calls to a rate-limited upstream service.
type Limiter interface {
	Wait(ctx context.Context) error
	// Throttled reports that the upstream pushed back; implementations may slow down.
	Throttled()
}

// ChunkStream iterates raw completion chunk objects as the upstream emits them.
type ChunkStream interface {
	Next() bool
	Chunk() []byte
	Err() error
	Close() error
}

// Completer calls a chat-completion service. Complete returns the service's
// completion object verbatim.
type Completer interface {
	Complete(ctx context.Context, messages []ChatMessage, opts GenerationOptions) ([]byte, error)
	Stream(ctx context.Context, messages []ChatMessage, opts GenerationOptions) (ChunkStream, error)
}
