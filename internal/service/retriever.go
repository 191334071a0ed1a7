package service

import (
	"context"
	"strings"

	"supportrag/internal/domain"
)

// Retrieval defaults.
const (
	DefaultTopK     = 8
	DefaultMinScore = 0.5
)

// Retrieval is the outcome of one context lookup.
type Retrieval struct {
	// Matches holds the matches that passed the score threshold, in index order.
	Matches []domain.RetrievalMatch
	Context string
}

// Retriever turns a query vector into a grounding context string.
type Retriever struct {
	index    domain.Index
	topK     int
	minScore float64
}

func NewRetriever(index domain.Index, topK int, minScore float64) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{index: index, topK: topK, minScore: minScore}
}

// Retrieve queries the index and keeps matches scoring at least the minimum.
// Matches without a score are kept. An empty context is not an error.
func (r *Retriever) Retrieve(ctx context.Context, vector []float32) (*Retrieval, error) {
	matches, err := r.index.Query(ctx, domain.QueryRequest{Vector: vector, TopK: r.topK, IncludeMetadata: true})
	if err != nil {
		return nil, err
	}

	out := &Retrieval{}
	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Score != nil && *m.Score < r.minScore {
			continue
		}
		out.Matches = append(out.Matches, m)
		texts = append(texts, m.Text())
	}
	out.Context = strings.Join(texts, "\n\n")
	return out, nil
}
