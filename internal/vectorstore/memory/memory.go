package memory

import (
	"context"
	"errors"
	"maps"
	"math"
	"slices"
	"sync"

	"supportrag/internal/domain"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	records   []domain.IndexRecord
	byID      map[string]int
}

func NewStorage(dimension int) *Storage {
	return &Storage{dimension: dimension, byID: make(map[string]int)}
}

func (s *Storage) Dimension(context.Context) (int, error) {
	if s.dimension <= 0 {
		return 0, errors.New("invalid dimension")
	}
	return s.dimension, nil
}

// Upsert inserts records, replacing any with the same ID.
func (s *Storage) Upsert(_ context.Context, records []domain.IndexRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if len(r.Values) != s.dimension {
			return domain.Errorf(domain.KindBadRequest, "memory upsert", "vector dimension %d does not match index dimension %d", len(r.Values), s.dimension)
		}
	}
	for _, r := range records {
		r.Metadata = maps.Clone(r.Metadata)
		if i, ok := s.byID[r.ID]; ok {
			s.records[i] = r
			continue
		}
		s.byID[r.ID] = len(s.records)
		s.records = append(s.records, r)
	}
	return nil
}

// Query returns the TopK records by descending cosine similarity.
func (s *Storage) Query(_ context.Context, req domain.QueryRequest) ([]domain.RetrievalMatch, error) {
	if len(req.Vector) != s.dimension {
		return nil, domain.Errorf(domain.KindBadRequest, "memory query", "vector dimension %d does not match index dimension %d", len(req.Vector), s.dimension)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(s.records))
	for i := range s.records {
		scores[i] = scored{i, cosine(s.records[i].Values, req.Vector)}
	}
	slices.SortStableFunc(scores, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return 0
		}
	})
	if topK > len(scores) {
		topK = len(scores)
	}
	out := make([]domain.RetrievalMatch, 0, topK)
	for _, sc := range scores[:topK] {
		r := s.records[sc.idx]
		m := domain.RetrievalMatch{ID: r.ID, Score: &sc.score}
		if req.IncludeMetadata {
			m.Metadata = maps.Clone(r.Metadata)
		}
		out = append(out, m)
	}
	return out, nil
}

// Len returns the number of stored records.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
