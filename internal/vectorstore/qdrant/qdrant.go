package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"supportrag/internal/domain"
)

// recordIDKey holds the original record ID in the point payload. Qdrant only
// accepts integer or UUID point IDs, so record IDs are mapped to UUIDv5.
const recordIDKey = "record_id"

// Storage is a minimal REST client to Qdrant.
// It assumes cosine distance and can create the collection if missing.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// EnsureCollection creates the collection with the given dimension.
// Qdrant returns 200 OK if the collection exists with the same schema.
func (s *Storage) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return domain.Errorf(domain.KindInternal, "qdrant ensure collection", "invalid dimension %d", dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil)
}

// Dimension reads the vector size from the collection info.
func (s *Storage) Dimension(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Config.Params.Vectors.Size, nil
}

func (s *Storage) Upsert(ctx context.Context, records []domain.IndexRecord) error {
	points := make([]map[string]any, len(records))
	for i, r := range records {
		payload := make(map[string]any, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			payload[k] = v
		}
		payload[recordIDKey] = r.ID
		points[i] = map[string]any{
			"id":      pointID(r.ID),
			"vector":  r.Values,
			"payload": payload,
		}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), body, nil)
}

func (s *Storage) Query(ctx context.Context, req domain.QueryRequest) ([]domain.RetrievalMatch, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}
	body := map[string]any{
		"vector":       req.Vector,
		"limit":        topK,
		"with_payload": req.IncludeMetadata,
	}
	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), body, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.RetrievalMatch, 0, len(resp.Result))
	for _, r := range resp.Result {
		m := domain.RetrievalMatch{ID: fmt.Sprint(r.ID), Score: &r.Score}
		if id, ok := r.Payload[recordIDKey].(string); ok {
			m.ID = id
			delete(r.Payload, recordIDKey)
		}
		if req.IncludeMetadata {
			m.Metadata = r.Payload
		}
		results = append(results, m)
	}
	return results, nil
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

func (s *Storage) do(ctx context.Context, method, url string, body any, out any) error {
	op := "qdrant " + method
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return domain.E(domain.KindInternal, op, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return domain.E(domain.KindInternal, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return domain.E(domain.KindUpstream, op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.StatusError(op, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return domain.E(domain.KindUpstream, op, err)
		}
	}
	return nil
}

func pointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(recordID)).String()
}
