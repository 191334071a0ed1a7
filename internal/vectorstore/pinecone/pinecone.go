package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"supportrag/internal/domain"
)

const (
	DefaultControlPlaneURL = "https://api.pinecone.io"
	apiVersion             = "2024-07"
)

// Config contains connection details for a Pinecone serverless index.
type Config struct {
	APIKey    string
	IndexName string
	// Host overrides the data-plane host; when empty it is resolved from the
	// control plane on first use.
	Host            string
	Namespace       string
	ControlPlaneURL string
	Timeout         time.Duration
}

// Storage is a minimal REST client for the Pinecone data plane, scoped to one
// index namespace.
type Storage struct {
	cfg    Config
	client *http.Client

	mu   sync.Mutex
	host string
}

func NewStorage(cfg Config) *Storage {
	if cfg.ControlPlaneURL == "" {
		cfg.ControlPlaneURL = DefaultControlPlaneURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Storage{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		host:   normalizeHost(cfg.Host),
	}
}

type vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Upsert writes records into the configured namespace.
func (s *Storage) Upsert(ctx context.Context, records []domain.IndexRecord) error {
	vectors := make([]vector, len(records))
	for i, r := range records {
		vectors[i] = vector{ID: r.ID, Values: r.Values, Metadata: r.Metadata}
	}
	body := map[string]any{
		"vectors":   vectors,
		"namespace": s.cfg.Namespace,
	}
	return s.data(ctx, "/vectors/upsert", body, nil)
}

// Query returns the TopK nearest records in the order Pinecone reports them.
func (s *Storage) Query(ctx context.Context, req domain.QueryRequest) ([]domain.RetrievalMatch, error) {
	body := map[string]any{
		"vector":          req.Vector,
		"topK":            req.TopK,
		"includeMetadata": req.IncludeMetadata,
		"namespace":       s.cfg.Namespace,
	}
	var resp struct {
		Matches []struct {
			ID       string         `json:"id"`
			Score    *float64       `json:"score"`
			Metadata map[string]any `json:"metadata"`
		} `json:"matches"`
	}
	if err := s.data(ctx, "/query", body, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.RetrievalMatch, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		out = append(out, domain.RetrievalMatch{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return out, nil
}

// Dimension reads the index dimensionality from describe_index_stats.
func (s *Storage) Dimension(ctx context.Context) (int, error) {
	var resp struct {
		Dimension int `json:"dimension"`
	}
	if err := s.data(ctx, "/describe_index_stats", map[string]any{}, &resp); err != nil {
		return 0, err
	}
	return resp.Dimension, nil
}

func (s *Storage) data(ctx context.Context, path string, body, out any) error {
	host, err := s.resolveHost(ctx)
	if err != nil {
		return err
	}
	return s.do(ctx, http.MethodPost, host+path, body, out)
}

func (s *Storage) resolveHost(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.host != "" {
		return s.host, nil
	}
	var resp struct {
		Host string `json:"host"`
	}
	url := strings.TrimRight(s.cfg.ControlPlaneURL, "/") + "/indexes/" + s.cfg.IndexName
	if err := s.do(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return "", fmt.Errorf("resolve index host: %w", err)
	}
	if resp.Host == "" {
		return "", domain.Errorf(domain.KindUpstream, "pinecone describe index", "index %q has no host", s.cfg.IndexName)
	}
	s.host = normalizeHost(resp.Host)
	return s.host, nil
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	op := "pinecone " + url[strings.LastIndex(url, "/")+1:]
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
	req.Header.Set("Api-Key", s.cfg.APIKey)
	req.Header.Set("X-Pinecone-API-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
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

func normalizeHost(host string) string {
	host = strings.TrimRight(host, "/")
	if host == "" || strings.Contains(host, "://") {
		return host
	}
	return "https://" + host
}
