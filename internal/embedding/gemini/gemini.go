package gemini

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"supportrag/internal/domain"
)

// DefaultModel is the Gemini embedding model used when none is configured.
const DefaultModel = "text-embedding-004"

// contentEmbedder is the subset of *genai.Models used by Embedder.
type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Config configures the Gemini embedder.
type Config struct {
	APIKey string
	Model  string
	// OutputDimensionality is passed to the API when > 0.
	OutputDimensionality int
	Timeout              time.Duration
}

// Embedder generates embeddings with the Google GenAI SDK.
// The SDK client is created on first use so a missing key surfaces as an
// upstream auth error instead of a startup failure.
type Embedder struct {
	cfg    Config
	logger arbor.ILogger

	mu     sync.Mutex
	models contentEmbedder
}

// New creates a Gemini embedder.
func New(cfg Config, logger arbor.ILogger) *Embedder {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Embedder{cfg: cfg, logger: logger}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "gemini:" + e.cfg.Model }

// Embed returns the raw embedding for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	models, err := e.client(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	var config *genai.EmbedContentConfig
	if e.cfg.OutputDimensionality > 0 {
		dim := int32(e.cfg.OutputDimensionality)
		config = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}

	start := time.Now()
	resp, err := models.EmbedContent(ctx, e.cfg.Model, []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, config)
	if err != nil {
		return nil, classify(err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, domain.Errorf(domain.KindUpstream, "gemini embed", "no embedding returned")
	}
	values := resp.Embeddings[0].Values

	e.logger.Debug().
		Str("model", e.cfg.Model).
		Int("text_length", len(text)).
		Int("embedding_dim", len(values)).
		Dur("duration", time.Since(start)).
		Msg("Generated embedding")

	return values, nil
}

func (e *Embedder) client(ctx context.Context) (contentEmbedder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.models != nil {
		return e.models, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  e.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, domain.E(domain.KindAuth, "gemini client", err)
	}
	e.models = c.Models
	return e.models, nil
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return domain.E(domain.KindFromStatus(apiErr.Code), "gemini embed", err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return domain.E(domain.KindFromStatus(apiErrPtr.Code), "gemini embed", err)
	}
	return domain.E(domain.KindUpstream, "gemini embed", fmt.Errorf("request failed: %w", err))
}
