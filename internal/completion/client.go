// Package completion provides an OpenAI-compatible chat-completions client that
// hands back the upstream JSON untouched, either whole or chunk by chunk.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"supportrag/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta/openai"
	DefaultModel       = "gemini-2.0-flash"
	DefaultMaxTokens   = 150
	DefaultTemperature = 0.7
)

// Config holds configuration for the chat-completion client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Timeout bounds non-streaming calls only; streams live as long as ctx.
	Timeout            time.Duration
	DefaultMaxTokens   int
	DefaultTemperature float64
}

// Client calls /chat/completions with a fixed model.
type Client struct {
	client             *http.Client
	baseURL            string
	apiKey             string
	model              string
	timeout            time.Duration
	defaultMaxTokens   int
	defaultTemperature float64
}

var _ domain.Completer = (*Client)(nil)

type chatCompletionRequest struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature float64              `json:"temperature"`
	Stream      bool                 `json:"stream,omitempty"`
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.DefaultMaxTokens == 0 {
		cfg.DefaultMaxTokens = DefaultMaxTokens
	}
	if cfg.DefaultTemperature == 0 {
		cfg.DefaultTemperature = DefaultTemperature
	}
	return &Client{
		client:             &http.Client{},
		baseURL:            strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:             cfg.APIKey,
		model:              cfg.Model,
		timeout:            cfg.Timeout,
		defaultMaxTokens:   cfg.DefaultMaxTokens,
		defaultTemperature: cfg.DefaultTemperature,
	}
}

// Model returns the model every request is sent to.
func (c *Client) Model() string { return c.model }

// Complete returns the upstream completion object verbatim.
func (c *Client) Complete(ctx context.Context, messages []domain.ChatMessage, opts domain.GenerationOptions) ([]byte, error) {
	const op = "chat completion"
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.send(ctx, op, c.buildRequest(messages, opts, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.E(domain.KindUpstream, op, fmt.Errorf("read response: %w", err))
	}
	if !json.Valid(body) {
		return nil, domain.Errorf(domain.KindUpstream, op, "response is not JSON")
	}
	return body, nil
}

// Stream starts a streaming completion. The caller must Close the stream.
func (c *Client) Stream(ctx context.Context, messages []domain.ChatMessage, opts domain.GenerationOptions) (domain.ChunkStream, error) {
	resp, err := c.send(ctx, "chat completion stream", c.buildRequest(messages, opts, true))
	if err != nil {
		return nil, err
	}
	return newStream(resp.Body), nil
}

func (c *Client) buildRequest(messages []domain.ChatMessage, opts domain.GenerationOptions, stream bool) chatCompletionRequest {
	req := chatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.defaultMaxTokens,
		Temperature: c.defaultTemperature,
		Stream:      stream,
	}
	if opts.MaxTokens != nil && *opts.MaxTokens > 0 {
		req.MaxTokens = *opts.MaxTokens
	}
	// An explicit temperature of 0 is sent as 0 (greedy decoding); only an
	// omitted one falls back to the default.
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	return req
}

func (c *Client) send(ctx context.Context, op string, body chatCompletionRequest) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, domain.E(domain.KindInternal, op, fmt.Errorf("marshal request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, domain.E(domain.KindInternal, op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.E(domain.KindUpstream, op, fmt.Errorf("send request: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, domain.StatusError(op, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

// ContentOf extracts the first choice's message content from a completion object.
func ContentOf(completion []byte) string {
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(completion, &out); err != nil || len(out.Choices) == 0 {
		return ""
	}
	return out.Choices[0].Message.Content
}
