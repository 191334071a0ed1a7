package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultSourceURLs is the product and support page list ingested by default.
var DefaultSourceURLs = []string{
	"https://www.aven.com",
	"https://www.aven.com/home-equity-visa-card",
	"https://www.aven.com/home-equity-cash-card",
	"https://www.aven.com/rewards-visa-card",
	"https://www.aven.com/reviews",
	"https://www.aven.com/support",
	"https://www.aven.com/app",
	"https://www.aven.com/about",
	"https://www.aven.com/contact",
	"https://www.aven.com/blog",
	"https://www.aven.com/careers",
	"https://www.aven.com/press",
	"https://my.aven.com/login",
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr                string `yaml:"addr" validate:"required"`
	ShutdownTimeoutSecs int    `yaml:"shutdown_timeout_secs" validate:"gte=0"`
}

// LoggingConfig configures the arbor logger.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=trace debug info warn error"`
}

// FirecrawlConfig holds connection details for the Firecrawl scrape API.
type FirecrawlConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// ScraperConfig selects the scraper and the URLs to ingest.
type ScraperConfig struct {
	Type              string           `yaml:"type" validate:"oneof=firecrawl direct browser"`
	URLs              []string         `yaml:"urls" validate:"min=1,dive,url"`
	RequestsPerMinute int              `yaml:"requests_per_minute" validate:"gte=0"`
	TimeoutSecs       int              `yaml:"timeout_secs" validate:"gte=0"`
	UserAgent         string           `yaml:"user_agent"`
	Firecrawl         *FirecrawlConfig `yaml:"firecrawl,omitempty"`
}

// ChunkerConfig configures how the combined text is split.
type ChunkerConfig struct {
	Size int `yaml:"size" validate:"gte=0"`
}

// GeminiEmbedderConfig holds configuration for the Gemini embedder.
type GeminiEmbedderConfig struct {
	APIKeyEnv            string `yaml:"api_key_env"`
	Model                string `yaml:"model"`
	OutputDimensionality int    `yaml:"output_dimensionality" validate:"gte=0"`
	TimeoutSecs          int    `yaml:"timeout_secs" validate:"gte=0"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"gte=0"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type              string                `yaml:"type" validate:"oneof=gemini openai"`
	RequestsPerMinute int                   `yaml:"requests_per_minute" validate:"gte=0"`
	Gemini            *GeminiEmbedderConfig `yaml:"gemini,omitempty"`
	OpenAI            *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// PineconeConfig contains connection details for a Pinecone index.
type PineconeConfig struct {
	APIKeyEnv   string `yaml:"api_key_env"`
	HostEnv     string `yaml:"host_env"`
	IndexName   string `yaml:"index_name"`
	Namespace   string `yaml:"namespace"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"gte=0"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"gte=0"`
}

// IndexConfig selects and configures the vector index.
type IndexConfig struct {
	Type      string          `yaml:"type" validate:"oneof=pinecone qdrant memory"`
	Dimension int             `yaml:"dimension" validate:"gt=0"`
	IDPrefix  string          `yaml:"id_prefix" validate:"required"`
	Category  string          `yaml:"category" validate:"required"`
	Pinecone  *PineconeConfig `yaml:"pinecone,omitempty"`
	Qdrant    *QdrantConfig   `yaml:"qdrant,omitempty"`
}

// RetrievalConfig configures context lookup at query time.
type RetrievalConfig struct {
	TopK     int     `yaml:"top_k" validate:"gt=0"`
	MinScore float64 `yaml:"min_score" validate:"gte=-1,lte=1"`
}

// CompletionConfig configures the chat-completion service.
type CompletionConfig struct {
	BaseURL     string  `yaml:"base_url" validate:"required,url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model" validate:"required"`
	MaxTokens   int     `yaml:"max_tokens" validate:"gt=0"`
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	TimeoutSecs int     `yaml:"timeout_secs" validate:"gte=0"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Scraper    ScraperConfig    `yaml:"scraper"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Index      IndexConfig      `yaml:"index"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Completion CompletionConfig `yaml:"completion"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/supportrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/supportrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks structural constraints. API keys are not checked here;
// a missing key surfaces as an auth error on first use.
func (c *AppConfig) Validate() error {
	return validator.New().Struct(c)
}

// Secret returns the value of the named environment variable.
func Secret(envName string) string {
	if envName == "" {
		return ""
	}
	return os.Getenv(envName)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "supportrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Server:  ServerConfig{Addr: ":3000", ShutdownTimeoutSecs: 10},
		Logging: LoggingConfig{Level: "info"},
		Scraper: ScraperConfig{
			Type:              "firecrawl",
			URLs:              append([]string(nil), DefaultSourceURLs...),
			RequestsPerMinute: 10,
		},
		Chunker:  ChunkerConfig{Size: 1000},
		Embedder: EmbedderConfig{Type: "gemini", RequestsPerMinute: 10},
		Index: IndexConfig{
			Type:      "pinecone",
			Dimension: 3072,
			IDPrefix:  "aven-support",
			Category:  "website",
		},
		Retrieval: RetrievalConfig{TopK: 8, MinScore: 0.5},
		Completion: CompletionConfig{
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta/openai",
			APIKeyEnv:   "GOOGLE_API_KEY",
			Model:       "gemini-2.0-flash",
			MaxTokens:   150,
			Temperature: 0.7,
		},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Scraper.Type == "firecrawl" {
		if cfg.Scraper.Firecrawl == nil {
			cfg.Scraper.Firecrawl = &FirecrawlConfig{}
		}
		if cfg.Scraper.Firecrawl.BaseURL == "" {
			cfg.Scraper.Firecrawl.BaseURL = "https://api.firecrawl.dev"
		}
		if cfg.Scraper.Firecrawl.APIKeyEnv == "" {
			cfg.Scraper.Firecrawl.APIKeyEnv = "FIRECRAWL_API_KEY"
		}
	}
	if cfg.Scraper.TimeoutSecs == 0 {
		cfg.Scraper.TimeoutSecs = 60
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 1000
	}

	switch cfg.Embedder.Type {
	case "gemini":
		if cfg.Embedder.Gemini == nil {
			cfg.Embedder.Gemini = &GeminiEmbedderConfig{}
		}
		if cfg.Embedder.Gemini.APIKeyEnv == "" {
			cfg.Embedder.Gemini.APIKeyEnv = "GOOGLE_API_KEY"
		}
		if cfg.Embedder.Gemini.Model == "" {
			cfg.Embedder.Gemini.Model = "text-embedding-004"
		}
		if cfg.Embedder.Gemini.TimeoutSecs == 0 {
			cfg.Embedder.Gemini.TimeoutSecs = 30
		}
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}

	switch cfg.Index.Type {
	case "pinecone":
		if cfg.Index.Pinecone == nil {
			cfg.Index.Pinecone = &PineconeConfig{}
		}
		if cfg.Index.Pinecone.APIKeyEnv == "" {
			cfg.Index.Pinecone.APIKeyEnv = "PINECONE_API_KEY"
		}
		if cfg.Index.Pinecone.HostEnv == "" {
			cfg.Index.Pinecone.HostEnv = "PINECONE_HOST"
		}
		if cfg.Index.Pinecone.IndexName == "" {
			cfg.Index.Pinecone.IndexName = "company-data"
		}
		if cfg.Index.Pinecone.Namespace == "" {
			cfg.Index.Pinecone.Namespace = "aven"
		}
	case "qdrant":
		if cfg.Index.Qdrant == nil {
			cfg.Index.Qdrant = &QdrantConfig{}
		}
		if cfg.Index.Qdrant.URL == "" {
			cfg.Index.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.Index.Qdrant.Collection == "" {
			cfg.Index.Qdrant.Collection = "company-data"
		}
	}
	if cfg.Index.Dimension == 0 {
		cfg.Index.Dimension = 3072
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 8
	}
	if cfg.Completion.MaxTokens == 0 {
		cfg.Completion.MaxTokens = 150
	}
}
