package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// RAGConfig tunes the retrieval pipeline. It can be overridden by the YAML
// file named in RAG_CONFIG_FILE.
type RAGConfig struct {
	ChunkSize          int           `yaml:"chunk_size"`
	ChunkOverlap       int           `yaml:"chunk_overlap"`
	TopK               int           `yaml:"top_k"`
	SnippetLength      int           `yaml:"snippet_length"`
	HistoryTurns       int           `yaml:"history_turns"`
	EmbedTimeout       time.Duration `yaml:"embed_timeout"`
	SearchTimeout      time.Duration `yaml:"search_timeout"`
	GenerationTimeout  time.Duration `yaml:"generation_timeout"`
	EmbedRatePerSecond float64       `yaml:"embed_rate_per_second"`
	EmbedBurst         int           `yaml:"embed_burst"`
	MaxUploadBytes     int64         `yaml:"max_upload_bytes"`
	ChatModel          string        `yaml:"chat_model"`
	EmbeddingModel     string        `yaml:"embedding_model"`
	Temperature        float32       `yaml:"temperature"`
}

type Config struct {
	GeminiAPIKey      string
	JWTSecret         string
	DatabaseURL       string
	VectorDBPath      string
	UploadDir         string
	InboxDir          string
	HTTPPort          string
	LogLevel          string
	EmbeddingProvider string
	RAGConfigFile     string
	RAG               RAGConfig
}

const (
	ProviderGemini = "gemini"
	ProviderHash   = "hash"
)

// DefaultRAG returns the pipeline defaults. Chunk overlap is 20% of the
// chunk size.
func DefaultRAG() RAGConfig {
	return RAGConfig{
		ChunkSize:          1000,
		ChunkOverlap:       200,
		TopK:               4,
		SnippetLength:      200,
		HistoryTurns:       10,
		EmbedTimeout:       15 * time.Second,
		SearchTimeout:      10 * time.Second,
		GenerationTimeout:  60 * time.Second,
		EmbedRatePerSecond: 25,
		EmbedBurst:         5,
		MaxUploadBytes:     20 << 20,
		ChatModel:          "gemini-1.5-flash-latest",
		EmbeddingModel:     "text-embedding-004",
		Temperature:        0.2,
	}
}

// Load reads .env (if present), the environment and the optional YAML
// tuning file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		DatabaseURL:       getEnv("DATABASE_URL", "support_chatbot.db"),
		VectorDBPath:      getEnv("VECTOR_DB_PATH", "vectors.db"),
		UploadDir:         getEnv("UPLOAD_DIR", "uploads"),
		InboxDir:          getEnv("INBOX_DIR", ""),
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "INFO"),
		EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", ProviderGemini),
		RAGConfigFile:     getEnv("RAG_CONFIG_FILE", ""),
		RAG:               DefaultRAG(),
	}
	cfg.RAG.TopK = getEnvAsInt("RAG_TOP_K", cfg.RAG.TopK)

	if cfg.RAGConfigFile != "" {
		if err := cfg.loadRAGFile(cfg.RAGConfigFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadRAGFile overlays non-zero values from a YAML document of the form
// `rag: {...}` onto cfg.RAG.
func (c *Config) loadRAGFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read RAG config %s: %w", path, err)
	}
	var file struct {
		RAG RAGConfig `yaml:"rag"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse RAG config %s: %w", path, err)
	}
	c.RAG.merge(file.RAG)
	return nil
}

func (r *RAGConfig) merge(o RAGConfig) {
	if o.ChunkSize != 0 {
		r.ChunkSize = o.ChunkSize
	}
	if o.ChunkOverlap != 0 {
		r.ChunkOverlap = o.ChunkOverlap
	}
	if o.TopK != 0 {
		r.TopK = o.TopK
	}
	if o.SnippetLength != 0 {
		r.SnippetLength = o.SnippetLength
	}
	if o.HistoryTurns != 0 {
		r.HistoryTurns = o.HistoryTurns
	}
	if o.EmbedTimeout != 0 {
		r.EmbedTimeout = o.EmbedTimeout
	}
	if o.SearchTimeout != 0 {
		r.SearchTimeout = o.SearchTimeout
	}
	if o.GenerationTimeout != 0 {
		r.GenerationTimeout = o.GenerationTimeout
	}
	if o.EmbedRatePerSecond != 0 {
		r.EmbedRatePerSecond = o.EmbedRatePerSecond
	}
	if o.EmbedBurst != 0 {
		r.EmbedBurst = o.EmbedBurst
	}
	if o.MaxUploadBytes != 0 {
		r.MaxUploadBytes = o.MaxUploadBytes
	}
	if o.ChatModel != "" {
		r.ChatModel = o.ChatModel
	}
	if o.EmbeddingModel != "" {
		r.EmbeddingModel = o.EmbeddingModel
	}
	if o.Temperature != 0 {
		r.Temperature = o.Temperature
	}
}

// Validate checks values that would break the pipeline at runtime.
func (c *Config) Validate() error {
	r := c.RAG
	var errs []error
	if r.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk_size must be positive, got %d", r.ChunkSize))
	}
	if r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", r.ChunkOverlap))
	}
	if r.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top_k must be positive, got %d", r.TopK))
	}
	if r.SnippetLength <= 0 {
		errs = append(errs, fmt.Errorf("snippet_length must be positive, got %d", r.SnippetLength))
	}
	if r.HistoryTurns < 0 {
		errs = append(errs, fmt.Errorf("history_turns must not be negative, got %d", r.HistoryTurns))
	}
	if c.EmbeddingProvider != ProviderGemini && c.EmbeddingProvider != ProviderHash {
		errs = append(errs, fmt.Errorf("unknown EMBEDDING_PROVIDER %q", c.EmbeddingProvider))
	}
	return errors.Join(errs...)
}

// RequireJWTSecret fails when no token signing secret is configured.
func (c *Config) RequireJWTSecret() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	return nil
}

// RequireGemini fails when the Gemini API key is missing.
func (c *Config) RequireGemini() error {
	if c.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY environment variable is required")
	}
	return nil
}

func (c *Config) Debug() bool {
	return c.LogLevel == "DEBUG"
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
