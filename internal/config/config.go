package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"ctxrag/internal/domain"
)

type Config struct {
	// LLM provider
	LLMProvider  string `envconfig:"LLM_PROVIDER" default:"ollama"`
	OllamaURL    string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	ChatModel    string `envconfig:"CHAT_MODEL" default:"gemma3:12b"`
	EmbedModel   string `envconfig:"EMBED_MODEL" default:"paraphrase-multilingual"`
	EmbedDims    int    `envconfig:"EMBED_DIMS" default:"768"`
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	// Empty values fall back to the gemini adapter's defaults; the
	// CHAT_MODEL/EMBED_MODEL keys name ollama models and do not carry over.
	GeminiChatModel  string `envconfig:"GEMINI_CHAT_MODEL"`
	GeminiEmbedModel string `envconfig:"GEMINI_EMBED_MODEL"`

	// Vector store
	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`
	Collection     string `envconfig:"COLLECTION" default:"DocumentChunk"`

	// Chunking
	MaxChunkSize int `envconfig:"MAX_CHUNK_SIZE" default:"2000"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"200"`

	// Ingestion
	IngestConcurrency int           `envconfig:"INGEST_CONCURRENCY" default:"4"`
	RetryAttempts     int           `envconfig:"RETRY_ATTEMPTS" default:"3"`
	RetryDelay        time.Duration `envconfig:"RETRY_DELAY" default:"1s"`

	// Retrieval
	TopK           int     `envconfig:"TOP_K" default:"5"`
	ScoreThreshold float32 `envconfig:"SCORE_THRESHOLD" default:"0.55"`

	// Server
	ServerPort   int    `envconfig:"SERVER_PORT" default:"3003"`
	QueryLogPath string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`

	// Optional ingestion-run registry (disabled when DB_HOST is empty)
	DBHost        string `envconfig:"DB_HOST"`
	DBPort        int    `envconfig:"DB_PORT" default:"5432"`
	DBUser        string `envconfig:"DB_USER" default:"ctxrag"`
	DBPass        string `envconfig:"DB_PASS" default:"password"`
	DBName        string `envconfig:"DB_NAME" default:"ctxrag"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`
}

func Load() (*Config, error) {
	// Env vars may come from the shell instead, so a missing .env is fine.
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: MAX_CHUNK_SIZE must be positive, got %d", domain.ErrBadConfig, c.MaxChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: CHUNK_OVERLAP must not be negative, got %d", domain.ErrBadConfig, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.MaxChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP %d must be smaller than MAX_CHUNK_SIZE %d",
			domain.ErrBadConfig, c.ChunkOverlap, c.MaxChunkSize)
	}
	if c.EmbedDims <= 0 {
		return fmt.Errorf("%w: EMBED_DIMS must be positive, got %d", domain.ErrBadConfig, c.EmbedDims)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: TOP_K must be positive, got %d", domain.ErrBadConfig, c.TopK)
	}
	switch c.LLMProvider {
	case "ollama":
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is required for the gemini provider", domain.ErrBadConfig)
		}
	default:
		return fmt.Errorf("%w: unknown LLM_PROVIDER %q", domain.ErrBadConfig, c.LLMProvider)
	}
	return nil
}

// DSN builds the postgres connection string for the ingestion-run registry.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName)
}

// RegistryEnabled reports whether ingestion runs should be persisted.
func (c *Config) RegistryEnabled() bool {
	return c.DBHost != ""
}
