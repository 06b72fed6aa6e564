package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctxrag/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLMProvider)
	assert.Equal(t, "http://localhost:11434", cfg.OllamaURL)
	assert.Equal(t, "DocumentChunk", cfg.Collection)
	assert.Equal(t, 2000, cfg.MaxChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 768, cfg.EmbedDims)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, float32(0.55), cfg.ScoreThreshold)
	assert.Equal(t, time.Second, cfg.RetryDelay)
	assert.False(t, cfg.RegistryEnabled())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MAX_CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "50")
	t.Setenv("DB_HOST", "postgres")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.MaxChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.True(t, cfg.RegistryEnabled())
	assert.Contains(t, cfg.DSN(), "host=postgres")
}

func TestLoad_GeminiModels(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("GEMINI_CHAT_MODEL", "gemini-2.5-pro")
	t.Setenv("GEMINI_EMBED_MODEL", "gemini-embedding-001")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", cfg.GeminiChatModel)
	assert.Equal(t, "gemini-embedding-001", cfg.GeminiEmbedModel)
	// the ollama model keys keep their own defaults
	assert.Equal(t, "gemma3:12b", cfg.ChatModel)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			LLMProvider:  "ollama",
			MaxChunkSize: 2000,
			ChunkOverlap: 200,
			EmbedDims:    768,
			TopK:         5,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"zero chunk size", func(c *Config) { c.MaxChunkSize = 0 }, false},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }, false},
		{"overlap equals chunk size", func(c *Config) { c.ChunkOverlap = c.MaxChunkSize }, false},
		{"overlap exceeds chunk size", func(c *Config) { c.ChunkOverlap = c.MaxChunkSize + 1 }, false},
		{"zero dims", func(c *Config) { c.EmbedDims = 0 }, false},
		{"zero top-k", func(c *Config) { c.TopK = 0 }, false},
		{"unknown provider", func(c *Config) { c.LLMProvider = "openai" }, false},
		{"gemini without key", func(c *Config) { c.LLMProvider = "gemini" }, false},
		{"gemini with key", func(c *Config) { c.LLMProvider = "gemini"; c.GeminiAPIKey = "k" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrBadConfig)
			}
		})
	}
}
