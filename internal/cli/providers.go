package cli

import (
	"context"
	"io"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"ctxrag/internal/adapter/gemini"
	"ctxrag/internal/adapter/ollama"
	adapterweaviate "ctxrag/internal/adapter/weaviate"
	"ctxrag/internal/config"
)

// provider bundles the model operations a command needs, regardless of
// which backend serves them.
type provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Generate(ctx context.Context, prompt string) (string, error)
	ChatStream(ctx context.Context, system, prompt string) (io.ReadCloser, error)
}

// ollamaProvider pairs the two Ollama adapters behind one provider.
type ollamaProvider struct {
	*ollama.Embedder
	*ollama.LLM
}

func newProvider(ctx context.Context, cfg *config.Config) (provider, func() error, error) {
	switch cfg.LLMProvider {
	case "gemini":
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:     cfg.GeminiAPIKey,
			ChatModel:  cfg.GeminiChatModel,
			EmbedModel: cfg.GeminiEmbedModel,
			Dimensions: cfg.EmbedDims,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	default:
		p := ollamaProvider{
			Embedder: ollama.NewEmbedder(ollama.EmbedderConfig{
				BaseURL:    cfg.OllamaURL,
				Model:      cfg.EmbedModel,
				Dimensions: cfg.EmbedDims,
			}),
			LLM: ollama.NewLLM(ollama.LLMConfig{
				BaseURL: cfg.OllamaURL,
				Model:   cfg.ChatModel,
			}),
		}
		return p, func() error { return nil }, nil
	}
}

func newVectorStore(ctx context.Context, cfg *config.Config) (*adapterweaviate.Store, error) {
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   cfg.WeaviateHost,
		Scheme: cfg.WeaviateScheme,
	})
	if err != nil {
		return nil, err
	}
	store := adapterweaviate.NewStore(client, cfg.Collection, cfg.EmbedDims)
	if err := store.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
