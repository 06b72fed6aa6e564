// Package gemini provides an alternate LLM and embedding provider over
// the Google generative AI SDK.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"ctxrag/internal/domain"
)

const (
	DefaultChatModel  = "gemini-2.5-flash"
	DefaultEmbedModel = "gemini-embedding-001"
)

// Client satisfies the same Generate/ChatStream/Embed contracts as the
// ollama adapter, so the pipelines do not care which provider is wired.
type Client struct {
	client     *genai.Client
	chatModel  string
	embedModel string
	dims       int
}

type Config struct {
	APIKey     string
	ChatModel  string
	EmbedModel string
	Dimensions int
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, err
	}
	return &Client{
		client:     client,
		chatModel:  cfg.ChatModel,
		embedModel: cfg.EmbedModel,
		dims:       cfg.Dimensions,
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Embed returns the vector for text, checking the configured dimension.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	em := c.client.EmbeddingModel(c.embedModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
	}
	if res.Embedding == nil {
		return nil, fmt.Errorf("%w: empty embedding response", domain.ErrEmbedding)
	}
	if len(res.Embedding.Values) != c.dims {
		return nil, fmt.Errorf("%w: model %s returned %d dimensions, expected %d",
			domain.ErrDimensionMismatch, c.embedModel, len(res.Embedding.Values), c.dims)
	}
	return res.Embedding.Values, nil
}

// Dimensions returns the configured vector size.
func (c *Client) Dimensions() int {
	return c.dims
}

// Generate produces a full completion for prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.chatModel)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return responseText(resp), nil
}

// ChatStream adapts the SDK's streaming iterator to the newline-delimited
// frame format the stream decoder consumes, so both providers share one
// wire shape.
func (c *Client) ChatStream(ctx context.Context, system, prompt string) (io.ReadCloser, error) {
	model := c.client.GenerativeModel(c.chatModel)
	it := model.GenerateContentStream(ctx, genai.Text(system+"\n\n"+prompt))

	pr, pw := io.Pipe()
	go func() {
		enc := json.NewEncoder(pw)
		for {
			resp, err := it.Next()
			if err == iterator.Done {
				_ = enc.Encode(frame{Done: true})
				pw.Close()
				return
			}
			if err != nil {
				pw.CloseWithError(err)
				return
			}
			if text := responseText(resp); text != "" {
				f := frame{Done: false}
				f.Message.Content = text
				if err := enc.Encode(f); err != nil {
					// reader gone, stop pulling from the model
					return
				}
			}
		}
	}()
	return pr, nil
}

// frame mirrors the chat wire format.
type frame struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return b.String()
}
