// Package chat runs one retrieval-augmented conversation turn: fetch
// relevant document snippets, stream the model's answer and hand each
// delta to the caller as it arrives.
package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"ctxrag/internal/domain"
	"ctxrag/internal/retrieval"
	"ctxrag/internal/stream"
)

const systemPrompt = "You are a helpful assistant that answers questions about company documents. " +
	"Answer using only the provided document excerpts. " +
	"If the excerpts do not contain the answer, say so instead of guessing."

type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
}

// StreamingLLM starts a model reply and returns the raw frame stream.
type StreamingLLM interface {
	ChatStream(ctx context.Context, system, prompt string) (io.ReadCloser, error)
}

type Loop struct {
	retriever Retriever
	llm       StreamingLLM
	topK      int
	log       *slog.Logger
}

func NewLoop(retriever Retriever, llm StreamingLLM, topK int, log *slog.Logger) *Loop {
	return &Loop{retriever: retriever, llm: llm, topK: topK, log: log}
}

// Turn answers one user message. Every content delta is passed to emit
// in arrival order; the full reply is returned once the stream ends.
// If the stream breaks mid-reply, Turn returns the partial reply
// together with the error, and emit will already have delivered
// everything received.
func (l *Loop) Turn(ctx context.Context, message string, emit func(delta string) error) (string, error) {
	results, err := l.retriever.Retrieve(ctx, message, l.topK)
	if err != nil {
		return "", fmt.Errorf("retrieve context: %w", err)
	}
	l.log.Debug("retrieved context", "results", len(results))

	prompt := retrieval.BuildPrompt(results, message)

	body, err := l.llm.ChatStream(ctx, systemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("start reply stream: %w", err)
	}
	defer body.Close()

	var reply strings.Builder
	decoder := stream.NewDecoder(body, l.log)
	for {
		delta, err := decoder.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return reply.String(), err
		}
		reply.WriteString(delta)
		if emit != nil {
			if err := emit(delta); err != nil {
				return reply.String(), fmt.Errorf("deliver delta: %w", err)
			}
		}
	}
	if n := decoder.Warnings(); n > 0 {
		l.log.Warn("reply stream contained malformed frames", "skipped", n)
	}
	return reply.String(), nil
}
