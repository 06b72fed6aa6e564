// Package retrieval turns a user question into the document snippets
// that ground the chat answer: embed the question, search the vector
// store, drop weak matches and assemble the augmented prompt.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ctxrag/internal/domain"
	"ctxrag/internal/middleware"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error)
}

type Service struct {
	embedder  Embedder
	store     VectorStore
	threshold float32
	queryLog  *QueryLogger
}

func NewService(embedder Embedder, store VectorStore, threshold float32, queryLog *QueryLogger) *Service {
	return &Service{
		embedder:  embedder,
		store:     store,
		threshold: threshold,
		queryLog:  queryLog,
	}
}

// Retrieve embeds the query and returns up to k matches scoring at or
// above the configured threshold, in descending score order.
func (s *Service) Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	started := time.Now()

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.store.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	kept := results[:0]
	for _, r := range results {
		if r.Score >= s.threshold {
			kept = append(kept, r)
		}
	}

	if s.queryLog != nil {
		entry := QueryLogEntry{
			Query:         query,
			NumResults:    len(kept),
			Duration:      time.Since(started),
			CorrelationID: middleware.GetCorrelationID(ctx),
		}
		if len(kept) > 0 {
			entry.TopScore = kept[0].Score
		}
		s.queryLog.Log(entry)
	}
	return kept, nil
}

// BuildPrompt assembles the augmented prompt the chat model answers
// from. Each snippet carries its generated context so the model sees
// the same framing the embedding was matched on.
func BuildPrompt(results []domain.SearchResult, question string) string {
	var b strings.Builder
	if len(results) == 0 {
		b.WriteString("No relevant documents were found for this question.\n\n")
	} else {
		b.WriteString("Use the following document excerpts to answer the question.\n\n")
		for i, r := range results {
			fmt.Fprintf(&b, "[%d] (%s)\n", i+1, r.Payload.DocID)
			if r.Payload.Context != "" {
				b.WriteString(r.Payload.Context)
				b.WriteString("\n")
			}
			b.WriteString(r.Payload.Text)
			b.WriteString("\n\n")
		}
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
