// Package agent produces the situating context that accompanies each
// chunk into the vector store. The context is generated by an LLM that
// sees both the chunk and the document it came from, so that retrieval
// can match queries against meaning the raw chunk text alone does not
// carry.
package agent

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"ctxrag/internal/domain"
	"ctxrag/internal/text"
)

// Generator is the minimal LLM surface the agent needs. Both the
// Ollama and Gemini adapters satisfy it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DocumentWindow caps how much of the surrounding document is sent to
// the model on either side of the chunk. Whole small documents fit
// untouched; large ones are windowed so the prompt stays bounded.
const DocumentWindow = 8000

const promptTemplate = `<document>
%s
</document>

Here is the chunk we want to situate within the whole document:
<chunk>
%s
</chunk>

Please give a short succinct context to situate this chunk within the overall document for the purposes of improving search retrieval of the chunk. Answer only with the succinct context and nothing else.`

type ContextAgent struct {
	llm Generator
}

func NewContextAgent(llm Generator) *ContextAgent {
	return &ContextAgent{llm: llm}
}

// Contextualize asks the model for a one-or-two sentence description of
// where the chunk sits in the document. The returned string is stored
// alongside the chunk and prepended to it before embedding.
func (a *ContextAgent) Contextualize(ctx context.Context, document string, ch text.Chunk) (string, error) {
	prompt := fmt.Sprintf(promptTemplate, window(document, ch), ch.Text)

	out, err := a.llm.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: chunk %d of %s: %v", domain.ErrContextGeneration, ch.Ordinal, ch.DocID, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: chunk %d of %s: model returned an empty context", domain.ErrContextGeneration, ch.Ordinal, ch.DocID)
	}
	return out, nil
}

// window returns the document text surrounding the chunk, trimmed to
// DocumentWindow bytes per side and snapped to rune boundaries.
func window(document string, ch text.Chunk) string {
	start := ch.Start - DocumentWindow
	if start < 0 {
		start = 0
	}
	end := ch.End + DocumentWindow
	if end > len(document) {
		end = len(document)
	}
	for start > 0 && !utf8.RuneStart(document[start]) {
		start--
	}
	for end < len(document) && !utf8.RuneStart(document[end]) {
		end++
	}
	return document[start:end]
}
