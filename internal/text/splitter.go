// Package text implements deterministic, size-bounded document splitting.
package text

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"ctxrag/internal/domain"
)

// Chunk is a contiguous slice of a document. Text is a substring of the
// original content (content[Start:End]), so splitting does not copy the
// document.
type Chunk struct {
	DocID   string
	Ordinal int
	Start   int // byte offset into the document, inclusive
	End     int // byte offset, exclusive
	Text    string
}

// Splitter cuts a document into chunks of at most MaxChunkSize bytes,
// preferring line and sentence boundaries. Overlap is the number of
// trailing bytes of a chunk repeated at the start of the next one.
//
// Internally the document is segmented into non-overlapping pieces of at
// most MaxChunkSize-Overlap bytes; each chunk is its piece prefixed with
// the Overlap tail of the previous piece. Chunk ends therefore advance
// strictly, and concatenating the non-overlapping portions reproduces
// the document exactly.
type Splitter struct {
	MaxChunkSize int
	Overlap      int
}

// Split returns the ordered chunks of content. The same input always
// yields the same boundaries. An empty document yields no chunks and no
// error.
func (s Splitter) Split(docID, content string) ([]Chunk, error) {
	if s.MaxChunkSize <= 0 {
		return nil, fmt.Errorf("%w: max chunk size must be positive, got %d", domain.ErrBadConfig, s.MaxChunkSize)
	}
	if s.Overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", domain.ErrBadConfig, s.Overlap)
	}
	if s.Overlap >= s.MaxChunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than max chunk size %d",
			domain.ErrBadConfig, s.Overlap, s.MaxChunkSize)
	}
	if content == "" {
		return nil, nil
	}
	if len(content) <= s.MaxChunkSize {
		return []Chunk{{DocID: docID, Start: 0, End: len(content), Text: content}}, nil
	}

	body := s.MaxChunkSize - s.Overlap

	var chunks []Chunk
	prevEnd := 0
	for ordinal := 0; ; ordinal++ {
		end := len(content)
		if end-prevEnd > body {
			end = prevEnd + cut(content[prevEnd:prevEnd+body])
			// Keep the cut on a rune boundary.
			for end > prevEnd+1 && !utf8.RuneStart(content[end]) {
				end--
			}
		}

		start := prevEnd - s.Overlap
		if start < 0 {
			start = 0
		}
		for start < prevEnd && !utf8.RuneStart(content[start]) {
			start++
		}

		chunks = append(chunks, Chunk{
			DocID:   docID,
			Ordinal: ordinal,
			Start:   start,
			End:     end,
			Text:    content[start:end],
		})

		if end == len(content) {
			return chunks, nil
		}
		prevEnd = end
	}
}

// cut picks the boundary for a full window, scanning backwards for a line
// end, then a sentence end, then any whitespace. Falls back to a hard cut.
func cut(window string) int {
	for i := len(window) - 1; i > 0; i-- {
		c := window[i]
		if c == '\n' {
			return i + 1
		}
		if (c == '.' || c == '!' || c == '?') && i+1 < len(window) && (window[i+1] == ' ' || window[i+1] == '\t') {
			return i + 2
		}
	}
	if i := strings.LastIndexFunc(window, unicode.IsSpace); i > 0 {
		return i + 1
	}
	return len(window)
}
