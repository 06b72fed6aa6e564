package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctxrag/internal/domain"
)

// reconstruct concatenates the non-overlapping portion of every chunk.
func reconstruct(chunks []Chunk) string {
	var b strings.Builder
	prevEnd := 0
	for _, c := range chunks {
		b.WriteString(c.Text[prevEnd-c.Start:])
		prevEnd = c.End
	}
	return b.String()
}

func TestSplit_Empty(t *testing.T) {
	chunks, err := Splitter{MaxChunkSize: 100}.Split("doc", "")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplit_ShortDocument(t *testing.T) {
	chunks, err := Splitter{MaxChunkSize: 100}.Split("doc", "just one sentence.")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "just one sentence.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Ordinal)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 18, chunks[0].End)
}

func TestSplit_ConfigErrors(t *testing.T) {
	_, err := Splitter{MaxChunkSize: 0}.Split("doc", "text")
	assert.ErrorIs(t, err, domain.ErrBadConfig)

	_, err = Splitter{MaxChunkSize: 10, Overlap: 10}.Split("doc", "text")
	assert.ErrorIs(t, err, domain.ErrBadConfig)

	_, err = Splitter{MaxChunkSize: 10, Overlap: -1}.Split("doc", "text")
	assert.ErrorIs(t, err, domain.ErrBadConfig)
}

func TestSplit_Reconstruction(t *testing.T) {
	docs := []string{
		"First sentence. Second sentence! Third one? And a fourth that keeps going for a while.",
		strings.Repeat("word ", 200),
		"line one\nline two\nline three\n\nparagraph two starts here and runs on",
		strings.Repeat("x", 157), // no boundaries at all
	}

	for _, content := range docs {
		for _, overlap := range []int{0, 5, 19} {
			s := Splitter{MaxChunkSize: 40, Overlap: overlap}
			chunks, err := s.Split("doc", content)
			require.NoError(t, err)
			require.NotEmpty(t, chunks)

			assert.Equal(t, content, reconstruct(chunks))
			assert.Equal(t, 0, chunks[0].Start)
			assert.Equal(t, len(content), chunks[len(chunks)-1].End)

			for i, c := range chunks {
				assert.Equal(t, i, c.Ordinal)
				assert.Equal(t, content[c.Start:c.End], c.Text)
				assert.LessOrEqual(t, len(c.Text), s.MaxChunkSize)
				if i > 0 {
					// contiguous coverage, allowing overlap
					assert.LessOrEqual(t, c.Start, chunks[i-1].End)
					assert.Greater(t, c.End, chunks[i-1].End)
				}
			}
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	content := strings.Repeat("Some sentences here. More text follows! ", 30)
	s := Splitter{MaxChunkSize: 64, Overlap: 8}

	first, err := s.Split("doc", content)
	require.NoError(t, err)
	second, err := s.Split("doc", content)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSplit_PrefersSentenceBoundary(t *testing.T) {
	content := "A short sentence. " + strings.Repeat("y", 60)
	chunks, err := Splitter{MaxChunkSize: 40}.Split("doc", content)
	require.NoError(t, err)
	require.True(t, len(chunks) >= 2)
	assert.Equal(t, "A short sentence. ", chunks[0].Text)
}

func TestSplit_PrefersLineBoundary(t *testing.T) {
	content := "heading\n" + strings.Repeat("z", 60)
	chunks, err := Splitter{MaxChunkSize: 40}.Split("doc", content)
	require.NoError(t, err)
	require.True(t, len(chunks) >= 2)
	assert.Equal(t, "heading\n", chunks[0].Text)
}

func TestSplit_Overlap(t *testing.T) {
	content := strings.Repeat("a", 100)
	chunks, err := Splitter{MaxChunkSize: 30, Overlap: 10}.Split("doc", content)
	require.NoError(t, err)
	require.True(t, len(chunks) >= 2)
	assert.Equal(t, chunks[0].End-10, chunks[1].Start)
	assert.Equal(t, content, reconstruct(chunks))
}

func TestSplit_MultibyteSafe(t *testing.T) {
	content := strings.Repeat("čřžýáí", 40) // 12 bytes per repetition
	chunks, err := Splitter{MaxChunkSize: 50, Overlap: 7}.Split("doc", content)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.True(t, strings.HasPrefix(content[c.Start:], c.Text))
		assert.LessOrEqual(t, len(c.Text), 50)
		// no rune split across a chunk boundary
		assert.Equal(t, c.Text, string([]rune(c.Text)))
	}
	assert.Equal(t, content, reconstruct(chunks))
}
