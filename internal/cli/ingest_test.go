package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentID(t *testing.T) {
	assert.Equal(t, "docs/a.md", documentID("docs/a.md", ""))
	assert.Equal(t, "docs/a.md", documentID("./docs//a.md", ""))
	assert.Equal(t, "handbook", documentID("docs/a.md", "handbook"))

	// same basename in different directories stays distinct
	assert.NotEqual(t, documentID("docs/a.md", ""), documentID("archive/a.md", ""))
}

func TestReadDocument_PlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.md")
	require.NoError(t, os.WriteFile(path, []byte("plain content"), 0o600))

	content, err := readDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "plain content", content)
}

func TestReadDocument_MissingFile(t *testing.T) {
	_, err := readDocument(filepath.Join(t.TempDir(), "absent.md"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.md")
}

func TestReadDocument_CorruptPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o600))

	_, err := readDocument(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.pdf")
}

func TestIngest_DocIDWithMultipleFiles(t *testing.T) {
	t.Cleanup(func() { ingestDocID = "" })
	_, err := execute(t, "ingest", "--doc-id", "handbook", "a.md", "b.md")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single file")
}
