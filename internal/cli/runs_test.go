package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuns_RequiresRegistry(t *testing.T) {
	_, err := execute(t, "runs", "handbook.md")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_HOST")
}

func TestRuns_RequiresDocID(t *testing.T) {
	_, err := execute(t, "runs")
	require.Error(t, err)
}
