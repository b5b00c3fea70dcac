package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/regula/internal/core/domain"
)

func TestRetrieveCmd_HasLimitFlag(t *testing.T) {
	flag := retrieveCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "limit flag should exist")
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)
}

func TestRetrieveCmd_PrintsPassages(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("retrieve", "--limit", "3", "--rerank", "semestre")

	require.NoError(t, err)
	assert.Contains(t, out, "[1] Calendario Académico 2025, página 2 (0.87)")
	assert.Contains(t, out, "10 de marzo")
	assert.Equal(t, 3, mocks.retrieval.k)
	assert.True(t, mocks.retrieval.rerank)
}

func TestRetrieveCmd_NoResults(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mocks.retrieval.chunks = nil

	out, err := execute("retrieve", "semestre")

	require.NoError(t, err)
	assert.Contains(t, out, "No passages found.")
}

func TestRetrieveCmd_JSON(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("retrieve", "--json", "semestre")

	require.NoError(t, err)
	assert.Contains(t, out, `"chunk_id": "calendario_2025_p2_c0"`)
}

func TestRetrieveCmd_Error(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mocks.retrieval.err = domain.ErrEmbeddingMismatch

	_, err := execute("retrieve", "semestre")

	assert.ErrorIs(t, err, domain.ErrEmbeddingMismatch)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b c", snippet("a\n b\t\tc", 10))
	assert.Equal(t, "ñandú...", snippet("ñandú "+strings.Repeat("x", 20), 5))
}
