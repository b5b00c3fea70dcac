package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestIngestCmd_RequiresInput(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("ingest")

	assert.EqualError(t, err, "nothing to ingest: pass files or --manifest")
}

func TestIngestCmd_Files(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	dir := t.TempDir()
	path := writeFile(t, dir, "Reglamento Convivencia.txt", "Artículo 1. Las faltas se sancionan.")

	out, err := execute("ingest", path, "--title", "Reglamento de Convivencia", "--url", "https://example.edu/rc.pdf")

	require.NoError(t, err)
	assert.Contains(t, out, "✓ reglamento_convivencia: 3 chunks")
	assert.Contains(t, out, "Ingested 1 of 1 documents.")

	require.Len(t, mocks.ingest.raws, 1)
	raw := mocks.ingest.raws[0]
	assert.Equal(t, "reglamento_convivencia", raw.DocID)
	assert.Equal(t, "Reglamento de Convivencia", raw.Title)
	assert.Equal(t, "https://example.edu/rc.pdf", raw.SourceURL)
	assert.Equal(t, "text/plain", raw.MIMEType)
	assert.False(t, raw.RetrievedAt.IsZero())
}

func TestIngestCmd_TitleNeedsSingleFile(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "a")
	b := writeFile(t, dir, "b.txt", "b")

	_, err := execute("ingest", a, b, "--title", "Uno")

	assert.EqualError(t, err, "--title and --url need exactly one file")
}

func TestIngestCmd_Manifest(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	dir := t.TempDir()
	writeFile(t, dir, "calendario.html", "<p>El semestre inicia en marzo.</p>")
	writeFile(t, dir, "vacio.txt", "   ")
	manifest := writeFile(t, dir, "sources.yaml", `documents:
  - id: calendario_2025
    title: Calendario Académico 2025
    path: calendario.html
    url: https://example.edu/calendario
  - id: vacio
    path: vacio.txt
`)
	mocks.ingest.failIDs = map[string]bool{"vacio": true}

	out, err := execute("ingest", "--manifest", manifest)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 documents failed")
	assert.Contains(t, out, "✓ calendario_2025: 3 chunks")
	assert.Contains(t, out, "✗ vacio:")
	assert.Contains(t, out, "Ingested 1 of 2 documents.")

	require.Len(t, mocks.ingest.raws, 2)
	assert.Equal(t, "text/html", mocks.ingest.raws[0].MIMEType)
	assert.Equal(t, "Calendario Académico 2025", mocks.ingest.raws[0].Title)
	assert.Equal(t, "vacio", mocks.ingest.raws[1].Title, "title defaults to the file name")
}

func TestIngestCmd_MissingFileFailsBeforeIngesting(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("ingest", filepath.Join(t.TempDir(), "missing.pdf"))

	require.Error(t, err)
	assert.Empty(t, mocks.ingest.raws)
}
