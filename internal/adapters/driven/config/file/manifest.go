package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/lexical"
)

// SourceEntry describes one document to ingest.
type SourceEntry struct {
	ID            string    `yaml:"id"`
	Title         string    `yaml:"title"`
	Path          string    `yaml:"path"`
	URL           string    `yaml:"url"`
	EffectiveDate string    `yaml:"effective_date"`
	RetrievedAt   time.Time `yaml:"retrieved_at"`
	MIMEType      string    `yaml:"mime_type"`
}

// SourceManifest lists the documents of a corpus.
type SourceManifest struct {
	Documents []SourceEntry `yaml:"documents"`

	dir string
}

// LoadSourceManifest reads a sources.yaml file. Relative document paths are
// resolved against the manifest's directory.
func LoadSourceManifest(path string) (*SourceManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m SourceManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parse manifest %s: %v", domain.ErrInvalidInput, path, err)
	}
	m.dir = filepath.Dir(path)

	seen := make(map[string]bool, len(m.Documents))
	for i, d := range m.Documents {
		if d.Path == "" {
			return nil, fmt.Errorf("%w: manifest entry %d has no path", domain.ErrInvalidInput, i+1)
		}
		if d.ID == "" {
			m.Documents[i].ID = DocumentIDFromPath(d.Path)
		}
		id := m.Documents[i].ID
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate document id %q in manifest", domain.ErrInvalidInput, id)
		}
		seen[id] = true
	}
	return &m, nil
}

// Resolve returns the absolute-or-manifest-relative path of an entry.
func (m *SourceManifest) Resolve(e SourceEntry) string {
	if filepath.IsAbs(e.Path) || m.dir == "" {
		return e.Path
	}
	return filepath.Join(m.dir, e.Path)
}

// ReadDocument loads an entry's file into a raw document.
func (m *SourceManifest) ReadDocument(e SourceEntry) (domain.RawDocument, error) {
	path := m.Resolve(e)
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.RawDocument{}, &domain.IngestionError{DocumentID: e.ID, Reason: "read source", Err: err}
	}
	retrieved := e.RetrievedAt
	if retrieved.IsZero() {
		if info, statErr := os.Stat(path); statErr == nil {
			retrieved = info.ModTime().UTC()
		}
	}
	return domain.RawDocument{
		DocID:         e.ID,
		Title:         e.Title,
		SourceURL:     e.URL,
		URI:           path,
		RetrievedAt:   retrieved,
		EffectiveDate: e.EffectiveDate,
		MIMEType:      e.MIMEType,
		Content:       content,
	}, nil
}

// DocumentIDFromPath derives a document id from a file name:
// "Reglamento Convivencia.pdf" becomes "reglamento_convivencia".
// Accents are folded, so "Titulación" becomes "titulacion".
func DocumentIDFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range lexical.Fold(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore && b.Len() > 0:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

type goldFile struct {
	Questions []goldQuestion `yaml:"questions"`
}

type goldQuestion struct {
	ID              string   `yaml:"id"`
	Question        string   `yaml:"question"`
	ExpectedAnswer  string   `yaml:"expected_answer"`
	ExpectedSources []string `yaml:"expected_sources"`
	ExpectedChunks  []string `yaml:"expected_chunks"`
	Category        string   `yaml:"category"`
	Difficulty      string   `yaml:"difficulty"`
}

// LoadGoldSet reads a gold.yaml evaluation set.
// Questions without an id are numbered q1, q2, ... by position.
func LoadGoldSet(path string) ([]domain.GoldQuestion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gold set: %w", err)
	}

	var f goldFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parse gold set %s: %v", domain.ErrInvalidInput, path, err)
	}

	out := make([]domain.GoldQuestion, 0, len(f.Questions))
	for i, q := range f.Questions {
		if strings.TrimSpace(q.Question) == "" {
			return nil, fmt.Errorf("%w: gold question %d is empty", domain.ErrInvalidInput, i+1)
		}
		id := q.ID
		if id == "" {
			id = fmt.Sprintf("q%d", i+1)
		}
		out = append(out, domain.GoldQuestion{
			ID:              id,
			Question:        q.Question,
			ExpectedAnswer:  q.ExpectedAnswer,
			ExpectedSources: q.ExpectedSources,
			ExpectedChunks:  q.ExpectedChunks,
			Category:        q.Category,
			Difficulty:      q.Difficulty,
		})
	}
	return out, nil
}
