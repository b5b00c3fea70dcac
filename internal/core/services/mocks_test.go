package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/regula/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/regula/internal/adapters/driven/vectorindex/flat"
	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/core/ports/driven"
	"github.com/custodia-labs/regula/internal/lexical"
)

// topicEmbedder maps text onto three topic axes so tests control similarity.
type topicEmbedder struct {
	model string
	err   error
	short bool
}

var topicAxes = [][]string{
	{"convivencia", "conducta", "sancion"},
	{"calendario", "semestre", "clases"},
	{"matricula", "inscripcion", "arancel"},
}

func (m *topicEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	vec := []float32{0.05, 0.05, 0.05}
	for _, w := range lexical.Words(text) {
		for axis, words := range topicAxes {
			for _, tw := range words {
				if w == tw {
					vec[axis]++
				}
			}
		}
	}
	if m.short {
		return vec[:2], nil
	}
	return vec, nil
}

func (m *topicEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *topicEmbedder) Dimensions() int { return 3 }

func (m *topicEmbedder) ModelName() string {
	if m.model == "" {
		return "topic-v1"
	}
	return m.model
}

func (m *topicEmbedder) Ping(_ context.Context) error { return nil }
func (m *topicEmbedder) Close() error                 { return nil }

var topicStamp = domain.IndexStamp{EmbeddingModel: "topic-v1", Dimensions: 3}

// mockProvider answers with fixed text or a fixed error.
type mockProvider struct {
	id      string
	text    string
	err     error
	timeout time.Duration
	delay   time.Duration
	block   bool          // wait for ctx cancellation
	started chan struct{} // closed-over barrier for concurrency tests
	release chan struct{}
	usage   domain.TokenUsage
	calls   atomic.Int32

	mu      sync.Mutex
	prompts []driven.Prompt
}

func (m *mockProvider) ID() string    { return m.id }
func (m *mockProvider) Model() string { return m.id + "-model" }

func (m *mockProvider) Timeout() time.Duration {
	if m.timeout == 0 {
		return time.Second
	}
	return m.timeout
}

func (m *mockProvider) Generate(ctx context.Context, prompt driven.Prompt) (*driven.Generation, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return nil, &domain.ProviderError{Provider: m.id, Kind: domain.ProviderErrorTimeout, Err: ctx.Err()}
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.block {
		<-ctx.Done()
		return nil, &domain.ProviderError{Provider: m.id, Kind: domain.ProviderErrorTimeout, Err: ctx.Err()}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &driven.Generation{Text: m.text, Usage: m.usage, CostUSD: 0.001}, nil
}

func (m *mockProvider) Ping(_ context.Context) error { return nil }
func (m *mockProvider) Close() error                 { return nil }

func (m *mockProvider) lastPrompt() driven.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prompts[len(m.prompts)-1]
}

func providerErr(id string, kind domain.ProviderErrorKind) error {
	return &domain.ProviderError{Provider: id, Kind: kind}
}

// staticPrompts serves the built-in prompt shapes.
type staticPrompts struct{}

func (staticPrompts) Load(name string) (string, error) {
	switch name {
	case driven.PromptGroundedSystem:
		return `Cita con [Título, página N]. Si no sabes, responde "%s"`, nil
	case driven.PromptGroundedUser:
		return "CONTEXTO:\n%s\n\nPREGUNTA: %s", nil
	}
	return "", domain.ErrNotFound
}

func (staticPrompts) Reload() {}

// recordingMetrics counts calls for assertions.
type recordingMetrics struct {
	mu         sync.Mutex
	outcomes   []string
	calls      map[string]int
	violations int
	chunks     int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{calls: map[string]int{}}
}

func (m *recordingMetrics) QueryFinished(mode, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, mode+":"+outcome)
}

func (m *recordingMetrics) ProviderCall(provider, kind string, _ time.Duration, _ int, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[provider+"/"+kind]++
}

func (m *recordingMetrics) GroundingViolation(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations++
}

func (m *recordingMetrics) ChunksIngested(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks += n
}

// corpusDoc is one seeded document; each entry of pages becomes one chunk.
type corpusDoc struct {
	id    string
	title string
	pages []string
}

// seedCorpus stores documents and indexes one chunk per page.
func seedCorpus(t *testing.T, docs ...corpusDoc) (*memory.DocumentStore, *flat.Index) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewDocumentStore()
	index, err := flat.New(topicStamp)
	require.NoError(t, err)
	embedder := &topicEmbedder{}

	for _, d := range docs {
		doc := &domain.Document{ID: d.id, Title: d.title, SourceURL: "https://example.edu/" + d.id}
		var chunks []domain.Chunk
		for i, text := range d.pages {
			start := len(doc.Text)
			doc.Text += text
			doc.Pages = append(doc.Pages, domain.Page{Number: i + 1, Start: start, End: len(doc.Text)})
			chunks = append(chunks, domain.Chunk{
				ID:         domain.ChunkID(d.id, i+1, 0),
				DocumentID: d.id,
				Text:       text,
				Page:       i + 1,
				Offset:     start,
				Position:   i,
			})
		}
		require.NoError(t, store.ReplaceDocument(ctx, doc, chunks))
		for _, c := range chunks {
			vec, _ := embedder.Embed(ctx, c.Text)
			require.NoError(t, index.Add(ctx, []domain.IndexEntry{{ChunkID: c.ID, Vector: vec}}))
		}
	}
	return store, index
}

var (
	convivenciaDoc = corpusDoc{
		id:    "reglamento_convivencia",
		title: "Reglamento de Convivencia",
		pages: []string{"Las faltas a la convivencia y la conducta se sancionan según su gravedad."},
	}
	calendarioDoc = corpusDoc{
		id:    "calendario_2025",
		title: "Calendario Académico 2025",
		pages: []string{
			"Presentación del calendario.",
			"El primer semestre inicia sus clases el 10 de marzo según el calendario.",
		},
	}
)

func defaultOrchestratorConfig() OrchestratorConfig {
	s := domain.DefaultAppSettings()
	return OrchestratorConfig{Retrieval: s.Retrieval, Answering: s.Answering}
}

func newTestOrchestrator(
	t *testing.T, cfg OrchestratorConfig, providers []driven.ProviderAdapter, docs ...corpusDoc,
) (*Orchestrator, *recordingMetrics) {
	t.Helper()
	store, index := seedCorpus(t, docs...)
	retriever := NewRetriever(index, &topicEmbedder{}, store, LexicalReranker{Keep: cfg.Retrieval.RerankKeep})
	o := NewOrchestrator(retriever, staticPrompts{}, providers, cfg)
	metrics := newRecordingMetrics()
	o.SetMetrics(metrics)
	return o, metrics
}

func retrievedSet(r *domain.AskResult) map[string]bool {
	set := make(map[string]bool)
	for _, id := range r.RetrievedIDs() {
		set[id] = true
	}
	return set
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
