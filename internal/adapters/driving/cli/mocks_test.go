package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/core/ports/driven"
	"github.com/custodia-labs/regula/internal/core/ports/driving"
)

type mockAskService struct {
	result   *domain.AskResult
	err      error
	question string
	opts     domain.AskOptions
}

func (m *mockAskService) Ask(_ context.Context, question string, opts domain.AskOptions) (*domain.AskResult, error) {
	m.question = question
	m.opts = opts
	return m.result, m.err
}

type mockRetrievalService struct {
	chunks []domain.RetrievedChunk
	err    error
	k      int
	rerank bool
}

func (m *mockRetrievalService) Retrieve(_ context.Context, _ string, k int, rerank bool) ([]domain.RetrievedChunk, error) {
	m.k = k
	m.rerank = rerank
	return m.chunks, m.err
}

type mockIngestService struct {
	raws     []domain.RawDocument
	failIDs  map[string]bool
	info     *domain.IndexInfo
	rebuilt  int
	rebuildE error
}

func (m *mockIngestService) Ingest(_ context.Context, raw *domain.RawDocument) ([]domain.Chunk, error) {
	m.raws = append(m.raws, *raw)
	return []domain.Chunk{{ID: domain.ChunkID(raw.DocID, 1, 0)}}, nil
}

func (m *mockIngestService) IngestAll(_ context.Context, raws []domain.RawDocument) domain.IngestReport {
	var report domain.IngestReport
	for _, raw := range raws {
		m.raws = append(m.raws, raw)
		if m.failIDs[raw.DocID] {
			report.Outcomes = append(report.Outcomes, domain.IngestOutcome{
				DocumentID: raw.DocID,
				Err:        &domain.IngestionError{DocumentID: raw.DocID, Reason: "no extractable text"},
			})
			continue
		}
		report.Outcomes = append(report.Outcomes, domain.IngestOutcome{DocumentID: raw.DocID, Chunks: 3})
	}
	return report
}

func (m *mockIngestService) Rebuild(_ context.Context) (int, error) {
	return m.rebuilt, m.rebuildE
}

func (m *mockIngestService) Info(_ context.Context) (*domain.IndexInfo, error) {
	if m.info == nil {
		return nil, errors.New("no index")
	}
	return m.info, nil
}

type mockEvaluationService struct {
	report    *domain.Report
	err       error
	questions []domain.GoldQuestion
	opts      domain.EvalOptions
}

func (m *mockEvaluationService) Run(_ context.Context, questions []domain.GoldQuestion, opts domain.EvalOptions) (*domain.Report, error) {
	m.questions = questions
	m.opts = opts
	return m.report, m.err
}

type mockDocumentService struct {
	documents []domain.Document
	details   *driving.DocumentDetails
	page      string
	err       error
	removed   string
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.Document, error) {
	if len(m.documents) == 0 {
		return nil, domain.ErrNotFound
	}
	return &m.documents[0], m.err
}

func (m *mockDocumentService) GetPage(_ context.Context, _ string, _ int) (string, error) {
	return m.page, m.err
}

func (m *mockDocumentService) GetDetails(_ context.Context, _ string) (*driving.DocumentDetails, error) {
	return m.details, m.err
}

func (m *mockDocumentService) Remove(_ context.Context, id string) error {
	m.removed = id
	return m.err
}

type mockSettingsService struct {
	settings domain.AppSettings
	mode     domain.AnswerMode
	provider domain.ProviderSettings
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(s *domain.AppSettings) error {
	m.settings = *s
	return nil
}

func (m *mockSettingsService) SetAnswerMode(mode domain.AnswerMode) error {
	m.mode = mode
	return nil
}

func (m *mockSettingsService) SetProvider(p domain.ProviderSettings) error {
	m.provider = p
	return nil
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

type mockProvider struct {
	id      string
	pingErr error
}

func (m *mockProvider) ID() string    { return m.id }
func (m *mockProvider) Model() string { return m.id + "-model" }
func (m *mockProvider) Generate(_ context.Context, _ driven.Prompt) (*driven.Generation, error) {
	return &driven.Generation{}, nil
}
func (m *mockProvider) Timeout() time.Duration       { return time.Second }
func (m *mockProvider) Ping(_ context.Context) error { return m.pingErr }
func (m *mockProvider) Close() error                 { return nil }

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	ask        *mockAskService
	retrieval  *mockRetrievalService
	ingest     *mockIngestService
	evaluation *mockEvaluationService
	document   *mockDocumentService
	settings   *mockSettingsService
}

var mocks *testServices

// setupTestServices installs mocks and returns a cleanup that restores
// the previous services and resets command flags.
func setupTestServices() func() {
	mocks = &testServices{
		ask: &mockAskService{result: &domain.AskResult{
			Mode:    domain.AnswerModeSingle,
			Outcome: domain.OutcomeAnswered,
			Answers: []domain.Answer{{
				ProviderID: "chatgpt",
				Text:       "El primer semestre inicia el 10 de marzo [Calendario Académico 2025, página 2].",
				Citations: []domain.Citation{{
					DocumentID:    "calendario_2025",
					DocumentTitle: "Calendario Académico 2025",
					Locator:       "página 2",
					SourceURL:     "https://example.edu/calendario.pdf",
				}},
				LatencyMS:  420,
				TokenUsage: domain.TokenUsage{Prompt: 100, Completion: 20},
			}},
		}},
		retrieval: &mockRetrievalService{chunks: []domain.RetrievedChunk{{
			ChunkID:       "calendario_2025_p2_c0",
			DocumentID:    "calendario_2025",
			DocumentTitle: "Calendario Académico 2025",
			Locator:       "página 2",
			Score:         0.87,
			Text:          "El primer semestre inicia sus clases el 10 de marzo.",
		}}},
		ingest: &mockIngestService{
			info: &domain.IndexInfo{
				Stamp:     domain.IndexStamp{EmbeddingModel: "hash-v1", Dimensions: 384},
				Vectors:   42,
				Documents: 3,
			},
			rebuilt: 42,
		},
		evaluation: &mockEvaluationService{},
		document:   &mockDocumentService{},
		settings:   &mockSettingsService{settings: domain.DefaultAppSettings()},
	}

	saved := []any{settingsService, askService, retrievalService, ingestService, evaluationService,
		documentService, providerAdapters, unavailableProviders, metricsHandler, serviceFactory}

	settingsService = mocks.settings
	askService = mocks.ask
	retrievalService = mocks.retrieval
	ingestService = mocks.ingest
	evaluationService = mocks.evaluation
	documentService = mocks.document
	providerAdapters = []driven.ProviderAdapter{&mockProvider{id: "chatgpt"}, &mockProvider{id: "deepseek"}}
	unavailableProviders = map[string]string{"gemini": "missing API key: set GEMINI_API_KEY"}
	metricsHandler = http.NotFoundHandler()
	serviceFactory = nil

	return func() {
		settingsService, _ = saved[0].(driving.SettingsService)
		askService, _ = saved[1].(driving.AskService)
		retrievalService, _ = saved[2].(driving.RetrievalService)
		ingestService, _ = saved[3].(driving.IngestService)
		evaluationService, _ = saved[4].(driving.EvaluationService)
		documentService, _ = saved[5].(driving.DocumentService)
		providerAdapters, _ = saved[6].([]driven.ProviderAdapter)
		unavailableProviders, _ = saved[7].(map[string]string)
		metricsHandler, _ = saved[8].(http.Handler)
		serviceFactory, _ = saved[9].(ServiceFactory)
		resetFlags()
		mocks = nil
	}
}

func resetFlags() {
	askMode, askProviders, askTopK, askJSON = "", nil, 0, false
	retrieveLimit, retrieveRerank, retrieveJSON = 0, false, false
	ingestManifest, ingestTitle, ingestURL = "", "", ""
	evalGold, evalProviders, evalConcurrency, evalOutput, evalJSON = "", nil, 0, "", false
	dataDir, verbose, envFile = "", false, ""
	resetChanged(rootCmd)
}

// resetChanged clears the Changed mark so required-flag checks run again.
func resetChanged(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	c.PersistentFlags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	for _, sub := range c.Commands() {
		resetChanged(sub)
	}
}

// execute runs the root command with args and returns its output.
func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}
