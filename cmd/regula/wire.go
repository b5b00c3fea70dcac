package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/regula/internal/adapters/driven/ai"
	"github.com/custodia-labs/regula/internal/adapters/driven/config/file"
	"github.com/custodia-labs/regula/internal/adapters/driven/metrics"
	"github.com/custodia-labs/regula/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/regula/internal/adapters/driven/vectorindex/flat"
	"github.com/custodia-labs/regula/internal/adapters/driving/cli"
	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/core/ports/driven"
	"github.com/custodia-labs/regula/internal/core/services"
	"github.com/custodia-labs/regula/internal/logger"
	"github.com/custodia-labs/regula/internal/normalisers"
	"github.com/custodia-labs/regula/internal/normalisers/html"
	"github.com/custodia-labs/regula/internal/normalisers/pdf"
	"github.com/custodia-labs/regula/internal/normalisers/plaintext"
	"github.com/custodia-labs/regula/internal/postprocessors"
)

// buildServices wires the application from the settings in the data directory.
func buildServices(ctx context.Context, opts cli.Options) (*cli.Services, error) {
	root, err := dataRoot(opts.DataDir)
	if err != nil {
		return nil, err
	}

	configStore, err := file.NewConfigStore(root)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore)
	settings, err := settingsService.Get()
	if err != nil {
		return nil, err
	}

	embedder, err := ai.CreateEmbeddingService(settings.Embedding)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.NewStore(filepath.Join(root, "data"))
	if err != nil {
		embedder.Close()
		return nil, err
	}

	closers := []func(){func() { store.Close() }, func() { embedder.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	index, err := loadIndex(ctx, store.IndexStore(), embedder, opts.FreshIndex)
	if err != nil {
		closeAll()
		return nil, err
	}

	prompts, err := file.NewPromptStore(filepath.Join(root, "prompts"))
	if err != nil {
		closeAll()
		return nil, err
	}
	pipeline, err := postprocessors.NewDefaultPipeline(settings.Chunking)
	if err != nil {
		closeAll()
		return nil, err
	}
	registry := normalisers.NewRegistry(plaintext.New(), html.New(), pdf.New())
	recorder := metrics.NewRecorder()

	providers := ai.CreateProviders(enabledProviders(settings))
	closers = append(closers, providers.Close)
	for _, id := range settings.Answering.Providers {
		if _, ok := settings.Provider(id); !ok {
			providers.Unavailable[id] = "not configured"
		}
	}
	for id, reason := range providers.Unavailable {
		logger.Debug("Provider %s unavailable: %s", id, reason)
	}

	retriever := services.NewRetriever(index, embedder, store.DocumentStore(),
		services.LexicalReranker{Keep: settings.Retrieval.RerankKeep})
	orchestrator := services.NewOrchestrator(retriever, prompts, providers.Adapters, services.OrchestratorConfig{
		Retrieval: settings.Retrieval,
		Answering: settings.Answering,
	})
	orchestrator.SetMetrics(recorder)
	orchestrator.SetUnavailable(providers.Unavailable)

	ingest := services.NewIngestService(registry, pipeline, store.DocumentStore(), embedder, index, store.IndexStore())
	ingest.SetMetrics(recorder)

	evaluator := services.NewEvaluator(orchestrator, services.EvaluatorConfig{
		Providers:         orchestrator.ProviderIDs(),
		Concurrency:       settings.Evaluation.Concurrency,
		SemanticThreshold: settings.Evaluation.SemanticThreshold,
	})

	return &cli.Services{
		Settings:    settingsService,
		Ask:         orchestrator,
		Retrieval:   orchestrator,
		Ingest:      ingest,
		Evaluation:  evaluator,
		Document:    services.NewDocumentService(store.DocumentStore(), index, store.IndexStore(), embedder),
		Providers:   providers.Adapters,
		Unavailable: providers.Unavailable,
		Metrics:     recorder.Handler(),
		Close:       closeAll,
	}, nil
}

func dataRoot(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".regula"), nil
}

// loadIndex restores the persisted index. An index built by another
// embedding function is kept under its own stamp so queries fail with
// ErrEmbeddingMismatch, unless fresh asks for an empty index to rebuild into.
func loadIndex(
	ctx context.Context,
	store driven.IndexStore,
	embedder driven.EmbeddingService,
	fresh bool,
) (*flat.Index, error) {
	stamp := domain.IndexStamp{EmbeddingModel: embedder.ModelName(), Dimensions: embedder.Dimensions()}

	snap, err := store.LoadIndex(ctx, stamp)
	var mismatch *domain.IndexVersionMismatchError
	switch {
	case errors.As(err, &mismatch) && fresh:
		logger.Info("Starting a fresh index for %s", stamp)
		return flat.New(stamp)
	case errors.As(err, &mismatch):
		logger.Warn("%v", mismatch)
		return flat.New(mismatch.Stored)
	case err != nil:
		return nil, fmt.Errorf("loading index: %w", err)
	}
	return flat.Restore(snap)
}

// enabledProviders returns the providers named in answering.providers, in
// that order.
func enabledProviders(settings *domain.AppSettings) []domain.ProviderSettings {
	out := make([]domain.ProviderSettings, 0, len(settings.Answering.Providers))
	for _, id := range settings.Answering.Providers {
		if p, ok := settings.Provider(id); ok {
			out = append(out, p)
		}
	}
	return out
}
