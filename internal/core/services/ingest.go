package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/core/ports/driven"
	"github.com/custodia-labs/regula/internal/core/ports/driving"
	"github.com/custodia-labs/regula/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestService normalises, chunks, stores and embeds documents.
type IngestService struct {
	normalisers driven.NormaliserRegistry
	pipeline    driven.PostProcessorPipeline
	docStore    driven.DocumentStore
	embedder    driven.EmbeddingService
	index       driven.VectorIndex
	indexStore  driven.IndexStore
	metrics     driven.Metrics
}

// NewIngestService creates a new ingest service.
func NewIngestService(
	normalisers driven.NormaliserRegistry,
	pipeline driven.PostProcessorPipeline,
	docStore driven.DocumentStore,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	indexStore driven.IndexStore,
) *IngestService {
	return &IngestService{
		normalisers: normalisers,
		pipeline:    pipeline,
		docStore:    docStore,
		embedder:    embedder,
		index:       index,
		indexStore:  indexStore,
		metrics:     nopMetrics{},
	}
}

// SetMetrics sets the metrics recorder.
func (s *IngestService) SetMetrics(m driven.Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// Ingest ingests one document and persists the index.
func (s *IngestService) Ingest(ctx context.Context, raw *domain.RawDocument) ([]domain.Chunk, error) {
	chunks, err := s.ingest(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	return chunks, nil
}

// IngestAll ingests every document, collecting per-document outcomes.
// The index is persisted once at the end.
func (s *IngestService) IngestAll(ctx context.Context, raws []domain.RawDocument) domain.IngestReport {
	logger.Section("Ingest")
	var report domain.IngestReport
	for i := range raws {
		chunks, err := s.ingest(ctx, &raws[i])
		if err != nil {
			logger.Warn("Skipping %s: %v", raws[i].DocID, err)
		}
		report.Outcomes = append(report.Outcomes, domain.IngestOutcome{
			DocumentID: raws[i].DocID,
			Chunks:     len(chunks),
			Err:        err,
		})
	}
	if report.Succeeded() > 0 {
		if err := s.persist(ctx); err != nil {
			report.Outcomes = append(report.Outcomes, domain.IngestOutcome{Err: err})
		}
	}
	return report
}

func (s *IngestService) ingest(ctx context.Context, raw *domain.RawDocument) ([]domain.Chunk, error) {
	if strings.TrimSpace(raw.DocID) == "" {
		return nil, &domain.IngestionError{Reason: "missing document id", Err: domain.ErrInvalidInput}
	}
	if err := checkStamp(s.embedder, s.index.Stamp()); err != nil {
		return nil, err
	}

	normaliser, err := s.normalisers.Get(raw.MIMEType)
	if err != nil {
		return nil, &domain.IngestionError{DocumentID: raw.DocID, Reason: "no normaliser", Err: err}
	}
	doc, err := normaliser.Normalise(ctx, raw)
	if err != nil {
		var ie *domain.IngestionError
		if errors.As(err, &ie) {
			return nil, err
		}
		return nil, &domain.IngestionError{DocumentID: raw.DocID, Reason: "extract text", Err: err}
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, &domain.IngestionError{DocumentID: raw.DocID, Reason: "no extractable text"}
	}
	doc.IngestedAt = time.Now()

	chunks, err := s.pipeline.Process(ctx, doc)
	if err != nil {
		return nil, &domain.IngestionError{DocumentID: raw.DocID, Reason: "chunk", Err: err}
	}
	if len(chunks) == 0 {
		return nil, &domain.IngestionError{DocumentID: raw.DocID, Reason: "no chunks produced"}
	}

	if err := s.embed(ctx, chunks); err != nil {
		return nil, &domain.IngestionError{DocumentID: raw.DocID, Reason: "embed", Err: err}
	}

	prevDoc, previous, err := s.current(ctx, doc.ID)
	if err != nil {
		return nil, &domain.IngestionError{DocumentID: raw.DocID, Reason: "load previous version", Err: err}
	}
	if err := s.docStore.ReplaceDocument(ctx, doc, chunks); err != nil {
		return nil, &domain.IngestionError{DocumentID: raw.DocID, Reason: "store", Err: err}
	}

	if err := s.index.Add(ctx, indexEntries(chunks)); err != nil {
		s.restore(ctx, doc.ID, prevDoc, previous)
		return nil, &domain.IngestionError{DocumentID: raw.DocID, Reason: "index", Err: err}
	}
	if err := s.index.Delete(ctx, staleIDs(previous, chunks)); err != nil {
		return nil, &domain.IngestionError{DocumentID: raw.DocID, Reason: "drop stale vectors", Err: err}
	}

	s.metrics.ChunksIngested(len(chunks))
	logger.Debug("Ingested %s: %d pages, %d chunks", doc.ID, len(doc.PageList()), len(chunks))
	return chunks, nil
}

// current returns the stored version of a document, or nils when there is none.
func (s *IngestService) current(ctx context.Context, id string) (*domain.Document, []domain.Chunk, error) {
	doc, err := s.docStore.GetDocument(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	chunks, err := s.docStore.GetChunks(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, err
	}
	return doc, chunks, nil
}

// restore puts back the stored version after the index refused the new one,
// so the store never holds chunks the index lacks.
func (s *IngestService) restore(ctx context.Context, id string, prev *domain.Document, chunks []domain.Chunk) {
	var err error
	if prev == nil {
		err = s.docStore.DeleteDocument(ctx, id)
	} else {
		err = s.docStore.ReplaceDocument(ctx, prev, chunks)
	}
	if err != nil {
		logger.Error("Restoring %s after index failure: %v", id, err)
	}
}

// embed sets the embedding of every chunk. Every vector must have the
// index's dimensions before anything is stored.
func (s *IngestService) embed(ctx context.Context, chunks []domain.Chunk) error {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	dims := s.index.Stamp().Dimensions
	for i := range chunks {
		if len(vectors[i]) != dims {
			return fmt.Errorf("%w: chunk %s embedded to %d dimensions, index has %d",
				domain.ErrEmbeddingMismatch, chunks[i].ID, len(vectors[i]), dims)
		}
		chunks[i].Embedding = vectors[i]
	}
	return nil
}

// staleIDs returns ids of previous chunks that the new version no longer has.
func staleIDs(previous, current []domain.Chunk) []string {
	keep := make(map[string]bool, len(current))
	for _, c := range current {
		keep[c.ID] = true
	}
	var stale []string
	for _, c := range previous {
		if !keep[c.ID] {
			stale = append(stale, c.ID)
		}
	}
	return stale
}

func indexEntries(chunks []domain.Chunk) []domain.IndexEntry {
	entries := make([]domain.IndexEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = domain.IndexEntry{ChunkID: c.ID, Vector: c.Embedding}
	}
	return entries
}

func (s *IngestService) persist(ctx context.Context) error {
	if s.indexStore == nil {
		return nil
	}
	if err := s.indexStore.SaveIndex(ctx, s.index.Snapshot()); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}

// Rebuild re-embeds every stored chunk and replaces the index contents.
func (s *IngestService) Rebuild(ctx context.Context) (int, error) {
	logger.Section("Index Rebuild")
	if err := checkStamp(s.embedder, s.index.Stamp()); err != nil {
		return 0, err
	}

	snap := s.index.Snapshot()
	old := make([]string, len(snap.Entries))
	for i, e := range snap.Entries {
		old[i] = e.ChunkID
	}
	if err := s.index.Delete(ctx, old); err != nil {
		return 0, fmt.Errorf("clear index: %w", err)
	}

	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}

	total := 0
	for _, doc := range docs {
		chunks, err := s.docStore.GetChunks(ctx, doc.ID)
		if err != nil {
			return total, fmt.Errorf("load chunks of %s: %w", doc.ID, err)
		}
		if len(chunks) == 0 {
			continue
		}
		if err := s.embed(ctx, chunks); err != nil {
			return total, fmt.Errorf("embed %s: %w", doc.ID, err)
		}
		if err := s.index.Add(ctx, indexEntries(chunks)); err != nil {
			return total, fmt.Errorf("index %s: %w", doc.ID, err)
		}
		total += len(chunks)
		logger.Debug("Re-embedded %s: %d chunks", doc.ID, len(chunks))
	}

	if err := s.persist(ctx); err != nil {
		return total, err
	}
	return total, nil
}

// Info describes the current index and corpus.
func (s *IngestService) Info(ctx context.Context) (*domain.IndexInfo, error) {
	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return &domain.IndexInfo{
		Stamp:     s.index.Stamp(),
		Vectors:   s.index.Len(),
		Documents: len(docs),
	}, nil
}
