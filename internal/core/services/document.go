package services

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/core/ports/driven"
	"github.com/custodia-labs/regula/internal/core/ports/driving"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService manages ingested documents.
type DocumentService struct {
	docStore   driven.DocumentStore
	index      driven.VectorIndex
	indexStore driven.IndexStore
	embedder   driven.EmbeddingService
}

// NewDocumentService creates a new document service. The index and its
// store may be nil, in which case Remove leaves vectors untouched. When an
// embedder is given, Remove refuses to touch an index built by another one.
func NewDocumentService(
	docStore driven.DocumentStore,
	index driven.VectorIndex,
	indexStore driven.IndexStore,
	embedder driven.EmbeddingService,
) *DocumentService {
	return &DocumentService{
		docStore:   docStore,
		index:      index,
		indexStore: indexStore,
		embedder:   embedder,
	}
}

// List returns all documents.
func (s *DocumentService) List(ctx context.Context) ([]domain.Document, error) {
	return s.docStore.ListDocuments(ctx)
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.docStore.GetDocument(ctx, documentID)
}

// GetPage returns the text of a 1-based page.
func (s *DocumentService) GetPage(ctx context.Context, documentID string, page int) (string, error) {
	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return "", err
	}
	for _, p := range doc.PageList() {
		if p.Number == page {
			return doc.PageText(p), nil
		}
	}
	return "", fmt.Errorf("%w: %s has no page %d", domain.ErrNotFound, documentID, page)
}

// GetDetails returns document metadata for display.
func (s *DocumentService) GetDetails(ctx context.Context, documentID string) (*driving.DocumentDetails, error) {
	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	chunkCount := 0
	if chunks, err := s.docStore.GetChunks(ctx, documentID); err == nil {
		chunkCount = len(chunks)
	}

	details := &driving.DocumentDetails{
		ID:            doc.ID,
		Title:         doc.Title,
		SourceURL:     doc.SourceURL,
		EffectiveDate: doc.EffectiveDate,
		MIMEType:      doc.MIMEType,
		Pages:         len(doc.PageList()),
		Chunks:        chunkCount,
		Characters:    utf8.RuneCountInString(doc.Text),
	}
	if !doc.IngestedAt.IsZero() {
		details.IngestedAt = doc.IngestedAt.Format(time.RFC3339)
	}
	return details, nil
}

// Remove deletes a document and drops its vectors from the index.
func (s *DocumentService) Remove(ctx context.Context, documentID string) error {
	if s.index != nil && s.embedder != nil {
		expected := domain.IndexStamp{EmbeddingModel: s.embedder.ModelName(), Dimensions: s.embedder.Dimensions()}
		if stored := s.index.Stamp(); stored != expected {
			return &domain.IndexVersionMismatchError{Stored: stored, Expected: expected}
		}
	}
	if _, err := s.docStore.GetDocument(ctx, documentID); err != nil {
		return err
	}

	chunks, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load chunks of %s: %w", documentID, err)
	}
	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete %s: %w", documentID, err)
	}

	if s.index == nil {
		return nil
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	if err := s.index.Delete(ctx, ids); err != nil {
		return fmt.Errorf("drop vectors of %s: %w", documentID, err)
	}
	if s.indexStore != nil {
		if err := s.indexStore.SaveIndex(ctx, s.index.Snapshot()); err != nil {
			return fmt.Errorf("save index: %w", err)
		}
	}
	return nil
}
