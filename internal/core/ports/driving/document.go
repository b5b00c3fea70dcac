package driving

import (
	"context"

	"github.com/custodia-labs/regula/internal/core/domain"
)

// DocumentService browses and removes ingested documents.
type DocumentService interface {
	// List returns every ingested document ordered by ID.
	List(ctx context.Context) ([]domain.Document, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// GetPage returns the text of one page of a document.
	GetPage(ctx context.Context, documentID string, page int) (string, error)

	// GetDetails returns metadata for display.
	GetDetails(ctx context.Context, documentID string) (*DocumentDetails, error)

	// Remove deletes a document, its chunks and their vectors.
	Remove(ctx context.Context, documentID string) error
}

// DocumentDetails summarises a document for display.
type DocumentDetails struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	SourceURL     string `json:"source_url,omitempty"`
	EffectiveDate string `json:"effective_date,omitempty"`
	MIMEType      string `json:"mime_type,omitempty"`
	Pages         int    `json:"pages"`
	Chunks        int    `json:"chunks"`
	Characters    int    `json:"characters"`
	IngestedAt    string `json:"ingested_at,omitempty"`
}
