package driving

import (
	"context"

	"github.com/custodia-labs/regula/internal/core/domain"
)

// AskService answers questions with grounded citations or abstains.
type AskService interface {
	// Ask runs the full retrieve-generate-validate loop for one question.
	// Abstention is a normal result. When every provider asked fails, the
	// result has OutcomeTransportFailure and the error is *domain.TransportFailure.
	Ask(ctx context.Context, question string, opts domain.AskOptions) (*domain.AskResult, error)
}

// RetrievalService exposes retrieval without generation.
type RetrievalService interface {
	// Retrieve returns hydrated candidates for a query. k <= 0 uses the configured depth.
	Retrieve(ctx context.Context, query string, k int, rerank bool) ([]domain.RetrievedChunk, error)
}
