package driving

import (
	"context"

	"github.com/custodia-labs/regula/internal/core/domain"
)

// EvaluationService runs a gold question set through the answer path.
type EvaluationService interface {
	// Run asks every question once per provider and summarises the results.
	Run(ctx context.Context, questions []domain.GoldQuestion, opts domain.EvalOptions) (*domain.Report, error)
}
