package services

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/core/ports/driving"
	"github.com/custodia-labs/regula/internal/lexical"
	"github.com/custodia-labs/regula/internal/logger"
)

// Ensure Evaluator implements the interface.
var _ driving.EvaluationService = (*Evaluator)(nil)

// EvaluatorConfig holds evaluation settings.
type EvaluatorConfig struct {
	// Providers are the provider ids evaluated when a run names none.
	Providers []string

	Concurrency       int
	SemanticThreshold float64
}

// Evaluator runs gold questions through the answer path and scores them.
type Evaluator struct {
	asker driving.AskService
	cfg   EvaluatorConfig
}

// NewEvaluator creates an evaluator.
func NewEvaluator(asker driving.AskService, cfg EvaluatorConfig) *Evaluator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Evaluator{asker: asker, cfg: cfg}
}

// Run asks every question once per provider. Provider failures are recorded,
// not retried. Any other error aborts the run.
func (e *Evaluator) Run(ctx context.Context, questions []domain.GoldQuestion, opts domain.EvalOptions) (*domain.Report, error) {
	logger.Section("Evaluation")

	providers := opts.Providers
	if len(providers) == 0 {
		providers = e.cfg.Providers
	}
	if len(providers) == 0 {
		return nil, domain.ErrNoProviders
	}
	concurrency := e.cfg.Concurrency
	if opts.Concurrency > 0 {
		concurrency = opts.Concurrency
	}

	report := &domain.Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	records := make([]domain.EvalRecord, len(questions)*len(providers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for qi, q := range questions {
		for pi, provider := range providers {
			slot := qi*len(providers) + pi
			g.Go(func() error {
				rec, err := e.evaluate(gctx, q, provider)
				if err != nil {
					return err
				}
				records[slot] = rec
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.FinishedAt = time.Now()
	report.Records = records
	report.Summaries = Summarise(records)
	return report, nil
}

// evaluate asks one question on one provider and scores the result.
func (e *Evaluator) evaluate(ctx context.Context, q domain.GoldQuestion, provider string) (domain.EvalRecord, error) {
	rec := domain.EvalRecord{
		QuestionID: q.ID,
		Question:   q.Question,
		Category:   q.Category,
		ProviderID: provider,
	}

	start := time.Now()
	result, err := e.asker.Ask(ctx, q.Question, domain.AskOptions{
		Mode:      domain.AnswerModeSingle,
		Providers: []string{provider},
	})
	if err != nil {
		if !domain.IsTransportFailure(err) && !errors.Is(err, domain.ErrNoProviders) {
			return rec, err
		}
		rec.Outcome = domain.OutcomeTransportFailure
		rec.Error = err.Error()
		rec.LatencyMS = time.Since(start).Milliseconds()
		logger.Debug("%s on %s failed: %v", q.ID, provider, err)
		return rec, nil
	}

	rec.Outcome = result.Outcome
	rec.RetrievedIDs = result.RetrievedIDs()
	rec.PrecisionAtK = precisionAtK(result.Retrieved, q)

	answer := result.Primary()
	if answer == nil {
		return rec, nil
	}
	rec.AnswerText = answer.Text
	rec.CitedDocuments = answer.CitedDocumentIDs()
	rec.LatencyMS = answer.LatencyMS
	rec.Tokens = answer.TokenUsage.Total()
	rec.CostUSD = answer.CostUSD
	rec.HasValidCitation = !answer.Abstained && len(answer.Citations) > 0
	rec.ExactMatch = normaliseAnswer(answer.Text) == normaliseAnswer(q.ExpectedAnswer)
	rec.SemanticScore = lexical.Jaccard(answer.Text, q.ExpectedAnswer)
	if rec.ExactMatch {
		rec.SemanticScore = 1
	}
	rec.SemanticMatch = rec.SemanticScore >= e.cfg.SemanticThreshold
	rec.SourceCoverage = sourceCoverage(rec.CitedDocuments, q.ExpectedSources)
	return rec, nil
}

// normaliseAnswer folds case, accents and whitespace for exact matching.
func normaliseAnswer(s string) string {
	return strings.Join(lexical.Words(s), " ")
}

// sourceCoverage is the share of expected documents the answer cited. A
// question with no expected sources is covered when nothing is cited.
func sourceCoverage(cited, expected []string) float64 {
	if len(expected) == 0 {
		if len(cited) == 0 {
			return 1
		}
		return 0
	}
	got := make(map[string]bool, len(cited))
	for _, id := range cited {
		got[id] = true
	}
	hit := 0
	for _, id := range expected {
		if got[id] {
			hit++
		}
	}
	return float64(hit) / float64(len(expected))
}

// precisionAtK is the share of supplied chunks that are relevant. Relevance
// uses the gold chunk ids, or the expected documents when none are given.
// Nothing retrieved scores 0.
func precisionAtK(retrieved []domain.RetrievedChunk, q domain.GoldQuestion) float64 {
	if len(retrieved) == 0 {
		return 0
	}

	relevant := make(map[string]bool)
	byChunk := len(q.ExpectedChunks) > 0
	if byChunk {
		for _, id := range q.ExpectedChunks {
			relevant[id] = true
		}
	} else {
		for _, id := range q.ExpectedSources {
			relevant[id] = true
		}
	}

	hit := 0
	for _, c := range retrieved {
		key := c.DocumentID
		if byChunk {
			key = c.ChunkID
		}
		if relevant[key] {
			hit++
		}
	}
	return float64(hit) / float64(len(retrieved))
}

// Summarise aggregates records per provider, in first-seen provider order.
// Content rates exclude transport failures; abstention and failure rates
// are over all records.
func Summarise(records []domain.EvalRecord) []domain.ProviderSummary {
	var order []string
	groups := make(map[string][]domain.EvalRecord)
	for _, r := range records {
		if _, ok := groups[r.ProviderID]; !ok {
			order = append(order, r.ProviderID)
		}
		groups[r.ProviderID] = append(groups[r.ProviderID], r)
	}

	summaries := make([]domain.ProviderSummary, 0, len(order))
	for _, id := range order {
		summaries = append(summaries, summarise(id, groups[id]))
	}
	return summaries
}

func summarise(provider string, records []domain.EvalRecord) domain.ProviderSummary {
	s := domain.ProviderSummary{ProviderID: provider, Total: len(records)}

	var exact, semantic, cited int
	var coverage, precision, latency float64
	latencies := make([]int64, 0, len(records))

	for _, r := range records {
		s.TotalTokens += r.Tokens
		s.TotalCostUSD += r.CostUSD
		switch r.Outcome {
		case domain.OutcomeTransportFailure:
			s.Failed++
			continue
		case domain.OutcomeAbstained:
			s.Abstained++
		default:
			s.Answered++
		}
		if r.ExactMatch {
			exact++
		}
		if r.SemanticMatch {
			semantic++
		}
		if r.HasValidCitation {
			cited++
		}
		coverage += r.SourceCoverage
		precision += r.PrecisionAtK
		latency += float64(r.LatencyMS)
		latencies = append(latencies, r.LatencyMS)
	}

	if s.Total > 0 {
		s.AbstentionRate = float64(s.Abstained) / float64(s.Total)
		s.TransportFailureRate = float64(s.Failed) / float64(s.Total)
	}
	if n := float64(s.Total - s.Failed); n > 0 {
		s.ExactMatchRate = float64(exact) / n
		s.SemanticMatchRate = float64(semantic) / n
		s.CitationCoverageRate = float64(cited) / n
		s.MeanSourceCoverage = coverage / n
		s.MeanPrecisionAtK = precision / n
		s.MeanLatencyMS = latency / n
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	s.P50LatencyMS = percentile(latencies, 50)
	s.P95LatencyMS = percentile(latencies, 95)
	return s
}

// percentile returns the nearest-rank percentile of sorted values.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}
