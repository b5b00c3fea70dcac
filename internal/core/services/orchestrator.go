package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/core/ports/driven"
	"github.com/custodia-labs/regula/internal/core/ports/driving"
	"github.com/custodia-labs/regula/internal/logger"
)

// Ensure Orchestrator implements the interfaces.
var (
	_ driving.AskService       = (*Orchestrator)(nil)
	_ driving.RetrievalService = (*Orchestrator)(nil)
)

// Provider ids used on answers no generation provider produced.
const (
	retrievalProviderID = "retrieval"
	ensembleProviderID  = "ensemble"
)

// OrchestratorConfig holds the settings the answer loop reads.
type OrchestratorConfig struct {
	Retrieval domain.RetrievalSettings
	Answering domain.AnsweringSettings
}

// Orchestrator runs the retrieve, generate and validate loop.
type Orchestrator struct {
	retriever   *Retriever
	prompts     driven.PromptStore
	providers   []driven.ProviderAdapter
	unavailable map[string]string
	rewriter    QueryRewriter
	metrics     driven.Metrics
	cfg         OrchestratorConfig
}

// NewOrchestrator creates an orchestrator over providers given in
// configuration order.
func NewOrchestrator(
	retriever *Retriever,
	prompts driven.PromptStore,
	providers []driven.ProviderAdapter,
	cfg OrchestratorConfig,
) *Orchestrator {
	var rewriter QueryRewriter = NoopRewriter{}
	if cfg.Retrieval.Rewrite {
		rewriter = NewKeywordExpansionRewriter()
	}
	return &Orchestrator{
		retriever:   retriever,
		prompts:     prompts,
		providers:   providers,
		unavailable: map[string]string{},
		rewriter:    rewriter,
		metrics:     nopMetrics{},
		cfg:         cfg,
	}
}

// SetMetrics sets the metrics recorder.
func (o *Orchestrator) SetMetrics(m driven.Metrics) {
	if m != nil {
		o.metrics = m
	}
}

// SetUnavailable records configured providers that could not be built,
// keyed by id with the reason.
func (o *Orchestrator) SetUnavailable(reasons map[string]string) {
	o.unavailable = make(map[string]string, len(reasons))
	for id, reason := range reasons {
		o.unavailable[id] = reason
	}
}

// SetRewriter replaces the query rewriter.
func (o *Orchestrator) SetRewriter(r QueryRewriter) {
	if r != nil {
		o.rewriter = r
	}
}

// ProviderIDs returns the usable provider ids in configuration order.
func (o *Orchestrator) ProviderIDs() []string {
	ids := make([]string, len(o.providers))
	for i, p := range o.providers {
		ids[i] = p.ID()
	}
	return ids
}

// Retrieve returns hydrated candidates for a query without generating.
func (o *Orchestrator) Retrieve(ctx context.Context, query string, k int, rerank bool) ([]domain.RetrievedChunk, error) {
	if k <= 0 {
		k = o.cfg.Retrieval.TopK
	}
	rewritten := o.rewriter.Rewrite(query)
	result, err := o.retriever.Retrieve(ctx, rewritten, k)
	if err != nil {
		return nil, err
	}
	chunks, err := o.retriever.Hydrate(ctx, result)
	if err != nil {
		return nil, err
	}
	if rerank {
		chunks = o.retriever.Rerank(rewritten, chunks)
	}
	return chunks, nil
}

// Ask answers one question.
func (o *Orchestrator) Ask(ctx context.Context, question string, opts domain.AskOptions) (*domain.AskResult, error) {
	start := time.Now()
	logger.Section("Ask")

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}

	mode := opts.Mode
	if mode == "" {
		mode = o.cfg.Answering.Mode
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: unknown answer mode %q", domain.ErrInvalidInput, mode)
	}

	selected, unavailable, err := o.selectProviders(opts.Providers)
	if err != nil {
		return nil, err
	}

	result := &domain.AskResult{
		QueryID:     uuid.NewString(),
		Question:    question,
		Mode:        mode,
		Unavailable: unavailable,
	}
	defer func() {
		if result.Outcome != "" {
			o.metrics.QueryFinished(string(mode), string(result.Outcome), time.Since(start))
		}
	}()

	// Rewrite and retrieve.
	result.RewrittenQuery = o.rewriter.Rewrite(question)
	logger.Debug("Rewritten query: %q", result.RewrittenQuery)

	k := opts.TopK
	if k <= 0 {
		k = o.cfg.Retrieval.TopK
	}
	hits, err := o.retriever.Retrieve(ctx, result.RewrittenQuery, k)
	if err != nil {
		return nil, err
	}
	hits = hits.Above(o.cfg.Retrieval.MinScore)
	if len(hits) == 0 {
		logger.Debug("No candidate reaches min score %.2f", o.cfg.Retrieval.MinScore)
		o.abstain(result, retrievalProviderID)
		return result, nil
	}

	chunks, err := o.retriever.Hydrate(ctx, hits)
	if err != nil {
		return nil, err
	}
	if o.cfg.Retrieval.Rerank {
		chunks = aboveScore(o.retriever.Rerank(result.RewrittenQuery, chunks), o.cfg.Retrieval.MinScore)
	}
	if len(chunks) == 0 {
		o.abstain(result, retrievalProviderID)
		return result, nil
	}
	result.Retrieved = chunks

	prompt, err := buildPrompt(o.prompts, question, chunks, o.cfg.Answering)
	if err != nil {
		return nil, err
	}

	switch mode {
	case domain.AnswerModeSingle:
		err = o.answerSingle(ctx, result, selected, prompt)
	default:
		err = o.answerAll(ctx, result, selected, prompt)
	}
	if err != nil {
		return result, err
	}

	logger.Debug("Outcome: %s (%d answers)", result.Outcome, len(result.Answers))
	return result, nil
}

// selectProviders resolves requested ids against the configured providers,
// keeping configuration order. Requested ids that could not be built are
// reported as unavailable.
func (o *Orchestrator) selectProviders(requested []string) ([]driven.ProviderAdapter, map[string]string, error) {
	unavailable := make(map[string]string)

	if len(requested) == 0 {
		for id, reason := range o.unavailable {
			unavailable[id] = reason
		}
		if len(o.providers) == 0 {
			return nil, nil, noProvidersError(unavailable)
		}
		return o.providers, unavailable, nil
	}

	want := make(map[string]bool, len(requested))
	for _, id := range requested {
		_, down := o.unavailable[id]
		if !down && !o.hasProvider(id) {
			return nil, nil, fmt.Errorf("%w: %s", domain.ErrProviderUnknown, id)
		}
		if down {
			unavailable[id] = o.unavailable[id]
		}
		want[id] = true
	}

	var selected []driven.ProviderAdapter
	for _, p := range o.providers {
		if want[p.ID()] {
			selected = append(selected, p)
		}
	}
	if len(selected) == 0 {
		return nil, nil, noProvidersError(unavailable)
	}
	return selected, unavailable, nil
}

func (o *Orchestrator) hasProvider(id string) bool {
	for _, p := range o.providers {
		if p.ID() == id {
			return true
		}
	}
	return false
}

func noProvidersError(unavailable map[string]string) error {
	if len(unavailable) == 0 {
		return domain.ErrNoProviders
	}
	reasons := make([]string, 0, len(unavailable))
	for id, reason := range unavailable {
		reasons = append(reasons, id+": "+reason)
	}
	return fmt.Errorf("%w (%s)", domain.ErrNoProviders, strings.Join(reasons, "; "))
}

// answerSingle asks the first provider. With fallback enabled, a provider
// error moves on to the next provider in order.
func (o *Orchestrator) answerSingle(
	ctx context.Context, result *domain.AskResult, providers []driven.ProviderAdapter, prompt driven.Prompt,
) error {
	candidates := providers[:1]
	if o.cfg.Answering.Fallback {
		candidates = providers
	}

	failures := make(map[string]error)
	for i, p := range candidates {
		answer, err := o.generate(ctx, p, prompt, result.Retrieved)
		if err != nil {
			failures[p.ID()] = err
			result.Unavailable[p.ID()] = err.Error()
			if i+1 < len(candidates) {
				logger.Warn("Provider %s failed, falling back: %v", p.ID(), err)
			}
			continue
		}
		result.Answers = []domain.Answer{answer}
		result.Outcome = outcomeOf(answer)
		return nil
	}

	result.Outcome = domain.OutcomeTransportFailure
	return &domain.TransportFailure{Failures: failures}
}

// answerAll asks every provider concurrently. Each call has its own timeout
// and a failing call never cancels its siblings.
func (o *Orchestrator) answerAll(
	ctx context.Context, result *domain.AskResult, providers []driven.ProviderAdapter, prompt driven.Prompt,
) error {
	answers := make([]*domain.Answer, len(providers))
	errs := make([]error, len(providers))

	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			answer, err := o.generate(ctx, p, prompt, result.Retrieved)
			if err != nil {
				errs[i] = err
				return nil
			}
			answers[i] = &answer
			return nil
		})
	}
	_ = g.Wait()

	failures := make(map[string]error)
	var available []domain.Answer
	for i, p := range providers {
		if errs[i] != nil {
			failures[p.ID()] = errs[i]
			result.Unavailable[p.ID()] = errs[i].Error()
			continue
		}
		available = append(available, *answers[i])
	}

	if len(available) == 0 {
		result.Outcome = domain.OutcomeTransportFailure
		return &domain.TransportFailure{Failures: failures}
	}

	if result.Mode == domain.AnswerModeCompare {
		result.Answers = available
		result.Outcome = domain.OutcomeAbstained
		for _, a := range available {
			if !a.Abstained {
				result.Outcome = domain.OutcomeAnswered
				break
			}
		}
		return nil
	}

	resolveEnsemble(result, available, o.cfg.Answering.SuggestedOffice)
	return nil
}

// resolveEnsemble answers only when every available provider produced a
// grounded answer. Any abstention makes the whole ensemble abstain.
func resolveEnsemble(result *domain.AskResult, available []domain.Answer, office string) {
	for _, a := range available {
		if a.Abstained {
			refusal := domain.NewAbstention(ensembleProviderID, office)
			for _, b := range available {
				refusal.TokenUsage = refusal.TokenUsage.Add(b.TokenUsage)
				refusal.CostUSD += b.CostUSD
				refusal.LatencyMS = max(refusal.LatencyMS, b.LatencyMS)
			}
			result.Answers = []domain.Answer{refusal}
			result.Outcome = domain.OutcomeAbstained
			return
		}
	}
	result.Answers = available
	result.Outcome = domain.OutcomeAnswered
}

// generate calls one provider and validates its citations. The returned
// error is always a provider failure; grounding problems become abstentions.
func (o *Orchestrator) generate(
	ctx context.Context, p driven.ProviderAdapter, prompt driven.Prompt, supplied []domain.RetrievedChunk,
) (domain.Answer, error) {
	callCtx := ctx
	if timeout := p.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	gen, err := p.Generate(callCtx, prompt)
	latency := time.Since(start)

	if err != nil {
		perr, ok := domain.AsProviderError(err)
		if !ok {
			perr = &domain.ProviderError{Provider: p.ID(), Kind: kindFor(err), Err: err}
		}
		o.metrics.ProviderCall(p.ID(), string(perr.Kind), latency, 0, 0)
		return domain.Answer{}, perr
	}
	o.metrics.ProviderCall(p.ID(), "", latency, gen.Usage.Total(), gen.CostUSD)

	v := validateCitations(p.ID(), gen.Text, supplied)

	var answer domain.Answer
	switch {
	case v.violation != nil:
		logger.Debug("Grounding violation: %v", v.violation)
		o.metrics.GroundingViolation(p.ID())
		answer = domain.NewAbstention(p.ID(), o.cfg.Answering.SuggestedOffice)
		answer.Violation = v.violation.Error()
	case v.refused:
		answer = domain.NewAbstention(p.ID(), o.cfg.Answering.SuggestedOffice)
	default:
		answer = domain.Answer{
			Text:       strings.TrimSpace(gen.Text),
			Citations:  v.citations,
			ProviderID: p.ID(),
		}
	}
	answer.LatencyMS = latency.Milliseconds()
	answer.TokenUsage = gen.Usage
	answer.CostUSD = gen.CostUSD
	return answer, nil
}

// kindFor classifies an error an adapter returned without a ProviderError.
func kindFor(err error) domain.ProviderErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ProviderErrorTimeout
	}
	return domain.ProviderErrorUpstream
}

func (o *Orchestrator) abstain(result *domain.AskResult, providerID string) {
	result.Answers = []domain.Answer{domain.NewAbstention(providerID, o.cfg.Answering.SuggestedOffice)}
	result.Outcome = domain.OutcomeAbstained
}

func outcomeOf(a domain.Answer) domain.Outcome {
	if a.Abstained {
		return domain.OutcomeAbstained
	}
	return domain.OutcomeAnswered
}

func aboveScore(chunks []domain.RetrievedChunk, minScore float64) []domain.RetrievedChunk {
	out := chunks[:0:0]
	for _, c := range chunks {
		if c.Score >= minScore {
			out = append(out, c)
		}
	}
	return out
}

// nopMetrics is used until SetMetrics is called.
type nopMetrics struct{}

func (nopMetrics) QueryFinished(string, string, time.Duration)              {}
func (nopMetrics) ProviderCall(string, string, time.Duration, int, float64) {}
func (nopMetrics) GroundingViolation(string)                                {}
func (nopMetrics) ChunksIngested(int)                                       {}
