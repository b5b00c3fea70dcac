package domain

import "time"

// GoldQuestion is one labelled entry of the evaluation set.
type GoldQuestion struct {
	ID              string
	Question        string
	ExpectedAnswer  string
	ExpectedSources []string
	ExpectedChunks  []string
	Category        string
	Difficulty      string
}

// EvalRecord is the measured outcome of one question on one provider.
type EvalRecord struct {
	QuestionID       string   `json:"question_id"`
	Question         string   `json:"question"`
	Category         string   `json:"category,omitempty"`
	ProviderID       string   `json:"provider_id"`
	Outcome          Outcome  `json:"outcome"`
	AnswerText       string   `json:"answer_text,omitempty"`
	CitedDocuments   []string `json:"cited_documents,omitempty"`
	RetrievedIDs     []string `json:"retrieved_ids,omitempty"`
	ExactMatch       bool     `json:"exact_match"`
	SemanticScore    float64  `json:"semantic_score"`
	SemanticMatch    bool     `json:"semantic_match"`
	HasValidCitation bool     `json:"has_valid_citation"`
	SourceCoverage   float64  `json:"source_coverage"`
	PrecisionAtK     float64  `json:"precision_at_k"`
	LatencyMS        int64    `json:"latency_ms"`
	Tokens           int      `json:"tokens"`
	CostUSD          float64  `json:"cost_usd"`
	Error            string   `json:"error,omitempty"`
}

// Abstained reports whether the record ended in abstention.
func (r *EvalRecord) Abstained() bool {
	return r.Outcome == OutcomeAbstained
}

// Failed reports whether the record ended in a transport failure.
func (r *EvalRecord) Failed() bool {
	return r.Outcome == OutcomeTransportFailure
}

// ProviderSummary aggregates the records of one provider.
//
// Rates over content (matches, coverage, precision) exclude failed records;
// TransportFailureRate and AbstentionRate are over all records.
type ProviderSummary struct {
	ProviderID           string  `json:"provider_id"`
	Total                int     `json:"total"`
	Answered             int     `json:"answered"`
	Abstained            int     `json:"abstained"`
	Failed               int     `json:"failed"`
	ExactMatchRate       float64 `json:"exact_match_rate"`
	SemanticMatchRate    float64 `json:"semantic_match_rate"`
	CitationCoverageRate float64 `json:"citation_coverage_rate"`
	MeanSourceCoverage   float64 `json:"mean_source_coverage"`
	MeanPrecisionAtK     float64 `json:"mean_precision_at_k"`
	AbstentionRate       float64 `json:"abstention_rate"`
	TransportFailureRate float64 `json:"transport_failure_rate"`
	MeanLatencyMS        float64 `json:"mean_latency_ms"`
	P50LatencyMS         int64   `json:"p50_latency_ms"`
	P95LatencyMS         int64   `json:"p95_latency_ms"`
	TotalTokens          int     `json:"total_tokens"`
	TotalCostUSD         float64 `json:"total_cost_usd"`
}

// Report is the result of an evaluation run.
type Report struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Records    []EvalRecord      `json:"records"`
	Summaries  []ProviderSummary `json:"summaries"`
}

// EvalOptions tunes an evaluation run.
type EvalOptions struct {
	// Providers lists provider ids to evaluate. Empty means all configured.
	Providers []string

	// Concurrency overrides the configured in-flight bound when positive.
	Concurrency int
}
