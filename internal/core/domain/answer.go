package domain

// RefusalMessage is the fixed text of an abstained answer.
const RefusalMessage = "No encontré información sobre esto en la normativa disponible."

// DefaultSuggestedOffice is shown alongside the refusal when none is configured.
const DefaultSuggestedOffice = "Dirección de Asuntos Estudiantiles o Secretaría Académica"

// Citation points at a retrieved chunk that supports an answer.
// It is always built from the chunk itself, never from model text.
type Citation struct {
	DocumentTitle string `json:"document_title"`
	Locator       string `json:"locator"`
	SourceURL     string `json:"source_url,omitempty"`
	DocumentID    string `json:"document_id"`
	ChunkID       string `json:"chunk_id"`
}

// TokenUsage counts tokens consumed by one generation call.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
}

// Total returns prompt plus completion tokens.
func (u TokenUsage) Total() int {
	return u.Prompt + u.Completion
}

// Add returns the sum of two usages.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{Prompt: u.Prompt + o.Prompt, Completion: u.Completion + o.Completion}
}

// Answer is one provider's response to a question.
//
// Abstained answers carry no citations and the fixed RefusalMessage;
// answered ones carry at least one citation.
type Answer struct {
	Text            string     `json:"text"`
	Citations       []Citation `json:"citations"`
	ProviderID      string     `json:"provider_id"`
	Abstained       bool       `json:"abstained"`
	SuggestedOffice string     `json:"suggested_office,omitempty"`
	LatencyMS       int64      `json:"latency_ms"`
	TokenUsage      TokenUsage `json:"token_usage"`
	CostUSD         float64    `json:"cost_usd"`

	// Violation describes why a generated answer was downgraded, if it was.
	// It is diagnostic only.
	Violation string `json:"violation,omitempty"`
}

// NewAbstention builds an abstained answer for a provider.
func NewAbstention(providerID, office string) Answer {
	if office == "" {
		office = DefaultSuggestedOffice
	}
	return Answer{
		Text:            RefusalMessage,
		Citations:       []Citation{},
		ProviderID:      providerID,
		Abstained:       true,
		SuggestedOffice: office,
	}
}

// IsConsistent reports whether the abstention invariant holds.
func (a *Answer) IsConsistent() bool {
	if a.Abstained {
		return len(a.Citations) == 0 && a.Text == RefusalMessage
	}
	return len(a.Citations) > 0
}

// CitedDocumentIDs returns the distinct document ids cited, in order.
func (a *Answer) CitedDocumentIDs() []string {
	seen := make(map[string]bool, len(a.Citations))
	ids := make([]string, 0, len(a.Citations))
	for _, c := range a.Citations {
		if !seen[c.DocumentID] {
			seen[c.DocumentID] = true
			ids = append(ids, c.DocumentID)
		}
	}
	return ids
}

// AnswerMode selects how many providers answer a question.
type AnswerMode string

// Available answer modes.
const (
	// AnswerModeSingle asks one provider.
	AnswerModeSingle AnswerMode = "single"

	// AnswerModeCompare asks every provider and returns each answer independently.
	AnswerModeCompare AnswerMode = "compare"

	// AnswerModeEnsemble asks every provider and resolves a single outcome.
	AnswerModeEnsemble AnswerMode = "ensemble"
)

// IsValid returns true if the mode is recognised.
func (m AnswerMode) IsValid() bool {
	switch m {
	case AnswerModeSingle, AnswerModeCompare, AnswerModeEnsemble:
		return true
	default:
		return false
	}
}

// IsMultiProvider returns true if the mode fans out to all providers.
func (m AnswerMode) IsMultiProvider() bool {
	return m == AnswerModeCompare || m == AnswerModeEnsemble
}

// String returns the string representation.
func (m AnswerMode) String() string {
	return string(m)
}

// Description returns a human-readable description of the mode.
func (m AnswerMode) Description() string {
	switch m {
	case AnswerModeSingle:
		return "Single provider"
	case AnswerModeCompare:
		return "Compare (all providers side by side)"
	case AnswerModeEnsemble:
		return "Ensemble (all providers, conservative consensus)"
	default:
		return unknownDescription
	}
}

// Outcome is the terminal state of one question.
type Outcome string

// Terminal outcomes. TransportFailure is an infrastructure outcome and
// never a content judgement.
const (
	OutcomeAnswered         Outcome = "ANSWERED"
	OutcomeAbstained        Outcome = "ABSTAINED"
	OutcomeTransportFailure Outcome = "TRANSPORT_FAILURE"
)

// AskOptions tunes a single question.
type AskOptions struct {
	// Mode overrides the configured answer mode when set.
	Mode AnswerMode

	// Providers restricts the providers asked, in configuration order.
	Providers []string

	// TopK overrides the configured retrieval depth when positive.
	TopK int
}

// AskResult is everything the orchestrator returns for one question.
type AskResult struct {
	QueryID        string            `json:"query_id"`
	Question       string            `json:"question"`
	RewrittenQuery string            `json:"rewritten_query,omitempty"`
	Mode           AnswerMode        `json:"mode"`
	Outcome        Outcome           `json:"outcome"`
	Answers        []Answer          `json:"answers"`
	Unavailable    map[string]string `json:"unavailable,omitempty"`
	Retrieved      []RetrievedChunk  `json:"retrieved"`
}

// Primary returns the first presented answer, or nil.
func (r *AskResult) Primary() *Answer {
	if len(r.Answers) == 0 {
		return nil
	}
	return &r.Answers[0]
}

// RetrievedIDs returns the chunk ids supplied to the generators.
func (r *AskResult) RetrievedIDs() []string {
	ids := make([]string, len(r.Retrieved))
	for i := range r.Retrieved {
		ids[i] = r.Retrieved[i].ChunkID
	}
	return ids
}
