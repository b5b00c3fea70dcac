package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/regula/internal/core/domain"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question  string   `json:"question" jsonschema:"the question about university regulations"`
	Mode      string   `json:"mode,omitempty" jsonschema:"single, compare or ensemble (default: configured mode)"`
	Providers []string `json:"providers,omitempty" jsonschema:"provider ids to ask (default: all configured)"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	QueryID string         `json:"query_id"`
	Outcome string         `json:"outcome"`
	Answers []AnswerOutput `json:"answers"`
}

// AnswerOutput is one provider's answer.
type AnswerOutput struct {
	ProviderID      string           `json:"provider_id"`
	Text            string           `json:"text"`
	Abstained       bool             `json:"abstained"`
	SuggestedOffice string           `json:"suggested_office,omitempty"`
	Citations       []CitationOutput `json:"citations"`
}

// CitationOutput is a citation resolved against the corpus.
type CitationOutput struct {
	DocumentID    string `json:"document_id"`
	DocumentTitle string `json:"document_title"`
	Locator       string `json:"locator"`
	SourceURL     string `json:"source_url,omitempty"`
}

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query  string `json:"query" jsonschema:"the text to find passages for"`
	K      int    `json:"k,omitempty" jsonschema:"maximum number of passages (default: configured depth)"`
	Rerank bool   `json:"rerank,omitempty" jsonschema:"apply lexical re-ranking"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Passages []PassageOutput `json:"passages"`
	Count    int             `json:"count"`
}

// PassageOutput represents a single retrieved chunk.
type PassageOutput struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	Locator       string  `json:"locator"`
	Score         float64 `json:"score"`
	Text          string  `json:"text"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the regulation corpus with page citations, or abstain",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Find regulation passages relevant to a query without generating an answer",
	}, s.handleRetrieve)
}

// handleAsk handles the ask tool invocation. A transport failure is
// reported as an error result rather than a protocol error.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	opts := domain.AskOptions{
		Mode:      domain.AnswerMode(input.Mode),
		Providers: input.Providers,
	}
	result, err := s.ports.Ask.Ask(ctx, input.Question, opts)
	if result == nil || (err != nil && !domain.IsTransportFailure(err)) {
		return nil, AskOutput{}, err
	}

	output := AskOutput{
		QueryID: result.QueryID,
		Outcome: string(result.Outcome),
		Answers: make([]AnswerOutput, len(result.Answers)),
	}
	for i, a := range result.Answers {
		out := AnswerOutput{
			ProviderID:      a.ProviderID,
			Text:            a.Text,
			Abstained:       a.Abstained,
			SuggestedOffice: a.SuggestedOffice,
			Citations:       make([]CitationOutput, len(a.Citations)),
		}
		for j, c := range a.Citations {
			out.Citations[j] = CitationOutput{
				DocumentID:    c.DocumentID,
				DocumentTitle: c.DocumentTitle,
				Locator:       c.Locator,
				SourceURL:     c.SourceURL,
			}
		}
		output.Answers[i] = out
	}

	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		}, output, nil
	}
	return nil, output, nil
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	chunks, err := s.ports.Retrieval.Retrieve(ctx, input.Query, input.K, input.Rerank)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	output := RetrieveOutput{
		Passages: make([]PassageOutput, len(chunks)),
		Count:    len(chunks),
	}
	for i := range chunks {
		output.Passages[i] = PassageOutput{
			ChunkID:       chunks[i].ChunkID,
			DocumentID:    chunks[i].DocumentID,
			DocumentTitle: chunks[i].DocumentTitle,
			Locator:       chunks[i].Locator,
			Score:         chunks[i].Score,
			Text:          chunks[i].Text,
		}
	}
	return nil, output, nil
}
