package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/core/ports/driven"
)

// buildPrompt assembles the generation request from the retained chunks.
// Each context block is prefixed with the exact tag the model must cite.
func buildPrompt(
	prompts driven.PromptStore,
	question string,
	chunks []domain.RetrievedChunk,
	answering domain.AnsweringSettings,
) (driven.Prompt, error) {
	systemTmpl, err := prompts.Load(driven.PromptGroundedSystem)
	if err != nil {
		return driven.Prompt{}, fmt.Errorf("load system prompt: %w", err)
	}
	userTmpl, err := prompts.Load(driven.PromptGroundedUser)
	if err != nil {
		return driven.Prompt{}, fmt.Errorf("load user prompt: %w", err)
	}

	return driven.Prompt{
		System:      fillRefusal(systemTmpl),
		User:        fmt.Sprintf(userTmpl, formatContext(chunks), question),
		Temperature: answering.Temperature,
		MaxTokens:   answering.MaxTokens,
	}, nil
}

// formatContext renders "[title, página N]: text" blocks.
func formatContext(chunks []domain.RetrievedChunk) string {
	blocks := make([]string, len(chunks))
	for i, c := range chunks {
		blocks[i] = fmt.Sprintf("%s: %s", citationTag(c.DocumentTitle, c.Chunk.Page), strings.TrimSpace(c.Text))
	}
	return strings.Join(blocks, "\n\n")
}

// citationTag renders the tag grammar the citation parser accepts.
func citationTag(title string, page int) string {
	return fmt.Sprintf("[%s, %s]", strings.TrimSpace(title), domain.FormatLocator(page))
}

// fillRefusal inserts the refusal phrase into a system template. Templates
// without a placeholder are used verbatim.
func fillRefusal(tmpl string) string {
	if !strings.Contains(tmpl, "%s") {
		return tmpl
	}
	return fmt.Sprintf(tmpl, domain.RefusalMessage)
}
