package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/regula/internal/core/domain"
)

var (
	askMode      string
	askProviders []string
	askTopK      int
	askJSON      bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the regulations",
	Long: `Retrieves the most relevant regulation passages and asks the configured
providers to answer from them. Every answer cites the document and page it
relies on; answers without a valid citation are replaced by a refusal.

Modes:
  single   - one provider, optionally falling back to the next on failure
  compare  - every provider, answers shown side by side
  ensemble - every provider, answered only if all of them answer`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askMode, "mode", "m", "", "answer mode: single, compare or ensemble")
	askCmd.Flags().StringSliceVarP(&askProviders, "provider", "p", nil, "provider ids to ask (repeatable)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "passages to retrieve (default from settings)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if askService == nil {
		return errors.New("ask service not configured")
	}

	opts := domain.AskOptions{
		Mode:      domain.AnswerMode(askMode),
		Providers: askProviders,
		TopK:      askTopK,
	}
	result, err := askService.Ask(cmd.Context(), args[0], opts)
	if err != nil && (result == nil || !domain.IsTransportFailure(err)) {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		data, jsonErr := json.MarshalIndent(result, "", "  ")
		if jsonErr != nil {
			return fmt.Errorf("failed to marshal result: %w", jsonErr)
		}
		cmd.Println(string(data))
	} else {
		printAskResult(cmd, result)
	}

	if err != nil {
		return fmt.Errorf("no provider could answer: %w", err)
	}
	return nil
}

func printAskResult(cmd *cobra.Command, result *domain.AskResult) {
	multi := len(result.Answers) > 1 || result.Mode.IsMultiProvider()
	for i := range result.Answers {
		a := &result.Answers[i]
		if multi {
			cmd.Printf("== %s ==\n", a.ProviderID)
		}
		cmd.Println(a.Text)
		if a.Abstained {
			cmd.Printf("\nConsulta con: %s\n", a.SuggestedOffice)
		}
		if len(a.Citations) > 0 {
			cmd.Println("\nFuentes:")
			for _, c := range a.Citations {
				if c.SourceURL != "" {
					cmd.Printf("  - %s, %s (%s)\n", c.DocumentTitle, c.Locator, c.SourceURL)
				} else {
					cmd.Printf("  - %s, %s\n", c.DocumentTitle, c.Locator)
				}
			}
		}
		if a.LatencyMS > 0 {
			cmd.Printf("\n(%d ms, %d tokens)\n", a.LatencyMS, a.TokenUsage.Total())
		}
		cmd.Println()
	}

	skipped := make([]string, 0, len(result.Unavailable))
	for id := range result.Unavailable {
		skipped = append(skipped, id)
	}
	sort.Strings(skipped)
	for _, id := range skipped {
		cmd.Printf("Skipped %s: %s\n", id, result.Unavailable[id])
	}
	cmd.Printf("Outcome: %s\n", result.Outcome)
}
