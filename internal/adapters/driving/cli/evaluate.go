package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/regula/internal/adapters/driven/config/file"
	"github.com/custodia-labs/regula/internal/core/domain"
)

var (
	evalGold        string
	evalProviders   []string
	evalConcurrency int
	evalOutput      string
	evalJSON        bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score providers against a gold question set",
	Long: `Asks every question of a gold set once per provider and reports, per
provider, how often answers match the expected answer, cite the expected
sources and abstain, together with latency, tokens and cost.

Provider failures are counted separately and never as wrong answers.`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVarP(&evalGold, "gold", "g", "", "gold.yaml question set (required)")
	evaluateCmd.Flags().StringSliceVarP(&evalProviders, "provider", "p", nil, "provider ids to evaluate (default all)")
	evaluateCmd.Flags().IntVarP(&evalConcurrency, "concurrency", "c", 0, "questions in flight (default from settings)")
	evaluateCmd.Flags().StringVarP(&evalOutput, "output", "o", "", "write the full report as JSON to this file")
	evaluateCmd.Flags().BoolVar(&evalJSON, "json", false, "print the full report as JSON")
	_ = evaluateCmd.MarkFlagRequired("gold")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	if evaluationService == nil {
		return errors.New("evaluation service not configured")
	}

	questions, err := file.LoadGoldSet(evalGold)
	if err != nil {
		return err
	}

	opts := domain.EvalOptions{Providers: evalProviders, Concurrency: evalConcurrency}
	report, err := evaluationService.Run(cmd.Context(), questions, opts)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if evalOutput != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		if err := os.WriteFile(evalOutput, data, 0o600); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	if evalJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	printSummaries(cmd, report, len(questions))
	return nil
}

func printSummaries(cmd *cobra.Command, report *domain.Report, questions int) {
	cmd.Printf("Evaluation %s: %d questions\n\n", report.RunID, questions)
	cmd.Printf("%-12s %6s %6s %6s %6s %6s %6s %8s %8s %8s %9s\n",
		"PROVIDER", "EXACT", "SEM", "CITED", "SRC", "P@K", "ABST", "FAIL", "P50 ms", "P95 ms", "COST $")
	for _, s := range report.Summaries {
		cmd.Printf("%-12s %6s %6s %6s %6s %6s %6s %8d %8d %8d %9.4f\n",
			s.ProviderID,
			pct(s.ExactMatchRate), pct(s.SemanticMatchRate), pct(s.CitationCoverageRate),
			pct(s.MeanSourceCoverage), pct(s.MeanPrecisionAtK), pct(s.AbstentionRate),
			s.Failed, s.P50LatencyMS, s.P95LatencyMS, s.TotalCostUSD)
	}
	if evalOutput != "" {
		cmd.Printf("\nFull report written to %s\n", evalOutput)
	}
}

func pct(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}
