package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/regula/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure retrieval, answering and provider settings.

Settings live in config.toml inside the data directory. API keys are best
kept in environment variables (OPENAI_API_KEY, DEEPSEEK_API_KEY,
GEMINI_API_KEY, ANTHROPIC_API_KEY) or a .env file.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsModeCmd = &cobra.Command{
	Use:   "mode [mode]",
	Short: "Set the default answer mode",
	Long: `Set the default answer mode.

Available modes:
  single   - one provider, with optional fallback
  compare  - all providers side by side
  ensemble - all providers, answered only on full agreement`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSettingsMode,
}

var settingsProviderCmd = &cobra.Command{
	Use:   "provider",
	Short: "Add or replace a generation provider",
	Long:  `Interactively configure a generation provider and add it to the answering set.`,
	RunE:  runSettingsProvider,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsModeCmd)
	settingsCmd.AddCommand(settingsProviderCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider)
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	if settings.Embedding.Dimensions > 0 {
		cmd.Printf("  Dimensions: %d\n", settings.Embedding.Dimensions)
	}
	if settings.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", describeKey(settings.Embedding.APIKey))
	}
	cmd.Println()

	cmd.Println("[Chunking]")
	cmd.Printf("  Size: %d\n", settings.Chunking.Size)
	cmd.Printf("  Overlap: %d\n", settings.Chunking.Overlap)
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  Top K: %d\n", settings.Retrieval.TopK)
	cmd.Printf("  Min score: %.2f\n", settings.Retrieval.MinScore)
	cmd.Printf("  Query rewrite: %s\n", yesNo(settings.Retrieval.Rewrite))
	cmd.Printf("  Rerank: %s (keep %d)\n", yesNo(settings.Retrieval.Rerank), settings.Retrieval.RerankKeep)
	cmd.Println()

	cmd.Println("[Answering]")
	cmd.Printf("  Mode: %s\n", settings.Answering.Mode.Description())
	cmd.Printf("  Providers: %s\n", strings.Join(settings.Answering.Providers, ", "))
	cmd.Printf("  Fallback: %s\n", yesNo(settings.Answering.Fallback))
	cmd.Printf("  Temperature: %.2f\n", settings.Answering.Temperature)
	cmd.Printf("  Max tokens: %d\n", settings.Answering.MaxTokens)
	cmd.Println()

	cmd.Println("[Providers]")
	for _, p := range settings.Providers {
		status := "configured"
		if !p.IsConfigured() {
			status = "not configured"
		}
		cmd.Printf("  %s: %s, model %s, %s\n", p.ID, p.Kind.Description(), p.Model, status)
		if p.Kind.RequiresAPIKey() {
			cmd.Printf("    API Key: %s\n", describeKey(p.APIKey))
		}
	}
	cmd.Println()

	cmd.Println("[Evaluation]")
	cmd.Printf("  Concurrency: %d\n", settings.Evaluation.Concurrency)
	cmd.Printf("  Semantic threshold: %.2f\n", settings.Evaluation.SemanticThreshold)
	return nil
}

func runSettingsMode(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	modes := []domain.AnswerMode{domain.AnswerModeSingle, domain.AnswerModeCompare, domain.AnswerModeEnsemble}

	var selected domain.AnswerMode
	if len(args) == 1 {
		selected = domain.AnswerMode(args[0])
		if !selected.IsValid() {
			return fmt.Errorf("unknown mode %q", args[0])
		}
	} else {
		reader := bufio.NewReader(cmd.InOrStdin())
		cmd.Println("Select Answer Mode")
		cmd.Println("------------------")
		for i, mode := range modes {
			cmd.Printf("  %d. %s\n", i+1, mode.Description())
		}
		cmd.Print("\nEnter choice: ")
		idx := parseChoice(readLine(reader), len(modes), 0)
		if idx == 0 {
			return errors.New("invalid selection")
		}
		selected = modes[idx-1]
	}

	if err := settingsService.SetAnswerMode(selected); err != nil {
		return fmt.Errorf("failed to set answer mode: %w", err)
	}
	cmd.Printf("Answer mode set to: %s\n", selected.Description())
	return nil
}

func runSettingsProvider(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(cmd.InOrStdin())

	cmd.Println("Select Provider Kind")
	kinds := []domain.ProviderKind{
		domain.ProviderKindOpenAI,
		domain.ProviderKindDeepSeek,
		domain.ProviderKindGemini,
		domain.ProviderKindAnthropic,
		domain.ProviderKindOllama,
	}
	for i, k := range kinds {
		cmd.Printf("  %d. %s\n", i+1, k.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	kind := kinds[parseChoice(readLine(reader), len(kinds), 1)-1]

	cmd.Printf("Enter provider id [%s]: ", kind)
	id := readLine(reader)
	if id == "" {
		id = string(kind)
	}

	defaultModel := domain.DefaultProviderModels()[kind]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	p := domain.ProviderSettings{ID: id, Kind: kind, Model: model}
	if kind.RequiresAPIKey() {
		cmd.Printf("Enter API key (empty to read %s): ", kind.DefaultAPIKeyEnv())
		p.APIKey = readPassword(reader)
		cmd.Println()
		if p.APIKey == "" {
			p.APIKeyEnv = kind.DefaultAPIKeyEnv()
		}
	} else {
		cmd.Print("Enter base URL [http://localhost:11434]: ")
		p.BaseURL = readLine(reader)
	}

	if err := settingsService.SetProvider(p); err != nil {
		return fmt.Errorf("failed to configure provider: %w", err)
	}
	cmd.Printf("Provider configured: %s (%s, %s)\n", id, kind.Description(), model)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo from a terminal, falling back to reader.
func readPassword(reader *bufio.Reader) string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func describeKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	return maskAPIKey(key)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
