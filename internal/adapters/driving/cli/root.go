// Package cli provides the regula command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/regula/internal/core/ports/driven"
	"github.com/custodia-labs/regula/internal/core/ports/driving"
	"github.com/custodia-labs/regula/internal/logger"
)

// Command annotations read by the service factory.
const (
	annotationNoServices = "regula/no-services"
	annotationFreshIndex = "regula/fresh-index"
)

var version = "dev"

// Services wired by the factory. Tests assign them directly.
var (
	settingsService      driving.SettingsService
	askService           driving.AskService
	retrievalService     driving.RetrievalService
	ingestService        driving.IngestService
	evaluationService    driving.EvaluationService
	documentService      driving.DocumentService
	providerAdapters     []driven.ProviderAdapter
	unavailableProviders map[string]string
	metricsHandler       http.Handler
)

// Services holds the core services the commands drive.
type Services struct {
	Settings   driving.SettingsService
	Ask        driving.AskService
	Retrieval  driving.RetrievalService
	Ingest     driving.IngestService
	Evaluation driving.EvaluationService
	Document   driving.DocumentService

	// Providers are the usable generation providers in configuration order.
	Providers []driven.ProviderAdapter

	// Unavailable maps configured providers that could not be built to the reason.
	Unavailable map[string]string

	// Metrics serves the Prometheus exposition format.
	Metrics http.Handler

	// Close releases stores and providers.
	Close func()
}

// Options are the global settings handed to the service factory.
type Options struct {
	// DataDir holds the database, config and prompts. Empty means ~/.regula.
	DataDir string

	// FreshIndex starts an empty index when the stored one was built by a
	// different embedding function, instead of failing.
	FreshIndex bool
}

// ServiceFactory builds services once the global flags are parsed.
type ServiceFactory func(ctx context.Context, opts Options) (*Services, error)

var (
	serviceFactory ServiceFactory
	closeServices  func()

	dataDir string
	verbose bool
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "regula",
	Short: "Grounded answers from university regulations",
	Long: `Regula answers student questions from an ingested corpus of university
regulations. Every answer cites the document and page it comes from, and
questions the regulations do not cover are refused.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupServices,
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if closeServices != nil {
			closeServices()
			closeServices = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.regula)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load API keys from a dotenv file")
}

// Execute runs the root command. The factory is called before any command
// that needs services.
func Execute(ctx context.Context, v string, factory ServiceFactory) error {
	version = v
	serviceFactory = factory
	return rootCmd.ExecuteContext(ctx)
}

func setupServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if err := loadEnv(envFile); err != nil {
		return err
	}

	if serviceFactory == nil || cmd.Annotations[annotationNoServices] == "true" {
		return nil
	}

	svc, err := serviceFactory(cmd.Context(), Options{
		DataDir:    dataDir,
		FreshIndex: cmd.Annotations[annotationFreshIndex] == "true",
	})
	if err != nil {
		return err
	}
	useServices(svc)
	return nil
}

// loadEnv loads a dotenv file. Without an explicit path, a .env file in
// the working directory is loaded if present. Existing variables win.
func loadEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading env file: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("ignoring .env: %v", err)
	}
	return nil
}

func useServices(svc *Services) {
	settingsService = svc.Settings
	askService = svc.Ask
	retrievalService = svc.Retrieval
	ingestService = svc.Ingest
	evaluationService = svc.Evaluation
	documentService = svc.Document
	providerAdapters = svc.Providers
	unavailableProviders = svc.Unavailable
	metricsHandler = svc.Metrics
	closeServices = svc.Close
}
