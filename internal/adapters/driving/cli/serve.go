package cli

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/regula/internal/adapters/driving/mcp"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve MCP over HTTP together with metrics",
	Long: `Starts one HTTP server exposing:
  /mcp      Model Context Protocol (streamable HTTP)
  /metrics  Prometheus metrics for queries, providers and ingestion
  /healthz  liveness check`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func newServeMux() (*http.ServeMux, error) {
	server, err := newMCPServer()
	if err != nil {
		return nil, err
	}
	if metricsHandler == nil {
		return nil, errors.New("metrics not configured")
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", server.Handler())
	mux.Handle("/metrics", metricsHandler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	mux, err := newServeMux()
	if err != nil {
		return err
	}
	cmd.Printf("Listening on %s (/mcp, /metrics)\n", serveAddr)
	return mcp.ListenAndServe(cmd.Context(), serveAddr, mux)
}
