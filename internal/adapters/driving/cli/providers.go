package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/regula/internal/adapters/driven/ai"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List and check generation providers",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured providers",
	RunE:  runProvidersList,
}

var providersPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that every usable provider responds",
	RunE:  runProvidersPing,
}

func init() {
	providersCmd.AddCommand(providersListCmd)
	providersCmd.AddCommand(providersPingCmd)
	rootCmd.AddCommand(providersCmd)
}

func runProvidersList(cmd *cobra.Command, _ []string) error {
	if len(providerAdapters) == 0 && len(unavailableProviders) == 0 {
		cmd.Println("No providers configured.")
		return nil
	}

	cmd.Println("Providers:")
	for _, p := range providerAdapters {
		cmd.Printf("  %-12s %-28s ready\n", p.ID(), p.Model())
	}

	ids := make([]string, 0, len(unavailableProviders))
	for id := range unavailableProviders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		cmd.Printf("  %-12s %-28s unavailable: %s\n", id, "-", unavailableProviders[id])
	}
	return nil
}

func runProvidersPing(cmd *cobra.Command, _ []string) error {
	if len(providerAdapters) == 0 {
		return errors.New("no usable providers: configure an API key first")
	}

	cmd.Println("Pinging providers...")
	results := ai.PingProviders(cmd.Context(), providerAdapters)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			cmd.Printf("  ✗ %-12s %v\n", r.ProviderID, r.Err)
			continue
		}
		cmd.Printf("  ✓ %-12s %s (%d ms)\n", r.ProviderID, r.Model, r.Latency.Milliseconds())
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d providers failed", failed, len(results))
	}
	return nil
}
