package ai

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/regula/internal/core/ports/driven"
)

// PingResult is the outcome of checking one provider.
type PingResult struct {
	ProviderID string
	Model      string
	Latency    time.Duration
	Err        error
}

// PingProviders checks every adapter concurrently. Results keep the adapters' order.
func PingProviders(ctx context.Context, adapters []driven.ProviderAdapter) []PingResult {
	results := make([]PingResult, len(adapters))
	var g errgroup.Group
	for i, a := range adapters {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, pingTimeout)
			defer cancel()

			start := time.Now()
			err := a.Ping(pctx)
			results[i] = PingResult{
				ProviderID: a.ID(),
				Model:      a.Model(),
				Latency:    time.Since(start),
				Err:        err,
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
