package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/mbellhart/crawlcache/internal/api"
	"github.com/mbellhart/crawlcache/internal/scrape"
)

// newBatchCmd creates the 'batch' subcommand. The whole URL list goes to a
// single engine invocation; the engine owns its internal parallelism.
func newBatchCmd() *cobra.Command {
	var (
		strategy        string
		maxSessions     int
		memoryThreshold int
		baseDelayMs     int
		maxDelayMs      int
		maxRetries      int
		metricsAddr     string
	)

	cmd := &cobra.Command{
		Use:   "batch <url>...",
		Short: "Fetch many URLs through one aggregate engine invocation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			addr := metricsAddr
			if addr == "" {
				addr = appInstance.Config.Metrics.Addr
			}
			if addr != "" {
				srv := api.New(addr, appInstance.Logger.Named("api"))
				srv.Start()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if stopErr := srv.Stop(shutdownCtx); stopErr != nil {
						appInstance.Logger.Warn("metrics listener shutdown failed")
					}
				}()
			}

			outcome, err := appInstance.Coordinator.ExecuteBatch(cmd.Context(), args, scrape.BatchConfig{
				Strategy:             strategy,
				MaxSessions:          maxSessions,
				MemoryThresholdPct:   memoryThreshold,
				RateLimitBaseDelayMs: baseDelayMs,
				RateLimitMaxDelayMs:  maxDelayMs,
				MaxRetries:           maxRetries,
			})
			if err != nil {
				return err
			}
			return printJSON(outcome)
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "", "engine crawl strategy (e.g. full-render, lightweight-fetch)")
	cmd.Flags().IntVar(&maxSessions, "max-sessions", 0, "engine concurrency/session ceiling")
	cmd.Flags().IntVar(&memoryThreshold, "memory-threshold", 0, "engine memory-pressure ceiling percentage")
	cmd.Flags().IntVar(&baseDelayMs, "rate-base-delay-ms", 0, "engine rate-limit base delay in milliseconds")
	cmd.Flags().IntVar(&maxDelayMs, "rate-max-delay-ms", 0, "engine rate-limit max delay in milliseconds")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "engine-side retry ceiling")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address for the run")

	return cmd
}
