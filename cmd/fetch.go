package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mbellhart/crawlcache/internal/fetch"
	"github.com/mbellhart/crawlcache/internal/scrape"
)

// newFetchCmd creates the 'fetch' subcommand for single-URL retrieval.
func newFetchCmd() *cobra.Command {
	var (
		selector      string
		pageTimeoutMs int
		timeoutSec    int
		force         bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch one URL, answering from the cache when possible",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			svc := fetch.New(appInstance.Cache, appInstance.Executor, appInstance.Logger.Named("fetch"))
			result, err := svc.Fetch(cmd.Context(), args[0], scrape.FetchConfig{
				CSSSelector:   selector,
				PageTimeoutMs: pageTimeoutMs,
			}, time.Duration(timeoutSec)*time.Second, force)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&selector, "selector", "", "CSS selector hint passed to the engine")
	cmd.Flags().IntVar(&pageTimeoutMs, "page-timeout-ms", 0, "engine-side page timeout override in milliseconds")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 0, "invocation timeout in seconds (0 uses the configured default)")
	cmd.Flags().BoolVar(&force, "force", false, "bypass the cache and re-fetch")

	return cmd
}
