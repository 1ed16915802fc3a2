package cmd

import (
	"github.com/spf13/cobra"
)

// newCacheCmd groups the cache inspection and maintenance subcommands.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the local content cache",
	}

	cmd.AddCommand(newCacheGetCmd())
	cmd.AddCommand(newCacheSearchCmd())
	cmd.AddCommand(newCacheListCmd())
	cmd.AddCommand(newCacheStatsCmd())
	cmd.AddCommand(newCacheClearCmd())

	return cmd
}

func newCacheGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <url>",
		Short: "Look up the cached entry for a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			entry, ok := appInstance.Cache.Get(args[0])
			if !ok {
				return printJSON(map[string]any{"found": false})
			}
			return printJSON(map[string]any{"found": true, "entry": entry})
		},
	}
}

func newCacheSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search cached entries by title, URL, or body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(appInstance.Cache.Search(args[0], limit))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum results")
	return cmd
}

func newCacheListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached entries, most recently used first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(appInstance.Cache.List(limit))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results")
	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(appInstance.Cache.Stats())
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := appInstance.Cache.Clear(); err != nil {
				return err
			}
			return printJSON(map[string]string{"status": "cleared"})
		},
	}
}
