package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <service> <query>",
		Short: "full-text search over the cached services_fts shadow table (requires --config full_text_search=true)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			recs, err := cc.Client.SearchText(cmd.Context(), args[0], args[1], limit)
			if err != nil {
				return fmt.Errorf("pbsync: cmd: search %s: %w", args[0], err)
			}

			return printResult(recs)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "max results")

	return cmd
}
