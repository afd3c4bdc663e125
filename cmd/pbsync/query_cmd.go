package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/otterway/pbsync"
)

func newQueryCmd() *cobra.Command {
	var (
		policyName string
		filter     string
		sort       string
		fields     string
		expand     string
		limit      int
		offset     int
	)

	cmd := &cobra.Command{
		Use:   "query <service>",
		Short: "list records through the five-way read routing table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			p, err := resolvePolicyFlag(policyName)
			if err != nil {
				return err
			}

			params := pbsync.QueryParams{
				Filter: filter, Sort: sort, Fields: fields, Expand: expand,
				Limit: limit, Offset: offset,
			}

			rows, err := cc.Client.FetchList(cmd.Context(), p, args[0], params)
			if err != nil {
				return fmt.Errorf("pbsync: cmd: query %s: %w", args[0], err)
			}

			return printResult(rows)
		},
	}

	cmd.Flags().StringVar(&policyName, "policy", "", "override the default policy for this call")
	cmd.Flags().StringVar(&filter, "filter", "", "filter expression")
	cmd.Flags().StringVar(&sort, "sort", "", "sort spec, e.g. \"-created,name\"")
	cmd.Flags().StringVar(&fields, "fields", "", "comma-separated field projection")
	cmd.Flags().StringVar(&expand, "expand", "", "comma-separated relation expand paths")
	cmd.Flags().IntVar(&limit, "limit", 0, "max rows (0 = unbounded)")
	cmd.Flags().IntVar(&offset, "offset", 0, "row offset")

	return cmd
}
